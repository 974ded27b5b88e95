/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package verifier enables the Verifier: An entity that requests, checks and
extracts the claims from an SD-JWT and respective Disclosures.
*/
package verifier

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/hyperledger/aries-framework-go/component/log"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
)

var logger = log.New("aries-framework/sdjwt/verifier")

// Result is the outcome of a successful verification.
type Result struct {
	// Claims is the reconstructed claim-set. Registered claims (iss, exp, cnf, ...) are kept.
	Claims map[string]interface{}
	// DisclosedClaims are the presented disclosures with the claim paths they were disclosed at.
	DisclosedClaims []*common.DisclosureClaim
	// UnmatchedDigests are the digests of undisclosed claims and decoys.
	UnmatchedDigests []string
}

type parseOpts struct {
	sigVerifier afgjwt.SignatureVerifier

	issuerSigningAlgorithms []string
	holderSigningAlgorithms []string

	holderVerificationRequired            bool
	expectedAudienceForHolderVerification string
	expectedNonceForHolderVerification    string
	keyBindingMaxAge                      time.Duration

	expectedTypHeader string
	expectedIssuer    string
	requiredDigests   []string
	hashAlgorithms    []common.HashAlgorithm
	claimsSchema      []byte

	claimsSchemaURL      string
	schemaDownloadClient *http.Client
	schemaCache          SchemaCache

	leewayForClaimsValidation time.Duration
	now                       func() time.Time
}

// ParseOpt is the SD-JWT Parser option.
type ParseOpt func(opts *parseOpts)

// WithSignatureVerifier option is for definition of signature verifier. It is required.
func WithSignatureVerifier(signatureVerifier afgjwt.SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// WithIssuerSigningAlgorithms option is for defining secure signing algorithms (for issuer).
func WithIssuerSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.issuerSigningAlgorithms = algorithms
	}
}

// WithHolderSigningAlgorithms option is for defining secure signing algorithms (for holder).
func WithHolderSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.holderSigningAlgorithms = algorithms
	}
}

// WithHolderVerificationRequired option is for enforcing holder verification.
func WithHolderVerificationRequired(flag bool) ParseOpt {
	return func(opts *parseOpts) {
		opts.holderVerificationRequired = flag
	}
}

// WithHolderBindingRequired option is for enforcing holder binding.
// Deprecated: use WithHolderVerificationRequired instead.
func WithHolderBindingRequired(flag bool) ParseOpt {
	return WithHolderVerificationRequired(flag)
}

// WithExpectedAudienceForHolderVerification option is to pass expected audience for holder verification.
func WithExpectedAudienceForHolderVerification(audience string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedAudienceForHolderVerification = audience
	}
}

// WithExpectedNonceForHolderVerification option is to pass nonce value for holder verification.
func WithExpectedNonceForHolderVerification(nonce string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedNonceForHolderVerification = nonce
	}
}

// WithKeyBindingMaxAge rejects key binding JWTs issued longer than maxAge ago.
func WithKeyBindingMaxAge(maxAge time.Duration) ParseOpt {
	return func(opts *parseOpts) {
		opts.keyBindingMaxAge = maxAge
	}
}

// WithLeewayForClaimsValidation is an option for claims time(s) validation.
func WithLeewayForClaimsValidation(duration time.Duration) ParseOpt {
	return func(opts *parseOpts) {
		opts.leewayForClaimsValidation = duration
	}
}

// WithCurrentTime sets the clock used for time claims validation.
func WithCurrentTime(now func() time.Time) ParseOpt {
	return func(opts *parseOpts) {
		opts.now = now
	}
}

// WithExpectedTypHeader is an option for JWT typ header validation.
func WithExpectedTypHeader(typ string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedTypHeader = typ
	}
}

// WithExpectedIssuer is an option for iss claim validation.
func WithExpectedIssuer(issuer string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedIssuer = issuer
	}
}

// WithRequiredDigests lists digests that must be matched by presented disclosures.
func WithRequiredDigests(digests []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.requiredDigests = digests
	}
}

// WithHashAlgorithms adds hash algorithms that _sd_alg may name, for this verification only.
func WithHashAlgorithms(algorithms ...common.HashAlgorithm) ParseOpt {
	return func(opts *parseOpts) {
		opts.hashAlgorithms = append(opts.hashAlgorithms, algorithms...)
	}
}

// WithClaimsSchema validates the reconstructed claims against the JSON schema.
func WithClaimsSchema(schema []byte) ParseOpt {
	return func(opts *parseOpts) {
		opts.claimsSchema = schema
	}
}

// WithClaimsSchemaURL validates the reconstructed claims against the JSON schema downloaded from the URL.
func WithClaimsSchemaURL(url string) ParseOpt {
	return func(opts *parseOpts) {
		opts.claimsSchemaURL = url
	}
}

// WithSchemaDownloadClient sets the HTTP client used to download the claims schema.
func WithSchemaDownloadClient(client *http.Client) ParseOpt {
	return func(opts *parseOpts) {
		opts.schemaDownloadClient = client
	}
}

// WithSchemaCache sets the cache of downloaded claims schemas, e.g. ExpirableSchemaCache.
func WithSchemaCache(cache SchemaCache) ParseOpt {
	return func(opts *parseOpts) {
		opts.schemaCache = cache
	}
}

func newParseOpts(opts []ParseOpt) *parseOpts {
	pOpts := &parseOpts{
		schemaDownloadClient:      http.DefaultClient,
		issuerSigningAlgorithms:   []string{"EdDSA", "ES256", "RS256"},
		holderSigningAlgorithms:   []string{"EdDSA", "ES256", "RS256"},
		leewayForClaimsValidation: jwt.DefaultLeeway,
		now:                       time.Now,
	}

	for _, opt := range opts {
		opt(pOpts)
	}

	return pOpts
}

// Parse parses combined format for presentation and returns verified claims.
func Parse(combinedFormatForPresentation string, opts ...ParseOpt) (map[string]interface{}, error) {
	result, err := Verify(combinedFormatForPresentation, opts...)
	if err != nil {
		return nil, err
	}

	return result.Claims, nil
}

// Verify verifies combined format for presentation.
// The Verifier has to verify that all disclosed claim values were part of the original, Issuer-signed SD-JWT.
//
// At a high level, the Verifier:
//   - receives the Combined Format for Presentation from the Holder and verifies the signature of the SD-JWT using the
//     Issuer's public key,
//   - calculates the digests over the Holder-Selected Disclosures and verifies that each digest
//     is contained in the SD-JWT,
//   - rebuilds the claim-set from the matched disclosures and checks its time claims,
//   - verifies the Key Binding JWT, if present or required by the Verifier's policy,
//     using the public key included in the SD-JWT.
//
// The Verifier will not, however, learn any claim values not disclosed in the Disclosures.
func Verify(combinedFormatForPresentation string, opts ...ParseOpt) (*Result, error) {
	pOpts := newParseOpts(opts)

	// Separate the Presentation into the SD-JWT, the Disclosures (if any), and the Key Binding JWT (if provided).
	cfp := common.ParseCombinedFormatForPresentation(combinedFormatForPresentation)

	signedJWT, rawPayload, err := parseSDJWT(cfp.SDJWT, pOpts)
	if err != nil {
		return nil, err
	}

	disclosures, err := decodeDisclosures(cfp.Disclosures)
	if err != nil {
		return nil, err
	}

	alg, err := common.GetHashAlgorithmFromClaims(signedJWT.Payload, pOpts.hashAlgorithms...)
	if err != nil {
		return nil, err
	}

	if err = common.SetDigests(disclosures, alg); err != nil {
		return nil, err
	}

	if err = common.CheckUniqueness(disclosures); err != nil {
		return nil, err
	}

	disclosed, err := common.DiscloseClaims(signedJWT.Payload, disclosures)
	if err != nil {
		return nil, err
	}

	if err = common.CheckRequiredDigests(pOpts.requiredDigests, disclosed); err != nil {
		return nil, err
	}

	if err = common.VerifyJWT(signedJWT.Payload, pOpts.now(), pOpts.leewayForClaimsValidation); err != nil {
		return nil, err
	}

	if err = verifyKeyBinding(cfp, rawPayload, alg, pOpts); err != nil {
		return nil, err
	}

	if len(pOpts.claimsSchema) > 0 {
		if err = validateSchema(pOpts.claimsSchema, disclosed.Claims); err != nil {
			return nil, err
		}
	}

	if pOpts.claimsSchemaURL != "" {
		schema, e := getJSONSchema(pOpts.claimsSchemaURL, pOpts)
		if e != nil {
			return nil, e
		}

		if err = validateSchema(schema, disclosed.Claims); err != nil {
			return nil, err
		}
	}

	logger.Debugf("verified SD-JWT presentation: %d disclosure(s), key binding: %t",
		len(disclosed.Disclosed), cfp.HolderVerification != "")

	return &Result{
		Claims:           disclosed.Claims,
		DisclosedClaims:  disclosed.Disclosed,
		UnmatchedDigests: disclosed.UnmatchedDigests,
	}, nil
}

// decodeDisclosures decodes the presented disclosures. A disclosure that cannot be decoded was not issued,
// so it is reported as invalid while keeping the parsing cause.
func decodeDisclosures(disclosures []string) ([]*common.DisclosureClaim, error) {
	claims := make([]*common.DisclosureClaim, 0, len(disclosures))

	for _, disclosure := range disclosures {
		claim, err := common.DecodeDisclosure(disclosure)
		if err != nil {
			return nil, &common.InvalidDisclosureError{
				Disclosures: []string{disclosure},
				Reason:      "disclosure cannot be decoded",
				Err:         fmt.Errorf("%w: %w", common.ErrParsing, err),
			}
		}

		claims = append(claims, claim)
	}

	return claims, nil
}

// parseSDJWT verifies the issuer signed JWT and its headers.
func parseSDJWT(sdJWT string, pOpts *parseOpts) (*afgjwt.JSONWebToken, []byte, error) {
	if pOpts.sigVerifier == nil {
		return nil, nil, fmt.Errorf("%w: signature verifier is not defined", common.ErrInvalidJWT)
	}

	signedJWT, rawPayload, err := afgjwt.Parse(sdJWT, afgjwt.WithSignatureVerifier(pOpts.sigVerifier))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse SD-JWT: %w", jwtError(err), err)
	}

	if err = common.VerifySigningAlg(signedJWT.Headers, pOpts.issuerSigningAlgorithms); err != nil {
		return nil, nil, fmt.Errorf("failed to verify issuer signing algorithm: %w", err)
	}

	if pOpts.expectedTypHeader != "" {
		if err = common.VerifyTyp(signedJWT.Headers, pOpts.expectedTypHeader); err != nil {
			return nil, nil, fmt.Errorf("verify typ header: %w", err)
		}
	}

	if pOpts.expectedIssuer != "" {
		iss, _ := signedJWT.Payload[common.IssuerKey].(string)
		if iss != pOpts.expectedIssuer {
			return nil, nil, fmt.Errorf("%w: issuer '%s' does not match expected issuer '%s'",
				common.ErrInvalidIssuer, iss, pOpts.expectedIssuer)
		}
	}

	return signedJWT, rawPayload, nil
}

// jwtError classifies the JWT parse failure.
func jwtError(err error) error {
	switch {
	case errors.Is(err, afgjwt.ErrMalformed):
		return common.ErrParsing
	case errors.Is(err, afgjwt.ErrMissingAlgorithm):
		return common.ErrNoAlgorithmProvided
	default:
		return common.ErrInvalidJWT
	}
}
