/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package holder enables the Holder: an entity that receives SD-JWTs from the Issuer and has control over them.

The Holder parses the combined format for issuance, selects the disclosures it wants to reveal and creates
the combined format for presentation, optionally bound to its key with a key binding JWT:

	COMBINED-PRESENTATION = SD-JWT~DISCLOSURE-1~...~DISCLOSURE-M~KB-JWT
*/
package holder

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3/json"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/tidwall/gjson"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
)

var logger = log.New("aries-framework/sdjwt/holder")

// KeyBindingJWTType is the typ header of the key binding JWT.
const KeyBindingJWTType = "kb+jwt"

// Claim defines claim.
type Claim struct {
	Disclosure string
	Digest     string
	// Name is empty for array elements.
	Name  string
	Value interface{}
	// Path is the claim path in the fully disclosed claims, e.g. "address.street_address" or "nationalities.1".
	Path string
}

// parseOpts holds options for parsing the SD-JWT.
type parseOpts struct {
	sigVerifier afgjwt.SignatureVerifier

	sdjwtValidation   bool
	issuerSigningAlgs []string
	expectedTypHeader string
	leeway            time.Duration
	now               func() time.Time
}

// ParseOpt is the SD-JWT Parser option.
type ParseOpt func(opts *parseOpts)

// WithSignatureVerifier option is for definition of JWT detached signature verifier.
func WithSignatureVerifier(signatureVerifier afgjwt.SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// WithSDJWTValidation enables validation of the issuer signing algorithm, typ header and time claims.
func WithSDJWTValidation(enable bool) ParseOpt {
	return func(opts *parseOpts) {
		opts.sdjwtValidation = enable
	}
}

// WithIssuerSigningAlgorithms option is for defining secure signing algorithms (for issuer).
func WithIssuerSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.issuerSigningAlgs = algorithms
	}
}

// WithExpectedTypHeader is an option for JWT typ header validation.
func WithExpectedTypHeader(typ string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedTypHeader = typ
	}
}

// WithLeewayForClaimsValidation is an option for claims time(s) validation.
func WithLeewayForClaimsValidation(duration time.Duration) ParseOpt {
	return func(opts *parseOpts) {
		opts.leeway = duration
	}
}

// WithCurrentTime is an option for the clock used by time claims validation.
func WithCurrentTime(now func() time.Time) ParseOpt {
	return func(opts *parseOpts) {
		opts.now = now
	}
}

// Parse parses issuer SD-JWT and returns claims that can be selected.
// The Holder MUST perform the following (or equivalent) steps when receiving a Combined Format for Issuance:
//
//   - Separate the SD-JWT and the Disclosures in the Combined Format for Issuance.
//
//   - Hash all the Disclosures separately.
//
//   - Find the digest values of the hashed Disclosures in the SD-JWT payload.
//
//   - If a digest cannot be found, the SD-JWT MUST be rejected.
//
//   - If the Holder wants to check the SD-JWT's signature, it verifies it with the issuer key.
//     The default is no signature verification.
func Parse(combinedFormatForIssuance string, opts ...ParseOpt) ([]*Claim, error) {
	parsed, err := parse(combinedFormatForIssuance, opts...)
	if err != nil {
		return nil, err
	}

	return parsed.claims, nil
}

type parsedSDJWT struct {
	cfi            *common.CombinedFormatForIssuance
	claims         []*Claim
	fullyDisclosed map[string]interface{}
}

func parse(combinedFormatForIssuance string, opts ...ParseOpt) (*parsedSDJWT, error) {
	pOpts := &parseOpts{
		sigVerifier:       afgjwt.NoopSignatureVerifier{},
		issuerSigningAlgs: []string{"EdDSA", "ES256", "ES384", "ES512", "RS256", "PS256"},
		leeway:            jwt.DefaultLeeway,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(pOpts)
	}

	cfi := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)

	signedJWT, _, err := afgjwt.Parse(cfi.SDJWT, afgjwt.WithSignatureVerifier(pOpts.sigVerifier))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SD-JWT: %w", err)
	}

	if pOpts.sdjwtValidation {
		if err = validateSDJWT(signedJWT, pOpts); err != nil {
			return nil, err
		}
	}

	alg, err := common.GetHashAlgorithmFromClaims(signedJWT.Payload)
	if err != nil {
		return nil, err
	}

	disclosures, err := common.DecodeDisclosures(cfi.Disclosures)
	if err != nil {
		return nil, err
	}

	if err = common.SetDigests(disclosures, alg); err != nil {
		return nil, err
	}

	if err = common.CheckUniqueness(disclosures); err != nil {
		return nil, err
	}

	result, err := common.DiscloseClaims(signedJWT.Payload, disclosures)
	if err != nil {
		return nil, err
	}

	claims := make([]*Claim, 0, len(result.Disclosed))

	for _, d := range result.Disclosed {
		claims = append(claims, &Claim{
			Disclosure: d.Disclosure,
			Digest:     d.Digest,
			Name:       d.Name,
			Value:      d.Value,
			Path:       d.Path,
		})
	}

	logger.Debugf("parsed SD-JWT with %d selectively disclosable claim(s)", len(claims))

	return &parsedSDJWT{cfi: cfi, claims: claims, fullyDisclosed: result.Claims}, nil
}

func validateSDJWT(signedJWT *afgjwt.JSONWebToken, pOpts *parseOpts) error {
	if err := common.VerifySigningAlg(signedJWT.Headers, pOpts.issuerSigningAlgs); err != nil {
		return fmt.Errorf("failed to verify issuer signing algorithm: %w", err)
	}

	if pOpts.expectedTypHeader != "" {
		if err := common.VerifyTyp(signedJWT.Headers, pOpts.expectedTypHeader); err != nil {
			return fmt.Errorf("verify typ header: %w", err)
		}
	}

	if err := common.VerifyJWT(signedJWT.Payload, pOpts.now(), pOpts.leeway); err != nil {
		return fmt.Errorf("failed to verify SD-JWT time claims: %w", err)
	}

	return nil
}

// SelectDisclosures returns the disclosures the Holder has to present to reveal the claims at the given paths.
// Disclosures of enclosing objects and arrays, and of every claim nested under a requested path are included.
func SelectDisclosures(combinedFormatForIssuance string, paths []string, opts ...ParseOpt) ([]string, error) {
	parsed, err := parse(combinedFormatForIssuance, opts...)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(parsed.fullyDisclosed)
	if err != nil {
		return nil, fmt.Errorf("marshal disclosed claims: %w", err)
	}

	selected := make(map[string]bool)

	for _, path := range paths {
		if !gjson.GetBytes(doc, path).Exists() {
			return nil, fmt.Errorf("claim '%s' not found", path)
		}

		for _, c := range parsed.claims {
			if c.Path == path || isPathPrefix(c.Path, path) || isPathPrefix(path, c.Path) {
				selected[c.Disclosure] = true
			}
		}
	}

	var disclosures []string

	for _, d := range parsed.cfi.Disclosures {
		if selected[d] {
			disclosures = append(disclosures, d)
		}
	}

	return disclosures, nil
}

func isPathPrefix(prefix, path string) bool {
	return strings.HasPrefix(path, prefix+".")
}
