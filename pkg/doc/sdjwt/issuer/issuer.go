/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package issuer enables the Issuer: An entity that creates SD-JWTs.

An SD-JWT is a digitally signed document containing digests over the claims
(per claim: a random salt, the claim name and the claim value).
It MAY further contain clear-text claims that are always disclosed to the Verifier.
It MUST be digitally signed using the Issuer's private key.

	SD-JWT-DOC = (METADATA, SD-CLAIMS, NON-SD-CLAIMS)
	SD-JWT = SD-JWT-DOC | SIG(SD-JWT-DOC, ISSUER-PRIV-KEY)

SD-CLAIMS is an array of digest values that ensure the integrity of
and map to the respective Disclosures. Digest values are calculated
over the Disclosures, each of which contains the claim name (CLAIM-NAME),
the claim value (CLAIM-VALUE), and a random salt (SALT).
Array elements are disclosed without a claim name and are replaced in place
by {"...": DIGEST}.

The disclosure strategy decides how nested claims are split. FlatStrategy discloses top-level claims
as whole values. RecursiveStrategy discloses every level independently, so a disclosure of an object
may itself carry digests of its members.

The SD-JWT and the Disclosures are sent to the Holder by the Issuer:

	COMBINED-ISSUANCE = SD-JWT~DISCLOSURE-1~...~DISCLOSURE-N~
*/
package issuer

import (
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/json"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/hyperledger/aries-framework-go/component/log"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/util/maphelpers"
)

var logger = log.New("aries-framework/sdjwt/issuer")

const (
	credentialSubjectKey = "credentialSubject"
	vcKey                = "vc"
)

var (
	// ErrReservedKeyCollision is returned when the claims already use a key reserved for SD-JWT.
	ErrReservedKeyCollision = errors.New("reserved key collision")
	// ErrUnsupportedValueShape is returned when a claim is flagged that the strategy cannot disclose.
	ErrUnsupportedValueShape = errors.New("unsupported value shape")
)

// newOpts holds options for creating new SD-JWT.
type newOpts struct {
	Subject  string
	Audience string
	JTI      string
	ID       string

	Expiry    *jwt.NumericDate
	NotBefore *jwt.NumericDate
	IssuedAt  *jwt.NumericDate

	HolderPublicKey *jose.JSONWebKey

	hashAlg     *common.HashAlgorithm
	jsonMarshal common.MarshalFunc
	salts       common.SaltProvider

	strategy    DisclosureStrategy
	decoyPolicy DecoyPolicy

	sdClaims    map[string]bool
	nonSDClaims map[string]bool

	// nestedClaims is set when the claims are embedded in another claim-set (the VC credential subject),
	// so registered claim names carry no special meaning in them.
	nestedClaims bool
}

// NewOpt is the SD-JWT New option.
type NewOpt func(opts *newOpts)

// WithJSONMarshaller is option is for marshalling disclosure.
func WithJSONMarshaller(jsonMarshal func(v interface{}) ([]byte, error)) NewOpt {
	return func(opts *newOpts) {
		opts.jsonMarshal = jsonMarshal
	}
}

// WithSaltProvider is an option for generating salts of disclosures and decoys.
func WithSaltProvider(provider common.SaltProvider) NewOpt {
	return func(opts *newOpts) {
		opts.salts = provider
	}
}

// WithSaltFnc is an option for generating salt. Mostly used for testing.
// A new salt MUST be chosen for each claim independently of other salts.
// The RECOMMENDED minimum length of the randomly-generated portion of the salt is 128 bits.
func WithSaltFnc(fnc func() (string, error)) NewOpt {
	return func(opts *newOpts) {
		opts.salts = common.SaltFunc(fnc)
	}
}

// WithIssuedAt is an option for SD-JWT payload. This is a clear-text claim that is always disclosed.
func WithIssuedAt(issuedAt *jwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.IssuedAt = issuedAt
	}
}

// WithAudience is an option for SD-JWT payload. This is a clear-text claim that is always disclosed.
func WithAudience(audience string) NewOpt {
	return func(opts *newOpts) {
		opts.Audience = audience
	}
}

// WithExpiry is an option for SD-JWT payload. This is a clear-text claim that is always disclosed.
func WithExpiry(expiry *jwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.Expiry = expiry
	}
}

// WithNotBefore is an option for SD-JWT payload. This is a clear-text claim that is always disclosed.
func WithNotBefore(notBefore *jwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.NotBefore = notBefore
	}
}

// WithSubject is an option for SD-JWT payload. This is a clear-text claim that is always disclosed.
func WithSubject(subject string) NewOpt {
	return func(opts *newOpts) {
		opts.Subject = subject
	}
}

// WithJTI is an option for SD-JWT payload. This is a clear-text claim that is always disclosed.
func WithJTI(jti string) NewOpt {
	return func(opts *newOpts) {
		opts.JTI = jti
	}
}

// WithID is an option for SD-JWT payload. This is a clear-text claim that is always disclosed.
func WithID(id string) NewOpt {
	return func(opts *newOpts) {
		opts.ID = id
	}
}

// WithHolderPublicKey is an option for SD-JWT payload.
// The Holder can prove legitimate possession of an SD-JWT by proving control over the same private key during
// the issuance and presentation. The "cnf" claim value MUST represent only a single proof-of-possession key.
// This implementation is using CNF "jwk".
func WithHolderPublicKey(jwk *jose.JSONWebKey) NewOpt {
	return func(opts *newOpts) {
		opts.HolderPublicKey = jwk
	}
}

// WithHashAlgorithm is an option for hashing disclosures. Default is sha-256.
func WithHashAlgorithm(alg common.HashAlgorithm) NewOpt {
	return func(opts *newOpts) {
		opts.hashAlg = &alg
	}
}

// WithDisclosureStrategy is an option for choosing how nested claims are disclosed. Default is FlatStrategy.
func WithDisclosureStrategy(strategy DisclosureStrategy) NewOpt {
	return func(opts *newOpts) {
		opts.strategy = strategy
	}
}

// WithSelectivelyDisclosableClaims is an option for provide the only claim paths that should be selectively
// disclosable. Paths use dots between object keys and numeric segments for array elements,
// e.g. []string{"given_name", "address.street_address", "nationalities.1"}.
// Every path must resolve to a claim the strategy can disclose.
func WithSelectivelyDisclosableClaims(sdClaims []string) NewOpt {
	return func(opts *newOpts) {
		opts.sdClaims = sliceToMap(sdClaims)
	}
}

// WithNonSelectivelyDisclosableClaims is an option for provide claim paths that should be ignored when creating
// selectively disclosable claims.
// For example if you would like to not selectively disclose id and degree type from the following claims:
// {
//
//	"degree": {
//	   "degree": "MIT",
//	   "type": "BachelorDegree",
//	 },
//	 "name": "Jayden Doe",
//	 "id": "did:example:ebfeb1f712ebc6f1c276e12ec21",
//	}
//
// you should specify the following array: []string{"id", "degree.type"}.
// Every path must resolve to a claim the strategy visits: with FlatStrategy only top-level names are valid, so
// "degree.type" is rejected with ErrUnsupportedValueShape. Paths are ignored when WithSelectivelyDisclosableClaims
// is also given.
func WithNonSelectivelyDisclosableClaims(nonSDClaims []string) NewOpt {
	return func(opts *newOpts) {
		opts.nonSDClaims = sliceToMap(nonSDClaims)
	}
}

func withNestedClaims() NewOpt {
	return func(opts *newOpts) {
		opts.nestedClaims = true
	}
}

func sliceToMap(ids []string) map[string]bool {
	values := make(map[string]bool, len(ids))
	for _, id := range ids {
		values[id] = true
	}

	return values
}

// Payload is the unsigned SD-JWT claim-set with the disclosures of its digests.
type Payload struct {
	Claims      map[string]interface{}
	Disclosures []*common.DisclosureClaim
}

// DisclosureStrings returns the encoded disclosures in order.
func (p *Payload) DisclosureStrings() []string {
	disclosures := make([]string, 0, len(p.Disclosures))

	for _, d := range p.Disclosures {
		disclosures = append(disclosures, d.Disclosure)
	}

	return disclosures
}

// CreatePayload creates the unsigned SD-JWT claim-set from the claims together with the disclosures.
// Registered claims (iss, sub, aud, jti, iat, nbf, exp, cnf, _sd_alg) are placed in plaintext at the top level.
func CreatePayload(issuer string, claims interface{}, opts ...NewOpt) (*Payload, error) {
	nOpts := &newOpts{}

	for _, opt := range opts {
		opt(nOpts)
	}

	if nOpts.strategy == nil {
		nOpts.strategy = FlatStrategy()
	}

	alg := nOpts.hashAlg
	if alg == nil {
		defaultAlg, err := common.GetHashAlgorithm(common.DefaultHashAlgorithm)
		if err != nil {
			return nil, err
		}

		alg = &defaultAlg
	}

	claimsMap, err := toClaimsMap(claims)
	if err != nil {
		return nil, fmt.Errorf("convert payload to map: %w", err)
	}

	if err = checkReservedKeys(claimsMap); err != nil {
		return nil, err
	}

	b := newBuilder(nOpts, common.NewDigestCreator(*alg, nOpts.salts))

	sdClaims, err := nOpts.strategy.apply(b, claimsMap)
	if err != nil {
		return nil, err
	}

	if err = b.checkFlagsResolved(); err != nil {
		return nil, err
	}

	registered, err := afgjwt.PayloadToMap(createPayload(issuer, alg.Name, nOpts))
	if err != nil {
		return nil, fmt.Errorf("convert registered claims to map: %w", err)
	}

	for k, v := range registered {
		if _, ok := sdClaims[k]; ok {
			return nil, fmt.Errorf("%w: claim '%s' is set by the issuer", ErrReservedKeyCollision, k)
		}

		sdClaims[k] = v
	}

	logger.Debugf("created SD-JWT payload with %d disclosure(s) using %s strategy", len(b.disclosures),
		nOpts.strategy)

	return &Payload{Claims: sdClaims, Disclosures: b.disclosures}, nil
}

// New creates new signed Selective Disclosure JWT based on input claims.
// The Issuer MUST create a Disclosure for each selectively disclosable claim as follows:
// Create an array of three elements in this order:
//
//	A salt value. Generated by the system, the salt value MUST be unique for each claim that is to be selectively
//	disclosed.
//	The claim name, or key, as it would be used in a regular JWT body. This MUST be a string.
//	The claim's value, as it would be used in a regular JWT body. The value MAY be of any type that is allowed in JSON,
//	including numbers, strings, booleans, arrays, and objects.
//
// Then JSON-encode the array such that an UTF-8 string is produced.
// Then base64url-encode the byte representation of the UTF-8 string to create the Disclosure.
func New(issuer string, claims interface{}, headers afgjwt.Headers,
	signer afgjwt.Signer, opts ...NewOpt) (*SelectiveDisclosureJWT, error) {
	payload, err := CreatePayload(issuer, claims, opts...)
	if err != nil {
		return nil, err
	}

	signedJWT, err := afgjwt.NewSigned(payload.Claims, headers, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create SD-JWT from payload: %w", err)
	}

	return &SelectiveDisclosureJWT{Disclosures: payload.DisclosureStrings(), SignedJWT: signedJWT}, nil
}

/*
NewFromVC creates new signed Selective Disclosure JWT based on Verifiable Credential in map representation.

Algorithm:
  - extract credential subject map from verifiable credential
  - create un-signed SD-JWT payload plus Disclosures with credential subject map; registered claim names
    (sub, exp, ...) in the credential subject are ordinary claims there and selectively disclosable as well
  - replace VC credential subject with newly created credential subject with selective disclosures
  - move _sd_alg and cnf to the top level of the JWT claims
  - create signed SD-JWT based on VC
  - return signed SD-JWT plus Disclosures
*/
func NewFromVC(vc map[string]interface{}, headers afgjwt.Headers,
	signer afgjwt.Signer, opts ...NewOpt) (*SelectiveDisclosureJWT, error) {
	vcCopy := maphelpers.CopyMap(vc)

	vcClaims := vcCopy
	if nested, ok := vcCopy[vcKey].(map[string]interface{}); ok {
		vcClaims = nested
	}

	cs, ok := vcClaims[credentialSubjectKey].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: credential subject not found or not an object", ErrUnsupportedValueShape)
	}

	payload, err := CreatePayload("", cs, append(append([]NewOpt{}, opts...), withNestedClaims())...)
	if err != nil {
		return nil, err
	}

	selectiveCredentialSubject := payload.Claims

	for _, key := range []string{common.SDAlgorithmKey, common.CNFKey} {
		value, exists := selectiveCredentialSubject[key]
		if !exists {
			continue
		}

		if _, exists = vcCopy[key]; exists {
			return nil, fmt.Errorf("%w: claim '%s' is set by the issuer", ErrReservedKeyCollision, key)
		}

		vcCopy[key] = value

		delete(selectiveCredentialSubject, key)
	}

	vcClaims[credentialSubjectKey] = selectiveCredentialSubject

	signedJWT, err := afgjwt.NewSigned(vcCopy, headers, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create SD-JWT from VC: %w", err)
	}

	return &SelectiveDisclosureJWT{Disclosures: payload.DisclosureStrings(), SignedJWT: signedJWT}, nil
}

// SelectiveDisclosureJWT defines Selective Disclosure JSON Web Token (https://tools.ietf.org/html/rfc7519)
type SelectiveDisclosureJWT struct {
	SignedJWT   *afgjwt.JSONWebToken
	Disclosures []string
}

// DecodeClaims fills input c with claims of a token.
func (j *SelectiveDisclosureJWT) DecodeClaims(c interface{}) error {
	return j.SignedJWT.DecodeClaims(c)
}

// LookupStringHeader makes look up of particular header with string value.
func (j *SelectiveDisclosureJWT) LookupStringHeader(name string) string {
	return j.SignedJWT.LookupStringHeader(name)
}

// Serialize makes (compact) serialization of token into the combined format for issuance.
func (j *SelectiveDisclosureJWT) Serialize(detached bool) (string, error) {
	if j.SignedJWT == nil {
		return "", errors.New("JWS serialization is supported only")
	}

	signedJWT, err := j.SignedJWT.Serialize(detached)
	if err != nil {
		return "", err
	}

	cf := common.CombinedFormatForIssuance{
		SDJWT:       signedJWT,
		Disclosures: j.Disclosures,
	}

	return cf.Serialize(), nil
}

// payload represents registered SD-JWT payload claims.
type payload struct {
	// registered claim names
	Issuer    string           `json:"iss,omitempty"`
	Subject   string           `json:"sub,omitempty"`
	Audience  string           `json:"aud,omitempty"`
	JTI       string           `json:"jti,omitempty"`
	Expiry    *jwt.NumericDate `json:"exp,omitempty"`
	NotBefore *jwt.NumericDate `json:"nbf,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`

	// non-registered name that can be used for claims based holder binding
	ID string `json:"id,omitempty"`

	// SD-JWT specific
	CNF   map[string]interface{} `json:"cnf,omitempty"`
	SDAlg string                 `json:"_sd_alg,omitempty"`
}

func createPayload(issuer, sdAlg string, nOpts *newOpts) *payload {
	var cnf map[string]interface{}
	if nOpts.HolderPublicKey != nil {
		cnf = map[string]interface{}{"jwk": nOpts.HolderPublicKey}
	}

	return &payload{
		Issuer:    issuer,
		JTI:       nOpts.JTI,
		ID:        nOpts.ID,
		Subject:   nOpts.Subject,
		Audience:  nOpts.Audience,
		IssuedAt:  nOpts.IssuedAt,
		Expiry:    nOpts.Expiry,
		NotBefore: nOpts.NotBefore,
		CNF:       cnf,
		SDAlg:     sdAlg,
	}
}

// toClaimsMap normalizes the claims into a fresh JSON tree with json.Number numbers.
func toClaimsMap(claims interface{}) (map[string]interface{}, error) {
	claimsBytes, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}

	return afgjwt.PayloadToMap(claimsBytes)
}

func checkReservedKeys(claims map[string]interface{}) error {
	if _, ok := claims[common.SDAlgorithmKey]; ok {
		return fmt.Errorf("%w: key '%s' cannot be present in the claims", ErrReservedKeyCollision,
			common.SDAlgorithmKey)
	}

	return checkReservedKeysInValue(claims)
}

func checkReservedKeysInValue(value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		for k, child := range v {
			if common.IsReservedKey(k, false) {
				return fmt.Errorf("%w: key '%s' cannot be present in the claims", ErrReservedKeyCollision, k)
			}

			if err := checkReservedKeysInValue(child); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range v {
			if err := checkReservedKeysInValue(child); err != nil {
				return err
			}
		}
	}

	return nil
}
