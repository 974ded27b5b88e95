/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwt is the signing collaborator of the SD-JWT packages: it creates and parses compact JWS encoded
// JSON Web Tokens. Signatures are produced and checked by go-jose; SD-JWT processing never touches raw signatures.
package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/json"
)

const (
	// TypeJWT defines JWT type.
	TypeJWT = "JWT"
	// TypeSDJWT defines SD-JWT type.
	TypeSDJWT = "SD-JWT"

	// AlgorithmNone used to indicate unsecured JWT.
	AlgorithmNone = "none"

	// HeaderAlgorithm identifies the cryptographic algorithm used to secure the JWS.
	HeaderAlgorithm = "alg"
	// HeaderType is the media type of the complete JWS.
	HeaderType = "typ"
	// HeaderContentType is the media type of the secured content.
	HeaderContentType = "cty"
	// HeaderKeyID is a hint indicating which key was used to secure the JWS.
	HeaderKeyID = "kid"
)

var (
	// ErrMalformed is returned when the input is not a well-formed compact JWS.
	ErrMalformed = errors.New("malformed JWT")
	// ErrMissingAlgorithm is returned when the JWS protected header has no alg.
	ErrMissingAlgorithm = errors.New("alg header is not defined")
	// ErrInvalidSignature is returned when the signature verifier rejects the JWS.
	ErrInvalidSignature = errors.New("invalid JWT signature")
	// ErrInvalidHeaders is returned when the JWS protected header is not acceptable.
	ErrInvalidHeaders = errors.New("invalid JWT headers")
)

// Headers represents JOSE protected headers.
type Headers map[string]interface{}

// Algorithm gets alg from JOSE headers.
func (h Headers) Algorithm() (string, bool) {
	return h.stringValue(HeaderAlgorithm)
}

// Type gets typ from JOSE headers.
func (h Headers) Type() (string, bool) {
	return h.stringValue(HeaderType)
}

// KeyID gets kid from JOSE headers.
func (h Headers) KeyID() (string, bool) {
	return h.stringValue(HeaderKeyID)
}

func (h Headers) stringValue(name string) (string, bool) {
	raw, ok := h[name]
	if !ok {
		return "", false
	}

	str, ok := raw.(string)

	return str, ok && str != ""
}

// parseOpts holds options for the JWT parsing.
type parseOpts struct {
	sigVerifier SignatureVerifier
}

// ParseOpt is the JWT Parser option.
type ParseOpt func(opts *parseOpts)

// WithSignatureVerifier option is for definition of signature verifier.
func WithSignatureVerifier(signatureVerifier SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// JSONWebToken defines JSON Web Token (https://tools.ietf.org/html/rfc7519)
type JSONWebToken struct {
	Headers Headers

	Payload map[string]interface{}

	serialized string
}

// Parse parses input JWT in compact JWS form into JSON Web Token and verifies its signature.
// It returns the token and the raw payload bytes.
func Parse(jwtSerialized string, opts ...ParseOpt) (*JSONWebToken, []byte, error) {
	pOpts := &parseOpts{}

	for _, opt := range opts {
		opt(pOpts)
	}

	if pOpts.sigVerifier == nil {
		return nil, nil, fmt.Errorf("%w: signature verifier is not defined", ErrInvalidSignature)
	}

	if strings.Count(jwtSerialized, ".") != 2 {
		return nil, nil, fmt.Errorf("%w: JWT of compacted JWS form is supported only", ErrMalformed)
	}

	jws, err := jose.ParseSigned(jwtSerialized)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse JWT from compact JWS: %v", ErrMalformed, err)
	}

	if len(jws.Signatures) != 1 {
		return nil, nil, fmt.Errorf("%w: exactly one signature expected", ErrMalformed)
	}

	headers := headersFromJWS(jws)

	if err = checkHeaders(headers); err != nil {
		return nil, nil, fmt.Errorf("check JWT headers: %w", err)
	}

	payload, err := pOpts.sigVerifier.Verify(jws)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, err := PayloadToMap(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read JWT claims from JWS payload: %v", ErrMalformed, err)
	}

	return &JSONWebToken{
		Headers:    headers,
		Payload:    claims,
		serialized: jwtSerialized,
	}, payload, nil
}

// DecodeClaims fills input c with claims of a token.
func (j *JSONWebToken) DecodeClaims(c interface{}) error {
	pBytes, err := json.Marshal(j.Payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(pBytes, c)
}

// LookupStringHeader makes look up of particular header with string value.
func (j *JSONWebToken) LookupStringHeader(name string) string {
	value, _ := j.Headers.stringValue(name)

	return value
}

// Serialize makes (compact) serialization of token.
func (j *JSONWebToken) Serialize(detached bool) (string, error) {
	if j.serialized == "" {
		return "", errors.New("JWS serialization is supported only")
	}

	if !detached {
		return j.serialized, nil
	}

	parts := strings.Split(j.serialized, ".")

	return parts[0] + ".." + parts[2], nil
}

// NewSigned creates new signed JSON Web Token based on input claims.
func NewSigned(claims interface{}, headers Headers, signer Signer) (*JSONWebToken, error) {
	payloadMap, err := PayloadToMap(claims)
	if err != nil {
		return nil, fmt.Errorf("unmarshallable claims: %w", err)
	}

	payloadBytes, err := json.Marshal(payloadMap)
	if err != nil {
		return nil, fmt.Errorf("marshal JWT claims: %w", err)
	}

	serialized, err := signer.Sign(payloadBytes, headers)
	if err != nil {
		return nil, fmt.Errorf("sign JWT: %w", err)
	}

	jws, err := jose.ParseSigned(serialized)
	if err != nil {
		return nil, fmt.Errorf("parse signed JWT: %w", err)
	}

	return &JSONWebToken{
		Headers:    headersFromJWS(jws),
		Payload:    payloadMap,
		serialized: serialized,
	}, nil
}

func headersFromJWS(jws *jose.JSONWebSignature) Headers {
	protected := jws.Signatures[0].Protected

	headers := Headers{}

	for k, v := range protected.ExtraHeaders {
		headers[string(k)] = v
	}

	if protected.Algorithm != "" {
		headers[HeaderAlgorithm] = protected.Algorithm
	}

	if protected.KeyID != "" {
		headers[HeaderKeyID] = protected.KeyID
	}

	return headers
}

func checkHeaders(headers Headers) error {
	if _, ok := headers.Algorithm(); !ok {
		return ErrMissingAlgorithm
	}

	typ, ok := headers[HeaderType]
	if ok {
		if err := checkTypHeader(typ); err != nil {
			return err
		}
	}

	cty, ok := headers[HeaderContentType]
	if ok && cty == TypeJWT { // https://tools.ietf.org/html/rfc7519#section-5.2
		return fmt.Errorf("%w: nested JWT is not supported", ErrInvalidHeaders)
	}

	return nil
}

func checkTypHeader(typ interface{}) error {
	typStr, ok := typ.(string)
	if !ok {
		return fmt.Errorf("%w: invalid typ header format", ErrInvalidHeaders)
	}

	chunks := strings.Split(typStr, "+")
	if len(chunks) > 1 {
		ending := strings.ToUpper(chunks[len(chunks)-1])
		// Explicit typing.
		// https://www.rfc-editor.org/rfc/rfc8725.html#name-use-explicit-typing
		if ending != TypeJWT && ending != TypeSDJWT {
			return fmt.Errorf("%w: invalid typ header", ErrInvalidHeaders)
		}

		return nil
	}

	if !strings.EqualFold(typStr, TypeJWT) {
		// https://www.rfc-editor.org/rfc/rfc7519#section-5.1
		return fmt.Errorf("%w: typ is not JWT", ErrInvalidHeaders)
	}

	return nil
}

// PayloadToMap transforms interface to map. Numbers are kept as json.Number.
func PayloadToMap(i interface{}) (map[string]interface{}, error) {
	if m, ok := i.(map[string]interface{}); ok {
		return m, nil
	}

	if reflect.ValueOf(i).Kind() == reflect.Map {
		return nil, fmt.Errorf("map of type %T is not supported", i)
	}

	var (
		b   []byte
		err error
	)

	switch cv := i.(type) {
	case []byte:
		b = cv
	case string:
		b = []byte(cv)
	default:
		b, err = json.Marshal(i)
		if err != nil {
			return nil, fmt.Errorf("marshal interface[%T]: %w", i, err)
		}
	}

	var m map[string]interface{}

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	if err := d.Decode(&m); err != nil {
		return nil, fmt.Errorf("convert to map: %w", err)
	}

	return m, nil
}
