/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// SignatureVerifier makes verification of JSON Web Signature.
type SignatureVerifier interface {
	// Verify checks the signature of the JWS and returns its payload.
	Verify(jws *jose.JSONWebSignature) ([]byte, error)
}

// KeyVerifier verifies signatures with a single public key.
type KeyVerifier struct {
	key interface{}
}

// NewKeyVerifier creates a verifier for the given public key.
func NewKeyVerifier(publicKey interface{}) *KeyVerifier {
	return &KeyVerifier{key: publicKey}
}

// Verify checks the JWS signature with the verifier key.
func (v *KeyVerifier) Verify(jws *jose.JSONWebSignature) ([]byte, error) {
	return jws.Verify(v.key)
}

// NoopSignatureVerifier skips signature verification.
type NoopSignatureVerifier struct{}

// Verify returns the JWS payload without checking the signature.
func (NoopSignatureVerifier) Verify(jws *jose.JSONWebSignature) ([]byte, error) {
	return jws.UnsafePayloadWithoutVerification(), nil
}

// PublicJWK builds the public JWK for the key, suitable for a cnf claim.
func PublicJWK(publicKey interface{}) (*jose.JSONWebKey, error) {
	jwk := &jose.JSONWebKey{Key: publicKey}

	if !jwk.Valid() {
		return nil, fmt.Errorf("%w: invalid public key %T", ErrKeyCreationFailure, publicKey)
	}

	if !jwk.IsPublic() {
		public := jwk.Public()
		jwk = &public

		if !jwk.Valid() {
			return nil, fmt.Errorf("%w: cannot derive public key from %T", ErrKeyCreationFailure, publicKey)
		}
	}

	return jwk, nil
}
