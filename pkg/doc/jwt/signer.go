/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3"
)

var (
	// ErrNoneAsAlgorithm is returned when signing is requested without an algorithm or with "none".
	ErrNoneAsAlgorithm = errors.New("signing algorithm must not be empty or 'none'")
	// ErrMacAsAlgorithm is returned when a symmetric MAC algorithm (HS*) is requested.
	ErrMacAsAlgorithm = errors.New("MAC algorithms cannot be used for signing")
	// ErrAlgorithmMismatch is returned when the key does not fit the algorithm or the headers disagree with it.
	ErrAlgorithmMismatch = errors.New("signing algorithm does not match")
	// ErrKeyCreationFailure is returned when a signer or JWK cannot be created from the key material.
	ErrKeyCreationFailure = errors.New("key creation failure")
)

// Signer defines JWS Signer interface. It makes signing of data and provides the compact JWS.
type Signer interface {
	// Sign signs payload and returns compact JWS.
	Sign(payload []byte, headers Headers) (string, error)

	// Algorithm returns the JWS algorithm name.
	Algorithm() string
}

// KeySigner signs JWTs with a private key through go-jose.
type KeySigner struct {
	alg   jose.SignatureAlgorithm
	key   interface{}
	keyID string
}

// NewSigner creates a signer for the given JWS algorithm and private key.
// The key may be a raw private key or a *jose.JSONWebKey wrapping one, in which case its kid is used.
func NewSigner(alg string, privateKey interface{}) (*KeySigner, error) {
	if alg == "" || strings.EqualFold(alg, AlgorithmNone) {
		return nil, ErrNoneAsAlgorithm
	}

	if strings.HasPrefix(strings.ToUpper(alg), "HS") {
		return nil, fmt.Errorf("%w: %s", ErrMacAsAlgorithm, alg)
	}

	var keyID string

	switch k := privateKey.(type) {
	case *jose.JSONWebKey:
		keyID = k.KeyID
		privateKey = k.Key
	case jose.JSONWebKey:
		keyID = k.KeyID
		privateKey = k.Key
	}

	if err := checkKeyAlgorithm(alg, privateKey); err != nil {
		return nil, err
	}

	s := &KeySigner{
		alg:   jose.SignatureAlgorithm(alg),
		key:   privateKey,
		keyID: keyID,
	}

	if _, err := jose.NewSigner(jose.SigningKey{Algorithm: s.alg, Key: s.key}, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyCreationFailure, err)
	}

	return s, nil
}

// Algorithm returns the JWS algorithm name.
func (s *KeySigner) Algorithm() string {
	return string(s.alg)
}

// Sign signs payload and returns compact JWS. An alg header, if present, must equal the signer algorithm.
func (s *KeySigner) Sign(payload []byte, headers Headers) (string, error) {
	opts := &jose.SignerOptions{}

	if s.keyID != "" {
		opts.WithHeader(HeaderKeyID, s.keyID)
	}

	for k, v := range headers {
		if k == HeaderAlgorithm {
			if alg, ok := v.(string); !ok || alg != string(s.alg) {
				return "", fmt.Errorf("%w: header alg %v, signer alg %s", ErrAlgorithmMismatch, v, s.alg)
			}

			continue
		}

		opts.WithHeader(jose.HeaderKey(k), v)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: s.alg, Key: s.key}, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyCreationFailure, err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}

	return jws.CompactSerialize()
}

func checkKeyAlgorithm(alg string, key interface{}) error {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		if alg != string(jose.EdDSA) {
			return fmt.Errorf("%w: ed25519 key cannot be used with %s", ErrAlgorithmMismatch, alg)
		}
	case *ecdsa.PrivateKey:
		expected, ok := map[string]string{
			elliptic.P256().Params().Name: string(jose.ES256),
			elliptic.P384().Params().Name: string(jose.ES384),
			elliptic.P521().Params().Name: string(jose.ES512),
		}[k.Curve.Params().Name]
		if !ok || alg != expected {
			return fmt.Errorf("%w: ecdsa key cannot be used with %s", ErrAlgorithmMismatch, alg)
		}
	case *rsa.PrivateKey:
		if !strings.HasPrefix(alg, "RS") && !strings.HasPrefix(alg, "PS") {
			return fmt.Errorf("%w: rsa key cannot be used with %s", ErrAlgorithmMismatch, alg)
		}
	default:
		return fmt.Errorf("%w: unsupported key type %T", ErrKeyCreationFailure, key)
	}

	return nil
}
