/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"crypto"
	"encoding/base64"
	"fmt"
	"strings"

	// registers crypto.SHA3_256 and crypto.SHA3_512.
	_ "golang.org/x/crypto/sha3"
)

// Hash algorithm names as registered in the IANA "Named Information Hash Algorithm" registry.
const (
	SHA256  = "sha-256"
	SHA384  = "sha-384"
	SHA512  = "sha-512"
	SHA3256 = "sha3-256"
	SHA3512 = "sha3-512"

	// DefaultHashAlgorithm is used by the issuer unless configured otherwise.
	DefaultHashAlgorithm = SHA256
)

// HashAlgorithm is a named one-way hash used to compute disclosure digests.
type HashAlgorithm struct {
	// Name is recorded in the _sd_alg claim.
	Name string
	Hash crypto.Hash
	// SumFunc replaces Hash when set.
	SumFunc func(data []byte) []byte
}

// Sum hashes data.
func (a HashAlgorithm) Sum(data []byte) ([]byte, error) {
	if a.SumFunc != nil {
		return a.SumFunc(data), nil
	}

	if a.Hash == 0 || !a.Hash.Available() {
		return nil, fmt.Errorf("%w: hash function for '%s' is not available", ErrInternal, a.Name)
	}

	h := a.Hash.New()
	h.Write(data) // nolint:errcheck

	return h.Sum(nil), nil
}

// SupportedHashAlgorithms returns the built-in hash algorithms.
func SupportedHashAlgorithms() []HashAlgorithm {
	return []HashAlgorithm{
		{Name: SHA256, Hash: crypto.SHA256},
		{Name: SHA384, Hash: crypto.SHA384},
		{Name: SHA512, Hash: crypto.SHA512},
		{Name: SHA3256, Hash: crypto.SHA3_256},
		{Name: SHA3512, Hash: crypto.SHA3_512},
	}
}

// GetHashAlgorithm resolves the hash algorithm by its name. Extra algorithms take precedence over built-in ones.
func GetHashAlgorithm(name string, extra ...HashAlgorithm) (HashAlgorithm, error) {
	if name == "" {
		return HashAlgorithm{}, fmt.Errorf("%w: empty hash algorithm name", ErrMissingOrUnknownHashingAlgorithm)
	}

	algs := append(append([]HashAlgorithm{}, extra...), SupportedHashAlgorithms()...)

	for _, alg := range algs {
		if strings.EqualFold(alg.Name, name) {
			return alg, nil
		}
	}

	return HashAlgorithm{}, fmt.Errorf("%w: %s", ErrMissingOrUnknownHashingAlgorithm, name)
}

// GetHashAlgorithmFromClaims resolves the hash algorithm named by the _sd_alg claim.
func GetHashAlgorithmFromClaims(claims map[string]interface{}, extra ...HashAlgorithm) (HashAlgorithm, error) {
	obj, ok := claims[SDAlgorithmKey]
	if !ok {
		return HashAlgorithm{}, fmt.Errorf("%w: %s must be present in SD-JWT", ErrMissingOrUnknownHashingAlgorithm,
			SDAlgorithmKey)
	}

	name, ok := obj.(string)
	if !ok {
		return HashAlgorithm{}, fmt.Errorf("%w: %s must be a string", ErrMissingOrUnknownHashingAlgorithm, SDAlgorithmKey)
	}

	return GetHashAlgorithm(name, extra...)
}

// GetHash calculates base64url encoded hash of the value.
func GetHash(alg HashAlgorithm, value string) (string, error) {
	sum, err := alg.Sum([]byte(value))
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(sum), nil
}
