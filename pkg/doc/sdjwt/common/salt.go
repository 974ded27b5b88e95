/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync/atomic"
)

// DefaultSaltSize is the salt size in bytes (128 bits).
const DefaultSaltSize = 16

// SaltProvider produces salts for disclosures and decoy digests.
type SaltProvider interface {
	Salt() (string, error)
}

// SaltFunc adapts a function to SaltProvider.
type SaltFunc func() (string, error)

// Salt calls f.
func (f SaltFunc) Salt() (string, error) {
	return f()
}

// RandomSaltProvider generates salts from crypto/rand. It is safe for concurrent use.
type RandomSaltProvider struct {
	size int
}

// NewRandomSaltProvider creates a salt provider producing salts of sizeBytes random bytes.
// Sizes below DefaultSaltSize are raised to it.
func NewRandomSaltProvider(sizeBytes int) *RandomSaltProvider {
	if sizeBytes < DefaultSaltSize {
		sizeBytes = DefaultSaltSize
	}

	return &RandomSaltProvider{size: sizeBytes}
}

// Salt returns base64url encoded random bytes.
func (p *RandomSaltProvider) Salt() (string, error) {
	b := make([]byte, p.size)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DeterministicSaltProvider produces a reproducible salt sequence derived from a seed.
// It is meant for tests and must not be used in production.
type DeterministicSaltProvider struct {
	seed    string
	counter uint64
}

// NewDeterministicSaltProvider creates a deterministic salt provider for the seed.
func NewDeterministicSaltProvider(seed string) *DeterministicSaltProvider {
	return &DeterministicSaltProvider{seed: seed}
}

// Salt returns the next salt of the sequence.
func (p *DeterministicSaltProvider) Salt() (string, error) {
	n := atomic.AddUint64(&p.counter, 1)

	sum := sha256.Sum256([]byte(p.seed + strconv.FormatUint(n, 10)))

	return base64.RawURLEncoding.EncodeToString(sum[:DefaultSaltSize]), nil
}
