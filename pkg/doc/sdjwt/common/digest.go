/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import "fmt"

// DigestCreator computes disclosure digests and mints decoy digests with one hash algorithm.
type DigestCreator struct {
	Alg   HashAlgorithm
	Salts SaltProvider
}

// NewDigestCreator creates DigestCreator. A nil salt provider is replaced with a random one.
func NewDigestCreator(alg HashAlgorithm, salts SaltProvider) *DigestCreator {
	if salts == nil {
		salts = NewRandomSaltProvider(DefaultSaltSize)
	}

	return &DigestCreator{Alg: alg, Salts: salts}
}

// Digest returns the digest of the disclosure string.
func (c *DigestCreator) Digest(disclosure string) (string, error) {
	return GetHash(c.Alg, disclosure)
}

// Decoy returns a digest over fresh salt with no disclosure behind it.
func (c *DigestCreator) Decoy() (string, error) {
	filler, err := c.Salts.Salt()
	if err != nil {
		return "", fmt.Errorf("generate decoy filler: %w", err)
	}

	return GetHash(c.Alg, filler)
}

// Disclose sets the digest of the disclosure claim and returns it.
func (c *DigestCreator) Disclose(claim *DisclosureClaim) (string, error) {
	digest, err := c.Digest(claim.Disclosure)
	if err != nil {
		return "", err
	}

	claim.Digest = digest

	return digest, nil
}
