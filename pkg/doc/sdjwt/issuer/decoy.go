/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuer

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	decoyMinElements = 1
	decoyMaxElements = 4
)

// DecoyScope describes the object or array that receives decoy digests.
type DecoyScope struct {
	// Path of the object or array, empty for the top level.
	Path string
	// Array is true when decoys are interspersed among array elements.
	Array bool
	// Disclosed is the number of real digests in the scope.
	Disclosed int
}

// DecoyPolicy returns the number of decoy digests to add to the scope.
type DecoyPolicy func(scope DecoyScope) int

// WithDecoyDigests is an option for adding decoy digests (default is false).
// Every object or array with selectively disclosable claims gets a random number of decoys, from 1 to 4.
func WithDecoyDigests(flag bool) NewOpt {
	return func(opts *newOpts) {
		if !flag {
			opts.decoyPolicy = nil

			return
		}

		opts.decoyPolicy = func(scope DecoyScope) int {
			if scope.Disclosed == 0 {
				return 0
			}

			n, err := randomInt(decoyMaxElements - decoyMinElements + 1)
			if err != nil {
				return decoyMaxElements
			}

			return n + decoyMinElements
		}
	}
}

// WithDecoyCount is an option for adding exactly n decoy digests to every object or array with selectively
// disclosable claims.
func WithDecoyCount(n int) NewOpt {
	return func(opts *newOpts) {
		opts.decoyPolicy = func(scope DecoyScope) int {
			if scope.Disclosed == 0 {
				return 0
			}

			return n
		}
	}
}

// WithDecoyPolicy is an option for deciding the number of decoy digests per object or array.
// The policy is called for every object and, with the recursive strategy, every array.
func WithDecoyPolicy(policy DecoyPolicy) NewOpt {
	return func(opts *newOpts) {
		opts.decoyPolicy = policy
	}
}

// decoys mints the decoy digests for the scope. Decoys are not retained anywhere else.
func (b *builder) decoys(scope DecoyScope) ([]string, error) {
	if b.opts.decoyPolicy == nil {
		return nil, nil
	}

	n := b.opts.decoyPolicy(scope)
	if n <= 0 {
		return nil, nil
	}

	decoys := make([]string, 0, n)

	for i := 0; i < n; i++ {
		decoy, err := b.digests.Decoy()
		if err != nil {
			return nil, fmt.Errorf("failed to create decoy digest: %w", err)
		}

		decoys = append(decoys, decoy)
	}

	return decoys, nil
}

// insertArrayDecoys places decoy wrappers at random positions without reordering the elements.
func (b *builder) insertArrayDecoys(elements []interface{}, scope DecoyScope) ([]interface{}, error) {
	decoys, err := b.decoys(scope)
	if err != nil {
		return nil, err
	}

	for _, decoy := range decoys {
		pos, err := randomInt(len(elements) + 1)
		if err != nil {
			return nil, fmt.Errorf("choose decoy position: %w", err)
		}

		elements = append(elements, nil)
		copy(elements[pos+1:], elements[pos:])
		elements[pos] = arrayElementDigest(decoy)
	}

	return elements, nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}

	return int(v.Int64()), nil
}
