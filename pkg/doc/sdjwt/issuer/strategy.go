/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuer

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
)

// DisclosureStrategy decides how the claim tree is split into independently disclosable claims.
// The set of strategies is closed: use FlatStrategy or RecursiveStrategy.
type DisclosureStrategy interface {
	fmt.Stringer

	apply(b *builder, claims map[string]interface{}) (map[string]interface{}, error)
}

// FlatStrategy makes only the top-level claims selectively disclosable.
// Nested objects and arrays are disclosed as whole values.
func FlatStrategy() DisclosureStrategy {
	return flatStrategy{}
}

// RecursiveStrategy makes claims on every level selectively disclosable. Children are processed first, so the
// disclosure of an object or array carries the digests of its own disclosable members.
func RecursiveStrategy() DisclosureStrategy {
	return recursiveStrategy{}
}

type flatStrategy struct{}

func (flatStrategy) String() string {
	return "flat"
}

func (flatStrategy) apply(b *builder, claims map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(claims))

	var digests []string

	for _, k := range sortedKeys(claims) {
		path := common.AppendPath("", k)

		if b.isRegisteredClaim(k) || !b.isSelectivelyDisclosable(path) {
			result[k] = claims[k]

			continue
		}

		digest, err := b.discloseProperty(k, claims[k])
		if err != nil {
			return nil, err
		}

		digests = append(digests, digest)
	}

	if err := b.setDigests(result, digests, ""); err != nil {
		return nil, err
	}

	return result, nil
}

type recursiveStrategy struct{}

func (recursiveStrategy) String() string {
	return "recursive"
}

func (s recursiveStrategy) apply(b *builder, claims map[string]interface{}) (map[string]interface{}, error) {
	return s.processObject(b, claims, "", true)
}

func (s recursiveStrategy) processValue(b *builder, value interface{}, path string) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return s.processObject(b, v, path, false)
	case []interface{}:
		return s.processArray(b, v, path)
	default:
		return value, nil
	}
}

func (s recursiveStrategy) processObject(b *builder, obj map[string]interface{}, path string,
	topLevel bool) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(obj))

	var digests []string

	for _, k := range sortedKeys(obj) {
		if topLevel && b.isRegisteredClaim(k) {
			result[k] = obj[k]

			continue
		}

		childPath := common.AppendPath(path, k)

		transformed, err := s.processValue(b, obj[k], childPath)
		if err != nil {
			return nil, err
		}

		if !b.isSelectivelyDisclosable(childPath) {
			result[k] = transformed

			continue
		}

		digest, err := b.discloseProperty(k, transformed)
		if err != nil {
			return nil, err
		}

		digests = append(digests, digest)
	}

	if err := b.setDigests(result, digests, path); err != nil {
		return nil, err
	}

	return result, nil
}

func (s recursiveStrategy) processArray(b *builder, arr []interface{}, path string) ([]interface{}, error) {
	result := make([]interface{}, 0, len(arr))

	disclosed := 0

	for i, element := range arr {
		elementPath := common.AppendPath(path, strconv.Itoa(i))

		transformed, err := s.processValue(b, element, elementPath)
		if err != nil {
			return nil, err
		}

		if !b.isSelectivelyDisclosable(elementPath) {
			result = append(result, transformed)

			continue
		}

		digest, err := b.discloseElement(transformed)
		if err != nil {
			return nil, err
		}

		result = append(result, arrayElementDigest(digest))
		disclosed++
	}

	return b.insertArrayDecoys(result, DecoyScope{Path: path, Array: true, Disclosed: disclosed})
}

// builder accumulates disclosures while a strategy walks the claim tree.
type builder struct {
	opts        *newOpts
	digests     *common.DigestCreator
	disclosures []*common.DisclosureClaim
	resolved    map[string]bool
}

func newBuilder(opts *newOpts, digests *common.DigestCreator) *builder {
	return &builder{
		opts:     opts,
		digests:  digests,
		resolved: make(map[string]bool),
	}
}

// isSelectivelyDisclosable reports whether the claim at path is flagged.
// Without an explicit list every claim is flagged unless it is excluded.
func (b *builder) isSelectivelyDisclosable(path string) bool {
	if b.opts.sdClaims != nil {
		if b.opts.sdClaims[path] {
			b.resolved[path] = true

			return true
		}

		return false
	}

	if b.opts.nonSDClaims[path] {
		b.resolved[path] = true

		return false
	}

	return true
}

// checkFlagsResolved fails when a listed path was never reached by the strategy, so that a path the strategy
// cannot see is reported instead of being silently ignored.
func (b *builder) checkFlagsResolved() error {
	if b.opts.sdClaims != nil {
		if unresolved := b.unresolved(b.opts.sdClaims, false); len(unresolved) > 0 {
			return fmt.Errorf("%w: claims %v cannot be selectively disclosed with this strategy",
				ErrUnsupportedValueShape, unresolved)
		}

		return nil
	}

	if unresolved := b.unresolved(b.opts.nonSDClaims, true); len(unresolved) > 0 {
		return fmt.Errorf("%w: claims %v cannot be excluded from selective disclosure with this strategy",
			ErrUnsupportedValueShape, unresolved)
	}

	return nil
}

// unresolved lists the paths never reached. Registered claims are always plaintext, so excluding one is a no-op.
func (b *builder) unresolved(paths map[string]bool, allowRegistered bool) []string {
	var unresolved []string

	for path := range paths {
		if b.resolved[path] || allowRegistered && b.isRegisteredClaim(path) {
			continue
		}

		unresolved = append(unresolved, path)
	}

	slices.Sort(unresolved)

	return unresolved
}

func (b *builder) discloseProperty(name string, value interface{}) (string, error) {
	salt, err := b.digests.Salts.Salt()
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	disclosure, err := common.EncodeObjectPropertyDisclosure(salt, name, value, b.opts.jsonMarshal)
	if err != nil {
		return "", fmt.Errorf("create disclosure: %w", err)
	}

	return b.add(disclosure)
}

func (b *builder) discloseElement(value interface{}) (string, error) {
	salt, err := b.digests.Salts.Salt()
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	disclosure, err := common.EncodeArrayElementDisclosure(salt, value, b.opts.jsonMarshal)
	if err != nil {
		return "", fmt.Errorf("create disclosure: %w", err)
	}

	return b.add(disclosure)
}

func (b *builder) add(disclosure *common.DisclosureClaim) (string, error) {
	digest, err := b.digests.Disclose(disclosure)
	if err != nil {
		return "", fmt.Errorf("hash disclosure: %w", err)
	}

	b.disclosures = append(b.disclosures, disclosure)

	return digest, nil
}

// setDigests adds decoys and places the sorted digests under _sd. Nothing is added for an empty list.
func (b *builder) setDigests(obj map[string]interface{}, digests []string, path string) error {
	decoys, err := b.decoys(DecoyScope{Path: path, Disclosed: len(digests)})
	if err != nil {
		return err
	}

	digests = append(digests, decoys...)
	if len(digests) == 0 {
		return nil
	}

	slices.Sort(digests)

	sd := make([]interface{}, len(digests))
	for i, d := range digests {
		sd[i] = d
	}

	obj[common.SDKey] = sd

	return nil
}

func arrayElementDigest(digest string) map[string]interface{} {
	return map[string]interface{}{common.ArrayElementDigestKey: digest}
}

// isRegisteredClaim reports whether the top-level claim is kept in plaintext by the issuer.
func (b *builder) isRegisteredClaim(name string) bool {
	return !b.opts.nestedClaims && slices.Contains(common.RegisteredClaimKeys(), name)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)

	return keys
}
