/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DisclosureResult is the outcome of matching disclosures against a signed claim-set.
type DisclosureResult struct {
	// Claims is the reconstructed claim tree, free of digests and SD-JWT specific keys.
	Claims map[string]interface{}
	// Disclosed holds the matched disclosures, in the order they were found, with Path set.
	Disclosed []*DisclosureClaim
	// UnmatchedDigests holds the digests without a presented disclosure. Decoys are among them.
	UnmatchedDigests []string
}

// CheckUniqueness rejects disclosures that are presented twice or that share a digest.
// Digests must be set.
func CheckUniqueness(claims []*DisclosureClaim) error {
	disclosures := make(map[string]struct{}, len(claims))
	digests := make(map[string]struct{}, len(claims))

	for _, claim := range claims {
		if _, ok := disclosures[claim.Disclosure]; ok {
			return ErrNonUniqueDisclosures
		}

		disclosures[claim.Disclosure] = struct{}{}

		if _, ok := digests[claim.Digest]; ok {
			return fmt.Errorf("%w: digest '%s'", ErrNonUniqueDisclosureDigests, claim.Digest)
		}

		digests[claim.Digest] = struct{}{}
	}

	return nil
}

// DiscloseClaims substitutes every digest reference of the claim-set that is matched by a disclosure with the
// disclosed claim, recursively, and drops unmatched references. Disclosure digests must be set.
func DiscloseClaims(claims map[string]interface{}, disclosures []*DisclosureClaim) (*DisclosureResult, error) {
	recData := &recursiveData{
		disclosures: make(map[string]*DisclosureClaim, len(disclosures)),
		seen:        make(map[string]struct{}),
	}

	for _, d := range disclosures {
		recData.disclosures[d.Digest] = d
	}

	reconstructed, err := recData.discloseObject(claims, "", true)
	if err != nil {
		return nil, err
	}

	var unused []string

	for _, d := range disclosures {
		if !slices.ContainsFunc(recData.disclosed, func(c *DisclosureClaim) bool { return c == d }) {
			unused = append(unused, d.Disclosure)
		}
	}

	if len(unused) > 0 {
		return nil, &InvalidDisclosureError{
			Disclosures: unused,
			Reason:      "digest not found in SD-JWT",
		}
	}

	logger.Debugf("disclosed %d claim(s), %d digest(s) left undisclosed", len(recData.disclosed), len(recData.unmatched))

	return &DisclosureResult{
		Claims:           reconstructed,
		Disclosed:        recData.disclosed,
		UnmatchedDigests: recData.unmatched,
	}, nil
}

// CheckRequiredDigests returns MissingDigestsError listing required digests that were not disclosed.
func CheckRequiredDigests(required []string, result *DisclosureResult) error {
	var missing []string

	for _, digest := range required {
		if !slices.ContainsFunc(result.Disclosed, func(c *DisclosureClaim) bool { return c.Digest == digest }) {
			missing = append(missing, digest)
		}
	}

	if len(missing) > 0 {
		return &MissingDigestsError{Digests: missing}
	}

	return nil
}

type recursiveData struct {
	disclosures map[string]*DisclosureClaim
	seen        map[string]struct{}
	disclosed   []*DisclosureClaim
	unmatched   []string
}

// reference marks the digest as referenced and returns its disclosure, if presented.
func (r *recursiveData) reference(digest string) (*DisclosureClaim, bool, error) {
	if _, ok := r.seen[digest]; ok {
		// If any digests were found more than once, the SD-JWT MUST be rejected.
		return nil, false, fmt.Errorf("%w: digest '%s' has been included in more than one place", ErrInvalidJWT, digest)
	}

	r.seen[digest] = struct{}{}

	d, ok := r.disclosures[digest]
	if !ok {
		r.unmatched = append(r.unmatched, digest)
	}

	return d, ok, nil
}

func (r *recursiveData) discloseValue(value interface{}, path string) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return r.discloseObject(v, path, false)
	case []interface{}:
		return r.discloseArray(v, path)
	default:
		return value, nil
	}
}

func (r *recursiveData) discloseObject(obj map[string]interface{}, path string, topLevel bool) (map[string]interface{}, error) { // nolint:lll
	newValues := make(map[string]interface{}, len(obj))

	keys := maps.Keys(obj)
	slices.Sort(keys)

	for _, k := range keys {
		if k == SDKey || (topLevel && k == SDAlgorithmKey) {
			continue
		}

		newValue, err := r.discloseValue(obj[k], AppendPath(path, k))
		if err != nil {
			return nil, err
		}

		newValues[k] = newValue
	}

	sdIface, ok := obj[SDKey]
	if !ok {
		return newValues, nil
	}

	digests, err := stringArray(sdIface)
	if err != nil {
		return nil, fmt.Errorf("%w: get disclosure digests: %v", ErrInvalidJWT, err)
	}

	for _, digest := range digests {
		d, found, err := r.reference(digest)
		if err != nil {
			return nil, err
		}

		if !found {
			continue
		}

		if d.Type != DisclosureClaimTypeObjectProperty {
			// The disclosure for a digest of an object's _sd key MUST be an array of three elements.
			return nil, &InvalidDisclosureError{
				Disclosures: []string{d.Disclosure},
				Reason:      fmt.Sprintf("%s disclosure referenced from %s", d.Type, SDKey),
			}
		}

		if IsReservedKey(d.Name, topLevel) {
			return nil, &InvalidDisclosureError{
				Disclosures: []string{d.Disclosure},
				Reason:      fmt.Sprintf("reserved claim name '%s'", d.Name),
			}
		}

		// If the claim name already exists at the same level, the SD-JWT MUST be rejected.
		if _, exists := newValues[d.Name]; exists {
			return nil, &InvalidDisclosureError{
				Disclosures: []string{d.Disclosure},
				Reason:      fmt.Sprintf("claim name '%s' already exists at the same level", d.Name),
			}
		}

		d.Path = AppendPath(path, d.Name)
		r.disclosed = append(r.disclosed, d)

		newValue, err := r.discloseValue(d.Value, d.Path)
		if err != nil {
			return nil, err
		}

		newValues[d.Name] = newValue
	}

	return newValues, nil
}

func (r *recursiveData) discloseArray(arr []interface{}, path string) ([]interface{}, error) {
	newValues := make([]interface{}, 0, len(arr))

	for _, element := range arr {
		digest, isDigest, err := arrayElementDigest(element)
		if err != nil {
			return nil, err
		}

		elementPath := AppendPath(path, strconv.Itoa(len(newValues)))

		if !isDigest {
			newValue, err := r.discloseValue(element, elementPath)
			if err != nil {
				return nil, err
			}

			newValues = append(newValues, newValue)

			continue
		}

		d, found, err := r.reference(digest)
		if err != nil {
			return nil, err
		}

		if !found {
			continue
		}

		if d.Type != DisclosureClaimTypeArrayElement {
			// The disclosure for an array element digest MUST be an array of two elements.
			return nil, &InvalidDisclosureError{
				Disclosures: []string{d.Disclosure},
				Reason:      fmt.Sprintf("%s disclosure referenced from array element", d.Type),
			}
		}

		d.Path = elementPath
		r.disclosed = append(r.disclosed, d)

		newValue, err := r.discloseValue(d.Value, d.Path)
		if err != nil {
			return nil, err
		}

		newValues = append(newValues, newValue)
	}

	return newValues, nil
}

// arrayElementDigest recognizes the {"...": "<digest>"} array element.
func arrayElementDigest(element interface{}) (string, bool, error) {
	obj, ok := element.(map[string]interface{})
	if !ok || len(obj) != 1 {
		return "", false, nil
	}

	digestIface, ok := obj[ArrayElementDigestKey]
	if !ok {
		return "", false, nil
	}

	digest, ok := digestIface.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: array element digest type[%T] must be string", ErrInvalidJWT, digestIface)
	}

	return digest, true, nil
}

// CollectDigests returns every digest reference of the claim tree, including the ones carried inside disclosures.
func CollectDigests(claims map[string]interface{}, disclosures []*DisclosureClaim) []string {
	var digests []string

	collectDigests(claims, &digests)

	for _, d := range disclosures {
		collectDigests(d.Value, &digests)
	}

	return digests
}

func collectDigests(value interface{}, digests *[]string) {
	switch v := value.(type) {
	case map[string]interface{}:
		if sd, err := stringArray(v[SDKey]); err == nil {
			*digests = append(*digests, sd...)
		}

		for k, child := range v {
			if k != SDKey {
				collectDigests(child, digests)
			}
		}
	case []interface{}:
		for _, element := range v {
			if digest, ok, _ := arrayElementDigest(element); ok { // nolint:errcheck
				*digests = append(*digests, digest)

				continue
			}

			collectDigests(element, digests)
		}
	}
}

func stringArray(entry interface{}) ([]string, error) {
	if entry == nil {
		return nil, nil
	}

	entries, ok := entry.([]interface{})
	if !ok {
		return nil, fmt.Errorf("entry type[%T] is not an array", entry)
	}

	var result []string

	for _, e := range entries {
		if eStr, ok := e.(string); ok {
			result = append(result, eStr)
		} else {
			return nil, fmt.Errorf("entry item type[%T] is not a string", e)
		}
	}

	return result, nil
}

// AppendPath appends a segment to a claim path in gjson syntax, escaping gjson special characters.
func AppendPath(path, segment string) string {
	var sb strings.Builder

	for _, c := range segment {
		if strings.ContainsRune(`\.*?|#@!`, c) {
			sb.WriteRune('\\')
		}

		sb.WriteRune(c)
	}

	if path == "" {
		return sb.String()
	}

	return path + "." + sb.String()
}
