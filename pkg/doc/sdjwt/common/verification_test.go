/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDisclosure(t *testing.T, salt, name string, value interface{}) *DisclosureClaim {
	t.Helper()

	var (
		claim *DisclosureClaim
		err   error
	)

	if name == "" {
		claim, err = EncodeArrayElementDisclosure(salt, value, nil)
	} else {
		claim, err = EncodeObjectPropertyDisclosure(salt, name, value, nil)
	}

	require.NoError(t, err)

	decoded, err := DecodeDisclosure(claim.Disclosure)
	require.NoError(t, err)

	alg, err := GetHashAlgorithm(SHA256)
	require.NoError(t, err)

	_, err = NewDigestCreator(alg, nil).Disclose(decoded)
	require.NoError(t, err)

	return decoded
}

func newTestDecoy(t *testing.T) string {
	t.Helper()

	alg, err := GetHashAlgorithm(SHA256)
	require.NoError(t, err)

	decoy, err := NewDigestCreator(alg, nil).Decoy()
	require.NoError(t, err)

	return decoy
}

func TestDiscloseClaims(t *testing.T) {
	givenName := newTestDisclosure(t, "s1", "given_name", "John")
	street := newTestDisclosure(t, "s2", "street_address", "123 Main St")
	fr := newTestDisclosure(t, "s3", "", "FR")
	decoy := newTestDecoy(t)
	arrayDecoy := newTestDecoy(t)

	payload := func() map[string]interface{} {
		return map[string]interface{}{
			SDAlgorithmKey: SHA256,
			"iss":          "https://example.com/issuer",
			SDKey:          []interface{}{givenName.Digest, decoy},
			"address": map[string]interface{}{
				SDKey:     []interface{}{street.Digest},
				"country": "US",
			},
			"nationalities": []interface{}{
				"DE",
				map[string]interface{}{ArrayElementDigestKey: fr.Digest},
				map[string]interface{}{ArrayElementDigestKey: arrayDecoy},
			},
		}
	}

	t.Run("success - all disclosures", func(t *testing.T) {
		result, err := DiscloseClaims(payload(), []*DisclosureClaim{givenName, street, fr})
		require.NoError(t, err)

		require.Equal(t, map[string]interface{}{
			"iss":        "https://example.com/issuer",
			"given_name": "John",
			"address": map[string]interface{}{
				"street_address": "123 Main St",
				"country":        "US",
			},
			"nationalities": []interface{}{"DE", "FR"},
		}, result.Claims)

		require.ElementsMatch(t, []string{decoy, arrayDecoy}, result.UnmatchedDigests)
		require.Len(t, result.Disclosed, 3)

		require.Equal(t, "given_name", givenName.Path)
		require.Equal(t, "address.street_address", street.Path)
		require.Equal(t, "nationalities.1", fr.Path)
	})

	t.Run("success - no disclosures", func(t *testing.T) {
		result, err := DiscloseClaims(payload(), nil)
		require.NoError(t, err)

		require.Equal(t, map[string]interface{}{
			"iss":           "https://example.com/issuer",
			"address":       map[string]interface{}{"country": "US"},
			"nationalities": []interface{}{"DE"},
		}, result.Claims)

		require.ElementsMatch(t, []string{givenName.Digest, decoy, street.Digest, fr.Digest, arrayDecoy},
			result.UnmatchedDigests)
	})

	t.Run("success - array order is kept", func(t *testing.T) {
		b := newTestDisclosure(t, "s4", "", "b")

		result, err := DiscloseClaims(map[string]interface{}{
			"letters": []interface{}{"a", map[string]interface{}{ArrayElementDigestKey: b.Digest}, "c"},
		}, []*DisclosureClaim{b})
		require.NoError(t, err)
		require.Equal(t, []interface{}{"a", "b", "c"}, result.Claims["letters"])
	})

	t.Run("success - nested disclosures", func(t *testing.T) {
		nestedStreet := newTestDisclosure(t, "s5", "street_address", "123 Main St")
		address := newTestDisclosure(t, "s6", "address", map[string]interface{}{
			SDKey:     []interface{}{nestedStreet.Digest},
			"country": "US",
		})

		claims := map[string]interface{}{SDKey: []interface{}{address.Digest}}

		result, err := DiscloseClaims(claims, []*DisclosureClaim{address, nestedStreet})
		require.NoError(t, err)
		require.Equal(t, map[string]interface{}{
			"address": map[string]interface{}{
				"street_address": "123 Main St",
				"country":        "US",
			},
		}, result.Claims)
		require.Equal(t, "address.street_address", nestedStreet.Path)

		// Parent only.
		result, err = DiscloseClaims(claims, []*DisclosureClaim{address})
		require.NoError(t, err)
		require.Equal(t, map[string]interface{}{
			"address": map[string]interface{}{"country": "US"},
		}, result.Claims)
		require.Equal(t, []string{nestedStreet.Digest}, result.UnmatchedDigests)

		// Child without parent is not committed to by the visible claim-set.
		_, err = DiscloseClaims(claims, []*DisclosureClaim{nestedStreet})
		require.ErrorIs(t, err, ErrInvalidDisclosure)
	})

	t.Run("error - disclosure matches nothing", func(t *testing.T) {
		unknown := newTestDisclosure(t, "s7", "family_name", "Doe")

		_, err := DiscloseClaims(payload(), []*DisclosureClaim{givenName, unknown})
		require.ErrorIs(t, err, ErrInvalidDisclosure)

		var disclosureErr *InvalidDisclosureError
		require.True(t, errors.As(err, &disclosureErr))
		require.Equal(t, []string{unknown.Disclosure}, disclosureErr.Disclosures)
	})

	t.Run("error - digest referenced twice", func(t *testing.T) {
		claims := payload()
		claims["address"].(map[string]interface{})[SDKey] = []interface{}{street.Digest, givenName.Digest}

		_, err := DiscloseClaims(claims, nil)
		require.ErrorIs(t, err, ErrInvalidJWT)
		require.Contains(t, err.Error(), "has been included in more than one place")

		claims = payload()
		claims["nationalities"] = []interface{}{
			map[string]interface{}{ArrayElementDigestKey: fr.Digest},
			map[string]interface{}{ArrayElementDigestKey: fr.Digest},
		}

		_, err = DiscloseClaims(claims, nil)
		require.ErrorIs(t, err, ErrInvalidJWT)
	})

	t.Run("error - array element disclosure in _sd", func(t *testing.T) {
		claims := map[string]interface{}{SDKey: []interface{}{fr.Digest}}

		_, err := DiscloseClaims(claims, []*DisclosureClaim{fr})
		require.ErrorIs(t, err, ErrInvalidDisclosure)
	})

	t.Run("error - object property disclosure in array", func(t *testing.T) {
		claims := map[string]interface{}{
			"arr": []interface{}{map[string]interface{}{ArrayElementDigestKey: givenName.Digest}},
		}

		_, err := DiscloseClaims(claims, []*DisclosureClaim{givenName})
		require.ErrorIs(t, err, ErrInvalidDisclosure)
	})

	t.Run("error - claim name already exists", func(t *testing.T) {
		claims := payload()
		claims["given_name"] = "Jane"

		_, err := DiscloseClaims(claims, []*DisclosureClaim{givenName})
		require.ErrorIs(t, err, ErrInvalidDisclosure)
		require.Contains(t, err.Error(), "already exists at the same level")
	})

	t.Run("error - reserved claim name", func(t *testing.T) {
		for _, name := range []string{SDKey, ArrayElementDigestKey, SDAlgorithmKey} {
			reserved := newTestDisclosure(t, "s8", name, "value")

			_, err := DiscloseClaims(map[string]interface{}{SDKey: []interface{}{reserved.Digest}},
				[]*DisclosureClaim{reserved})
			require.ErrorIs(t, err, ErrInvalidDisclosure, name)
		}

		// _sd_alg is reserved at the top level only.
		nested := newTestDisclosure(t, "s9", SDAlgorithmKey, "value")

		_, err := DiscloseClaims(map[string]interface{}{
			"obj": map[string]interface{}{SDKey: []interface{}{nested.Digest}},
		}, []*DisclosureClaim{nested})
		require.NoError(t, err)
	})

	t.Run("error - invalid digest containers", func(t *testing.T) {
		_, err := DiscloseClaims(map[string]interface{}{SDKey: "digest"}, nil)
		require.ErrorIs(t, err, ErrInvalidJWT)

		_, err = DiscloseClaims(map[string]interface{}{SDKey: []interface{}{1}}, nil)
		require.ErrorIs(t, err, ErrInvalidJWT)

		_, err = DiscloseClaims(map[string]interface{}{
			"arr": []interface{}{map[string]interface{}{ArrayElementDigestKey: 1}},
		}, nil)
		require.ErrorIs(t, err, ErrInvalidJWT)
	})
}

func TestCheckUniqueness(t *testing.T) {
	d1 := newTestDisclosure(t, "s1", "given_name", "John")
	d2 := newTestDisclosure(t, "s2", "family_name", "Doe")

	require.NoError(t, CheckUniqueness([]*DisclosureClaim{d1, d2}))

	t.Run("same disclosure twice", func(t *testing.T) {
		err := CheckUniqueness([]*DisclosureClaim{d1, d2, d1})
		require.ErrorIs(t, err, ErrNonUniqueDisclosures)
	})

	t.Run("forced digest collision", func(t *testing.T) {
		collide := HashAlgorithm{Name: "collide", SumFunc: func([]byte) []byte { return []byte("same") }}

		claims, err := DecodeDisclosures([]string{d1.Disclosure, d2.Disclosure})
		require.NoError(t, err)
		require.NoError(t, SetDigests(claims, collide))

		err = CheckUniqueness(claims)
		require.ErrorIs(t, err, ErrNonUniqueDisclosureDigests)
	})
}

func TestCheckRequiredDigests(t *testing.T) {
	d1 := newTestDisclosure(t, "s1", "given_name", "John")
	d2 := newTestDisclosure(t, "s2", "family_name", "Doe")

	result, err := DiscloseClaims(map[string]interface{}{SDKey: []interface{}{d1.Digest, d2.Digest}},
		[]*DisclosureClaim{d1})
	require.NoError(t, err)

	require.NoError(t, CheckRequiredDigests([]string{d1.Digest}, result))

	err = CheckRequiredDigests([]string{d1.Digest, d2.Digest}, result)
	require.ErrorIs(t, err, ErrMissingDigests)

	var missingErr *MissingDigestsError
	require.True(t, errors.As(err, &missingErr))
	require.Equal(t, []string{d2.Digest}, missingErr.Digests)
}

func TestCollectDigests(t *testing.T) {
	street := newTestDisclosure(t, "s1", "street_address", "123 Main St")
	address := newTestDisclosure(t, "s2", "address", map[string]interface{}{
		SDKey: []interface{}{street.Digest},
	})

	claims := map[string]interface{}{
		SDKey: []interface{}{address.Digest, "decoy"},
		"arr": []interface{}{
			map[string]interface{}{ArrayElementDigestKey: "element"},
			map[string]interface{}{"nested": map[string]interface{}{SDKey: []interface{}{"deep"}}},
		},
	}

	require.ElementsMatch(t, []string{address.Digest, "decoy", "element", "deep", street.Digest},
		CollectDigests(claims, []*DisclosureClaim{address}))
}

func TestAppendPath(t *testing.T) {
	require.Equal(t, "a", AppendPath("", "a"))
	require.Equal(t, "a.b", AppendPath("a", "b"))
	require.Equal(t, "a.0", AppendPath("a", "0"))
	require.Equal(t, `a.b\.c`, AppendPath("a", "b.c"))
	require.Equal(t, `\*\?`, AppendPath("", "*?"))
}

func TestErrors(t *testing.T) {
	err := NewKeyBindingError("nonce %q does not match", "abc")
	require.ErrorIs(t, err, ErrKeyBindingFailed)
	require.Contains(t, err.Error(), `nonce "abc" does not match`)

	var kbErr *KeyBindingError
	require.True(t, errors.As(err, &kbErr))
	require.Equal(t, `nonce "abc" does not match`, kbErr.Description)

	err = &InvalidDisclosureError{Disclosures: []string{"d"}, Reason: "reason"}
	require.ErrorIs(t, err, ErrInvalidDisclosure)
	require.Contains(t, err.Error(), "reason")
	require.NotErrorIs(t, err, ErrMalformedDisclosure)

	err = &InvalidDisclosureError{Disclosures: []string{"d"}, Reason: "malformed", Err: ErrMalformedDisclosure}
	require.ErrorIs(t, err, ErrInvalidDisclosure)
	require.ErrorIs(t, err, ErrMalformedDisclosure)
	require.Contains(t, err.Error(), ErrMalformedDisclosure.Error())

	err = &MissingDigestsError{Digests: []string{"a", "b"}}
	require.ErrorIs(t, err, ErrMissingDigests)
	require.Contains(t, err.Error(), "a, b")
}
