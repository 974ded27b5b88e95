/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/issuer"
)

const (
	testIssuer   = "https://example.com/issuer"
	testAudience = "https://test.com/verifier"
	testNonce    = "nonce"
)

func testClaims() map[string]interface{} {
	return map[string]interface{}{
		"given_name":  "John",
		"family_name": "Doe",
		"address": map[string]interface{}{
			"street_address": "123 Main St",
			"country":        "US",
		},
		"nationalities": []interface{}{"DE", "FR"},
	}
}

func issue(t *testing.T, signer afgjwt.Signer, opts ...issuer.NewOpt) string {
	t.Helper()

	token, err := issuer.New(testIssuer, testClaims(), nil, signer, opts...)
	require.NoError(t, err)

	combinedFormatForIssuance, err := token.Serialize(false)
	require.NoError(t, err)

	return combinedFormatForIssuance
}

func claimByPath(claims []*Claim, path string) *Claim {
	for _, c := range claims {
		if c.Path == path {
			return c
		}
	}

	return nil
}

func TestParse(t *testing.T) {
	r := require.New(t)

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	r.NoError(err)

	signer, err := afgjwt.NewSigner("EdDSA", privKey)
	r.NoError(err)

	combinedFormatForIssuance := issue(t, signer)

	t.Run("success", func(t *testing.T) {
		claims, err := Parse(combinedFormatForIssuance)
		r.NoError(err)
		r.Len(claims, 4)

		givenName := claimByPath(claims, "given_name")
		r.NotNil(givenName)
		r.Equal("given_name", givenName.Name)
		r.Equal("John", givenName.Value)
		r.NotEmpty(givenName.Digest)
		r.NotEmpty(givenName.Disclosure)
	})

	t.Run("success - with signature verifier", func(t *testing.T) {
		claims, err := Parse(combinedFormatForIssuance, WithSignatureVerifier(afgjwt.NewKeyVerifier(pubKey)))
		r.NoError(err)
		r.Len(claims, 4)
	})

	t.Run("success - recursive disclosures have paths", func(t *testing.T) {
		cfi := issue(t, signer, issuer.WithDisclosureStrategy(issuer.RecursiveStrategy()))

		claims, err := Parse(cfi)
		r.NoError(err)
		r.Len(claims, 8)

		country := claimByPath(claims, "address.country")
		r.NotNil(country)
		r.Equal("US", country.Value)

		fr := claimByPath(claims, "nationalities.1")
		r.NotNil(fr)
		r.Empty(fr.Name)
		r.Equal("FR", fr.Value)
	})

	t.Run("success - SD-JWT validation", func(t *testing.T) {
		claims, err := Parse(combinedFormatForIssuance,
			WithSignatureVerifier(afgjwt.NewKeyVerifier(pubKey)),
			WithSDJWTValidation(true))
		r.NoError(err)
		r.Len(claims, 4)
	})

	t.Run("error - SD-JWT validation", func(t *testing.T) {
		expired := issue(t, signer, issuer.WithExpiry(jwt.NewNumericDate(time.Now().Add(-time.Hour))))

		_, err := Parse(expired, WithSDJWTValidation(true))
		r.ErrorIs(err, common.ErrExpiredJWT)

		_, err = Parse(combinedFormatForIssuance, WithSDJWTValidation(true),
			WithIssuerSigningAlgorithms([]string{"ES256"}))
		r.ErrorIs(err, common.ErrInvalidJWT)

		_, err = Parse(combinedFormatForIssuance, WithSDJWTValidation(true),
			WithExpectedTypHeader("vc+sd-jwt"))
		r.ErrorIs(err, common.ErrInvalidJWT)

		_, err = Parse(expired, WithSDJWTValidation(true),
			WithCurrentTime(func() time.Time { return time.Now().Add(-2 * time.Hour) }),
			WithLeewayForClaimsValidation(time.Minute))
		r.NoError(err)
	})

	t.Run("error - invalid signature", func(t *testing.T) {
		otherPubKey, _, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		_, err = Parse(combinedFormatForIssuance, WithSignatureVerifier(afgjwt.NewKeyVerifier(otherPubKey)))
		r.ErrorIs(err, afgjwt.ErrInvalidSignature)
	})

	t.Run("error - not a JWT", func(t *testing.T) {
		_, err := Parse("not-a-jwt~")
		r.ErrorIs(err, afgjwt.ErrMalformed)
	})

	t.Run("error - disclosure not found in SD-JWT", func(t *testing.T) {
		foreign := issue(t, signer)
		foreignCFI := common.ParseCombinedFormatForIssuance(foreign)

		cfi := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)
		cfi.Disclosures = append(cfi.Disclosures, foreignCFI.Disclosures[0])

		_, err := Parse(cfi.Serialize())
		r.ErrorIs(err, common.ErrInvalidDisclosure)
	})

	t.Run("error - duplicate disclosure", func(t *testing.T) {
		cfi := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)
		cfi.Disclosures = append(cfi.Disclosures, cfi.Disclosures[0])

		_, err := Parse(cfi.Serialize())
		r.ErrorIs(err, common.ErrNonUniqueDisclosures)
	})

	t.Run("error - malformed disclosure", func(t *testing.T) {
		_, err := Parse(combinedFormatForIssuance + "!!!~")
		r.ErrorIs(err, common.ErrMalformedDisclosure)
	})
}

func TestSelectDisclosures(t *testing.T) {
	r := require.New(t)

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	r.NoError(err)

	signer, err := afgjwt.NewSigner("EdDSA", privKey)
	r.NoError(err)

	cfi := issue(t, signer, issuer.WithDisclosureStrategy(issuer.RecursiveStrategy()))

	claims, err := Parse(cfi)
	r.NoError(err)

	disclosureOf := func(path string) string {
		c := claimByPath(claims, path)
		r.NotNil(c)

		return c.Disclosure
	}

	t.Run("success - top-level claim", func(t *testing.T) {
		disclosures, err := SelectDisclosures(cfi, []string{"given_name"})
		r.NoError(err)
		r.Equal([]string{disclosureOf("given_name")}, disclosures)
	})

	t.Run("success - nested claim includes its parent", func(t *testing.T) {
		disclosures, err := SelectDisclosures(cfi, []string{"address.country"})
		r.NoError(err)
		r.Len(disclosures, 2)
		r.Contains(disclosures, disclosureOf("address"))
		r.Contains(disclosures, disclosureOf("address.country"))
	})

	t.Run("success - object claim includes its members", func(t *testing.T) {
		disclosures, err := SelectDisclosures(cfi, []string{"address"})
		r.NoError(err)
		r.Len(disclosures, 3)
		r.Contains(disclosures, disclosureOf("address.street_address"))
	})

	t.Run("success - array element", func(t *testing.T) {
		disclosures, err := SelectDisclosures(cfi, []string{"nationalities.1"})
		r.NoError(err)
		r.Len(disclosures, 2)
		r.Contains(disclosures, disclosureOf("nationalities"))
		r.Contains(disclosures, disclosureOf("nationalities.1"))
		r.NotContains(disclosures, disclosureOf("nationalities.0"))
	})

	t.Run("success - disclosures keep issuance order", func(t *testing.T) {
		disclosures, err := SelectDisclosures(cfi, []string{"given_name", "family_name"})
		r.NoError(err)
		r.Len(disclosures, 2)

		issued := common.ParseCombinedFormatForIssuance(cfi).Disclosures
		first := strings.Index(strings.Join(issued, "~"), disclosures[0])
		second := strings.Index(strings.Join(issued, "~"), disclosures[1])
		r.Less(first, second)
	})

	t.Run("error - claim not found", func(t *testing.T) {
		_, err := SelectDisclosures(cfi, []string{"address.city"})
		r.EqualError(err, "claim 'address.city' not found")
	})

	t.Run("error - parse", func(t *testing.T) {
		_, err := SelectDisclosures("invalid", []string{"given_name"})
		r.Error(err)
	})
}

func TestCreatePresentation(t *testing.T) {
	r := require.New(t)

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	r.NoError(err)

	signer, err := afgjwt.NewSigner("EdDSA", privKey)
	r.NoError(err)

	holderPubKey, holderPrivKey, err := ed25519.GenerateKey(rand.Reader)
	r.NoError(err)

	holderSigner, err := afgjwt.NewSigner("EdDSA", holderPrivKey)
	r.NoError(err)

	combinedFormatForIssuance := issue(t, signer)
	cfi := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)

	t.Run("success - all disclosures", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, cfi.Disclosures)
		r.NoError(err)
		r.Equal(combinedFormatForIssuance, combinedFormatForPresentation)

		cfp := common.ParseCombinedFormatForPresentation(combinedFormatForPresentation)
		r.Equal(cfi.Disclosures, cfp.Disclosures)
		r.Empty(cfp.HolderVerification)
	})

	t.Run("success - no disclosures", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, nil)
		r.NoError(err)
		r.Equal(cfi.SDJWT+common.CombinedFormatSeparator, combinedFormatForPresentation)
	})

	t.Run("success - with holder verification", func(t *testing.T) {
		issuedAt := jwt.NewNumericDate(time.Now())

		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, cfi.Disclosures[:1],
			WithHolderVerification(&BindingInfo{
				Payload: BindingPayload{
					Nonce:    testNonce,
					Audience: testAudience,
					IssuedAt: issuedAt,
				},
				Signer: holderSigner,
			}))
		r.NoError(err)

		cfp := common.ParseCombinedFormatForPresentation(combinedFormatForPresentation)
		r.Equal(cfi.Disclosures[:1], cfp.Disclosures)
		r.NotEmpty(cfp.HolderVerification)

		kbJWT, _, err := afgjwt.Parse(cfp.HolderVerification,
			afgjwt.WithSignatureVerifier(afgjwt.NewKeyVerifier(holderPubKey)))
		r.NoError(err)

		typ, ok := kbJWT.Headers.Type()
		r.True(ok)
		r.Equal(KeyBindingJWTType, typ)

		var payload BindingPayload
		r.NoError(kbJWT.DecodeClaims(&payload))
		r.Equal(testNonce, payload.Nonce)
		r.Equal(testAudience, payload.Audience)
		r.Equal(*issuedAt, *payload.IssuedAt)

		alg, err := common.GetHashAlgorithm(common.DefaultHashAlgorithm)
		r.NoError(err)

		expectedHash, err := common.GetHash(alg, cfp.SDHashInput())
		r.NoError(err)
		r.Equal(expectedHash, payload.SDHash)
	})

	t.Run("success - holder binding alias sets issued at", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, nil,
			WithHolderBinding(&BindingInfo{
				Payload: BindingPayload{Nonce: testNonce, Audience: testAudience},
				Signer:  holderSigner,
				Headers: afgjwt.Headers{afgjwt.HeaderType: "JWT", afgjwt.HeaderKeyID: "holder-key"},
			}))
		r.NoError(err)

		cfp := common.ParseCombinedFormatForPresentation(combinedFormatForPresentation)
		r.Empty(cfp.Disclosures)

		kbJWT, _, err := afgjwt.Parse(cfp.HolderVerification,
			afgjwt.WithSignatureVerifier(afgjwt.NewKeyVerifier(holderPubKey)))
		r.NoError(err)

		r.Equal(KeyBindingJWTType, kbJWT.LookupStringHeader(afgjwt.HeaderType))
		r.Equal("holder-key", kbJWT.LookupStringHeader(afgjwt.HeaderKeyID))

		var payload BindingPayload
		r.NoError(kbJWT.DecodeClaims(&payload))
		r.NotNil(payload.IssuedAt)
	})

	t.Run("error - disclosure not found", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance,
			[]string{"non_existent"})
		r.Error(err)
		r.Empty(combinedFormatForPresentation)
		r.Contains(err.Error(), "disclosure 'non_existent' not found")
	})

	t.Run("error - no disclosures in SD-JWT", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(cfi.SDJWT+common.CombinedFormatSeparator,
			[]string{"non_existent"})
		r.Error(err)
		r.Empty(combinedFormatForPresentation)
		r.Contains(err.Error(), "no disclosures found in SD-JWT")
	})

	t.Run("error - holder signer is not defined", func(t *testing.T) {
		_, err := CreatePresentation(combinedFormatForIssuance, cfi.Disclosures,
			WithHolderVerification(&BindingInfo{Payload: BindingPayload{Nonce: testNonce}}))
		r.Error(err)
		r.Contains(err.Error(), "holder signer is not defined")
	})

	t.Run("error - SD-JWT cannot be parsed", func(t *testing.T) {
		_, err := CreatePresentation("invalid~", nil,
			WithHolderVerification(&BindingInfo{Signer: holderSigner}))
		r.Error(err)
		r.Contains(err.Error(), "failed to create holder verification")
	})
}
