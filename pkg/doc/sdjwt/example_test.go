/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"

	afjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/holder"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/issuer"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/verifier"
)

const testIssuer = "https://example.com/issuer"

func Example_simpleClaims() {
	signer, signatureVerifier, err := setUp()
	if err != nil {
		fmt.Println("failed to set-up test:", err.Error())
	}

	claims := map[string]interface{}{
		"given_name": "Albert",
		"last_name":  "Smith",
	}

	// Issuer will issue SD-JWT for specified claims.
	token, err := issuer.New(testIssuer, claims, nil, signer)
	if err != nil {
		fmt.Println("failed to issue SD-JWT:", err.Error())
	}

	combinedFormatForIssuance, err := token.Serialize(false)
	if err != nil {
		fmt.Println("failed to issue SD-JWT:", err.Error())
	}

	// Holder will parse combined format for issuance and hold on to that
	// combined format for issuance and the claims that can be selected.
	holderClaims, err := holder.Parse(combinedFormatForIssuance, holder.WithSignatureVerifier(signatureVerifier))
	if err != nil {
		fmt.Println("holder failed to parse SD-JWT:", err.Error())
	}

	// The Holder will only select given_name
	selectedDisclosures := getDisclosuresFromClaimNames([]string{"given_name"}, holderClaims)

	// Holder will disclose only sub-set of claims to verifier.
	combinedFormatForPresentation, err := holder.CreatePresentation(combinedFormatForIssuance, selectedDisclosures)
	if err != nil {
		fmt.Println("holder failed to create presentation:", err.Error())
	}

	// Verifier will validate combined format for presentation and create verified claims.
	verifiedClaims, err := verifier.Parse(combinedFormatForPresentation,
		verifier.WithSignatureVerifier(signatureVerifier))
	if err != nil {
		fmt.Println("verifier failed to parse holder presentation:", err.Error())
	}

	verifiedClaimsJSON, err := marshalObj(verifiedClaims)
	if err != nil {
		fmt.Println("verifier failed to marshal verified claims:", err.Error())
	}

	fmt.Println(verifiedClaimsJSON)

	// Output: {
	//	"given_name": "Albert",
	//	"iss": "https://example.com/issuer"
	// }
}

func Example_recursiveClaimsWithKeyBinding() {
	signer, signatureVerifier, err := setUp()
	if err != nil {
		fmt.Println("failed to set-up test:", err.Error())
	}

	holderSigner, holderJWK, err := setUpHolderBinding()
	if err != nil {
		fmt.Println("failed to set-up test:", err.Error())
	}

	claims := map[string]interface{}{
		"sub":         "john_doe_42",
		"given_name":  "John",
		"family_name": "Doe",
		"address": map[string]interface{}{
			"street_address": "123 Main St",
			"locality":       "Anytown",
			"country":        "US",
		},
		"nationalities": []interface{}{"US", "DE"},
	}

	// With the recursive strategy every member of address and every element of nationalities
	// is selectively disclosable on its own. Holder public key is added as "cnf" claim.
	token, err := issuer.New(testIssuer, claims, nil, signer,
		issuer.WithDisclosureStrategy(issuer.RecursiveStrategy()),
		issuer.WithHolderPublicKey(holderJWK),
		issuer.WithDecoyDigests(true),
	)
	if err != nil {
		fmt.Println("failed to issue SD-JWT:", err.Error())
	}

	combinedFormatForIssuance, err := token.Serialize(false)
	if err != nil {
		fmt.Println("failed to issue SD-JWT:", err.Error())
	}

	// The Holder will only disclose the country of the address and the second nationality.
	selectedDisclosures, err := holder.SelectDisclosures(combinedFormatForIssuance,
		[]string{"address.country", "nationalities.1"}, holder.WithSignatureVerifier(signatureVerifier))
	if err != nil {
		fmt.Println("holder failed to select disclosures:", err.Error())
	}

	combinedFormatForPresentation, err := holder.CreatePresentation(combinedFormatForIssuance, selectedDisclosures,
		holder.WithHolderVerification(&holder.BindingInfo{
			Payload: holder.BindingPayload{
				Nonce:    "nonce",
				Audience: "https://test.com/verifier",
				IssuedAt: jwt.NewNumericDate(time.Now()),
			},
			Signer: holderSigner,
		}))
	if err != nil {
		fmt.Println("holder failed to create presentation:", err.Error())
	}

	// Verifier will validate combined format for presentation and create verified claims.
	result, err := verifier.Verify(combinedFormatForPresentation,
		verifier.WithSignatureVerifier(signatureVerifier),
		verifier.WithHolderVerificationRequired(true),
		verifier.WithExpectedAudienceForHolderVerification("https://test.com/verifier"),
		verifier.WithExpectedNonceForHolderVerification("nonce"),
	)
	if err != nil {
		fmt.Println("verifier failed to parse holder presentation:", err.Error())
	}

	// cnf is different for each run
	delete(result.Claims, common.CNFKey)

	verifiedClaimsJSON, err := marshalObj(result.Claims)
	if err != nil {
		fmt.Println("verifier failed to marshal verified claims:", err.Error())
	}

	fmt.Println(verifiedClaimsJSON)

	// Output: {
	//	"address": {
	//		"country": "US"
	//	},
	//	"iss": "https://example.com/issuer",
	//	"nationalities": [
	//		"DE"
	//	],
	//	"sub": "john_doe_42"
	// }
}

func Example_decoys() {
	signer, signatureVerifier, err := setUp()
	if err != nil {
		fmt.Println("failed to set-up test:", err.Error())
	}

	claims := map[string]interface{}{
		"given_name":  "John",
		"family_name": "Doe",
		"email":       "johndoe@example.com",
	}

	// Two decoy digests are mixed with the three real ones.
	token, err := issuer.New(testIssuer, claims, nil, signer, issuer.WithDecoyCount(2))
	if err != nil {
		fmt.Println("failed to issue SD-JWT:", err.Error())
	}

	combinedFormatForIssuance, err := token.Serialize(false)
	if err != nil {
		fmt.Println("failed to issue SD-JWT:", err.Error())
	}

	holderClaims, err := holder.Parse(combinedFormatForIssuance)
	if err != nil {
		fmt.Println("holder failed to parse SD-JWT:", err.Error())
	}

	combinedFormatForPresentation, err := holder.CreatePresentation(combinedFormatForIssuance,
		getDisclosuresFromClaimNames([]string{"email"}, holderClaims))
	if err != nil {
		fmt.Println("holder failed to create presentation:", err.Error())
	}

	result, err := verifier.Verify(combinedFormatForPresentation, verifier.WithSignatureVerifier(signatureVerifier))
	if err != nil {
		fmt.Println("verifier failed to parse holder presentation:", err.Error())
	}

	fmt.Println(result.Claims["email"])
	fmt.Println(len(result.UnmatchedDigests), "undisclosed digests")

	// Output: johndoe@example.com
	// 4 undisclosed digests
}

func getDisclosuresFromClaimNames(selectedClaimNames []string, claims []*holder.Claim) []string {
	var disclosures []string

	for _, c := range claims {
		if contains(selectedClaimNames, c.Name) {
			disclosures = append(disclosures, c.Disclosure)
		}
	}

	return disclosures
}

func contains(data []string, e string) bool {
	for _, v := range data {
		if v == e {
			return true
		}
	}

	return false
}

func setUp() (afjwt.Signer, afjwt.SignatureVerifier, error) {
	issuerPublicKey, issuerPrivateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	signer, err := afjwt.NewSigner("EdDSA", issuerPrivateKey)
	if err != nil {
		return nil, nil, err
	}

	return signer, afjwt.NewKeyVerifier(issuerPublicKey), nil
}

func setUpHolderBinding() (afjwt.Signer, *jose.JSONWebKey, error) {
	holderPublicKey, holderPrivateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	holderPublicJWK, err := afjwt.PublicJWK(holderPublicKey)
	if err != nil {
		return nil, nil, err
	}

	holderSigner, err := afjwt.NewSigner("EdDSA", holderPrivateKey)
	if err != nil {
		return nil, nil, err
	}

	return holderSigner, holderPublicJWK, nil
}

func marshalObj(obj interface{}) (string, error) {
	objBytes, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	var prettyJSON map[string]interface{}

	if err = json.Unmarshal(objBytes, &prettyJSON); err != nil {
		return "", err
	}

	prettyBytes, err := json.MarshalIndent(prettyJSON, "", "\t")
	if err != nil {
		return "", err
	}

	return string(prettyBytes), nil
}
