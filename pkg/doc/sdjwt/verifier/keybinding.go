/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/tidwall/gjson"
	"golang.org/x/exp/slices"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/util/maphelpers"
)

const keyBindingJWTType = "kb+jwt"

// keyBindingPayload represents expected key binding payload.
type keyBindingPayload struct {
	Nonce    string           `json:"nonce,omitempty"`
	Audience jwt.Audience     `json:"aud,omitempty"`
	IssuedAt *jwt.NumericDate `json:"iat,omitempty"`
	SDHash   string           `json:"sd_hash,omitempty"`
}

func verifyKeyBinding(cfp *common.CombinedFormatForPresentation, sdJWTPayload []byte, alg common.HashAlgorithm,
	pOpts *parseOpts) error {
	if cfp.HolderVerification == "" {
		if pOpts.holderVerificationRequired {
			return common.NewKeyBindingError("key binding is required")
		}

		// not required and not present - nothing to do
		return nil
	}

	holderKey, err := getHolderKey(sdJWTPayload)
	if err != nil {
		return err
	}

	// Validate the signature over the Key Binding JWT.
	holderJWT, _, err := afgjwt.Parse(cfp.HolderVerification,
		afgjwt.WithSignatureVerifier(afgjwt.NewKeyVerifier(holderKey)))
	if err != nil {
		return common.NewKeyBindingError("failed to parse key binding JWT: %v", err)
	}

	// Ensure that a signing algorithm was used that was deemed secure for the application.
	if err = common.VerifySigningAlg(holderJWT.Headers, pOpts.holderSigningAlgorithms); err != nil {
		return common.NewKeyBindingError("failed to verify holder signing algorithm: %v", err)
	}

	if err = common.VerifyTyp(holderJWT.Headers, keyBindingJWTType); err != nil {
		return common.NewKeyBindingError("failed to verify typ header: %v", err)
	}

	now := pOpts.now()

	if err = common.VerifyJWT(holderJWT.Payload, now, pOpts.leewayForClaimsValidation); err != nil {
		return common.NewKeyBindingError("invalid key binding JWT time values: %v", err)
	}

	var bindingPayload keyBindingPayload

	if err = maphelpers.DecodeJSONMap(holderJWT.Payload, &bindingPayload); err != nil {
		return common.NewKeyBindingError("decode key binding payload: %v", err)
	}

	if bindingPayload.IssuedAt == nil {
		return common.NewKeyBindingError("iat is missing")
	}

	if pOpts.keyBindingMaxAge > 0 &&
		now.Sub(bindingPayload.IssuedAt.Time()) > pOpts.keyBindingMaxAge+pOpts.leewayForClaimsValidation {
		return common.NewKeyBindingError("key binding JWT issued at %s is older than %s",
			bindingPayload.IssuedAt.Time().UTC(), pOpts.keyBindingMaxAge)
	}

	if pOpts.expectedNonceForHolderVerification != "" &&
		pOpts.expectedNonceForHolderVerification != bindingPayload.Nonce {
		return common.NewKeyBindingError("nonce value '%s' does not match expected nonce value '%s'",
			bindingPayload.Nonce, pOpts.expectedNonceForHolderVerification)
	}

	if pOpts.expectedAudienceForHolderVerification != "" &&
		!slices.Contains(bindingPayload.Audience, pOpts.expectedAudienceForHolderVerification) {
		return common.NewKeyBindingError("audience value '%v' does not match expected audience value '%s'",
			bindingPayload.Audience, pOpts.expectedAudienceForHolderVerification)
	}

	return verifySDHash(cfp, bindingPayload.SDHash, alg)
}

func verifySDHash(cfp *common.CombinedFormatForPresentation, sdHash string, alg common.HashAlgorithm) error {
	if sdHash == "" {
		return common.NewKeyBindingError("%s is missing", common.SDHashKey)
	}

	expected, err := common.GetHash(alg, cfp.SDHashInput())
	if err != nil {
		return fmt.Errorf("calculate %s: %w", common.SDHashKey, err)
	}

	if expected != sdHash {
		return common.NewKeyBindingError("%s does not match the presentation", common.SDHashKey)
	}

	return nil
}

// getHolderKey reads the holder public key from the cnf claim of the verified SD-JWT payload.
// Only the "jwk" confirmation method is accepted; "jwe", "jku" and "kid" fail with ErrInvalidJWK.
func getHolderKey(sdJWTPayload []byte) (*jose.JSONWebKey, error) {
	jwkJSON := gjson.GetBytes(sdJWTPayload, common.CNFKey+".jwk")
	if !jwkJSON.Exists() || !jwkJSON.IsObject() {
		return nil, fmt.Errorf("%w: jwk must be present in cnf", common.ErrInvalidJWK)
	}

	var jwk jose.JSONWebKey

	if err := jwk.UnmarshalJSON([]byte(jwkJSON.Raw)); err != nil {
		return nil, fmt.Errorf("%w: unmarshal jwk: %v", common.ErrInvalidJWK, err)
	}

	if !jwk.IsPublic() {
		public := jwk.Public()
		jwk = public
	}

	if !jwk.Valid() {
		return nil, fmt.Errorf("%w: jwk is not a valid public key", common.ErrInvalidJWK)
	}

	return &jwk, nil
}
