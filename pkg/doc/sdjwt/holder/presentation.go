/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"golang.org/x/exp/slices"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
)

// BindingPayload represents holder verification payload.
type BindingPayload struct {
	Nonce    string           `json:"nonce,omitempty"`
	Audience string           `json:"aud,omitempty"`
	IssuedAt *jwt.NumericDate `json:"iat,omitempty"`
	SDHash   string           `json:"sd_hash,omitempty"`
}

// BindingInfo defines holder verification payload and signer.
type BindingInfo struct {
	Payload BindingPayload
	Signer  afgjwt.Signer
	Headers afgjwt.Headers
}

// options holds options for holder.
type options struct {
	holderVerificationInfo *BindingInfo
}

// Option is a holder option.
type Option func(opts *options)

// WithHolderVerification option to set optional holder verification (key binding JWT).
func WithHolderVerification(info *BindingInfo) Option {
	return func(opts *options) {
		opts.holderVerificationInfo = info
	}
}

// WithHolderBinding is an alias of WithHolderVerification.
func WithHolderBinding(info *BindingInfo) Option {
	return WithHolderVerification(info)
}

// CreatePresentation is a convenience method to assemble combined format for presentation
// using selected disclosures (claimsToDisclose) and optional holder verification.
func CreatePresentation(combinedFormatForIssuance string, claimsToDisclose []string,
	opts ...Option) (string, error) {
	hOpts := &options{}

	for _, opt := range opts {
		opt(hOpts)
	}

	cf := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)

	if len(claimsToDisclose) > 0 && len(cf.Disclosures) == 0 {
		return "", fmt.Errorf("no disclosures found in SD-JWT")
	}

	for _, ctd := range claimsToDisclose {
		if !slices.Contains(cf.Disclosures, ctd) {
			return "", fmt.Errorf("disclosure '%s' not found", ctd)
		}
	}

	presentation := &common.CombinedFormatForPresentation{
		SDJWT:       cf.SDJWT,
		Disclosures: claimsToDisclose,
	}

	if hOpts.holderVerificationInfo != nil {
		holderVerification, err := CreateHolderVerification(hOpts.holderVerificationInfo, presentation)
		if err != nil {
			return "", fmt.Errorf("failed to create holder verification: %w", err)
		}

		presentation.HolderVerification = holderVerification
	}

	return presentation.Serialize(), nil
}

// CreateHolderVerification creates the key binding JWT over the presentation. The sd_hash claim is calculated with
// the hash algorithm of the SD-JWT over the SD-JWT and the presented disclosures.
func CreateHolderVerification(info *BindingInfo, presentation *common.CombinedFormatForPresentation) (string, error) {
	if info.Signer == nil {
		return "", fmt.Errorf("holder signer is not defined")
	}

	sdJWT, _, err := afgjwt.Parse(presentation.SDJWT, afgjwt.WithSignatureVerifier(afgjwt.NoopSignatureVerifier{}))
	if err != nil {
		return "", fmt.Errorf("parse SD-JWT: %w", err)
	}

	alg, err := common.GetHashAlgorithmFromClaims(sdJWT.Payload)
	if err != nil {
		return "", err
	}

	payload := info.Payload

	if payload.IssuedAt == nil {
		payload.IssuedAt = jwt.NewNumericDate(time.Now())
	}

	payload.SDHash, err = common.GetHash(alg, presentation.SDHashInput())
	if err != nil {
		return "", fmt.Errorf("calculate sd_hash: %w", err)
	}

	headers := afgjwt.Headers{}
	for k, v := range info.Headers {
		headers[k] = v
	}

	headers[afgjwt.HeaderType] = KeyBindingJWTType

	kbJWT, err := afgjwt.NewSigned(payload, headers, info.Signer)
	if err != nil {
		return "", fmt.Errorf("create JWS: %w", err)
	}

	return kbJWT.Serialize(false)
}
