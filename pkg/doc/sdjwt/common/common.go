/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("aries-framework/sdjwt/common")

// Reserved claim-set keys.
const (
	// SDKey holds the array of disclosure digests of an object.
	SDKey = "_sd"
	// SDAlgorithmKey names the hash algorithm used for every digest of the claim-set. Top level only.
	SDAlgorithmKey = "_sd_alg"
	// ArrayElementDigestKey is the single key of the object that replaces a selectively disclosable array element.
	ArrayElementDigestKey = "..."
	// CNFKey holds the holder confirmation (public key) used for key binding. Top level only.
	CNFKey = "cnf"
	// SDHashKey holds the digest of the presented SD-JWT in the key binding JWT.
	SDHashKey = "sd_hash"

	// CombinedFormatSeparator separates the parts of the combined formats.
	CombinedFormatSeparator = "~"
)

// Registered claims that are always placed in plaintext at the top level of the claim-set.
const (
	IssuerKey    = "iss"
	SubjectKey   = "sub"
	AudienceKey  = "aud"
	JTIKey       = "jti"
	IssuedAtKey  = "iat"
	NotBeforeKey = "nbf"
	ExpiryKey    = "exp"
)

// ReservedClaimKeys returns keys that may not be used as claim names in any object of the claim tree.
func ReservedClaimKeys() []string {
	return []string{SDKey, ArrayElementDigestKey}
}

// ReservedTopLevelClaimKeys returns keys that may not be used as claim names at the top level of the claim tree.
func ReservedTopLevelClaimKeys() []string {
	return append(ReservedClaimKeys(), SDAlgorithmKey)
}

// RegisteredClaimKeys returns the claims set by the issuer itself at the top level.
func RegisteredClaimKeys() []string {
	return []string{IssuerKey, SubjectKey, AudienceKey, JTIKey, IssuedAtKey, NotBeforeKey, ExpiryKey, CNFKey, SDAlgorithmKey}
}

// IsReservedKey reports whether name is reserved in an object of the claim tree.
func IsReservedKey(name string, topLevel bool) bool {
	keys := ReservedClaimKeys()
	if topLevel {
		keys = ReservedTopLevelClaimKeys()
	}

	for _, k := range keys {
		if k == name {
			return true
		}
	}

	return false
}

// CombinedFormatForIssuance holds SD-JWT and disclosures.
type CombinedFormatForIssuance struct {
	SDJWT       string
	Disclosures []string
}

// Serialize serializes combined format for issuance into "<SD-JWT>~<D.1>~...~<D.N>~" format.
func (cf *CombinedFormatForIssuance) Serialize() string {
	var sb strings.Builder

	sb.WriteString(cf.SDJWT)
	sb.WriteString(CombinedFormatSeparator)

	for _, disclosure := range cf.Disclosures {
		sb.WriteString(disclosure)
		sb.WriteString(CombinedFormatSeparator)
	}

	return sb.String()
}

// CombinedFormatForPresentation holds SD-JWT, disclosures and optional holder verification (key binding JWT).
type CombinedFormatForPresentation struct {
	SDJWT              string
	Disclosures        []string
	HolderVerification string
}

// Serialize serializes combined format for presentation into "<SD-JWT>~<D.1>~...~<D.N>~<KB-JWT>" format.
func (cf *CombinedFormatForPresentation) Serialize() string {
	return cf.SDHashInput() + cf.HolderVerification
}

// SDHashInput returns the presented SD-JWT with its disclosures, the input of the key binding sd_hash.
func (cf *CombinedFormatForPresentation) SDHashInput() string {
	issuance := CombinedFormatForIssuance{SDJWT: cf.SDJWT, Disclosures: cf.Disclosures}

	return issuance.Serialize()
}

// ParseCombinedFormatForIssuance parses combined format for issuance into CombinedFormatForIssuance parts.
func ParseCombinedFormatForIssuance(combinedFormatForIssuance string) *CombinedFormatForIssuance {
	parts := strings.Split(combinedFormatForIssuance, CombinedFormatSeparator)

	var disclosures []string

	for _, part := range parts[1:] {
		if part != "" {
			disclosures = append(disclosures, part)
		}
	}

	return &CombinedFormatForIssuance{SDJWT: parts[0], Disclosures: disclosures}
}

// ParseCombinedFormatForPresentation parses combined format for presentation into CombinedFormatForPresentation parts.
// The last part is the key binding JWT, empty when the holder did not bind the presentation.
func ParseCombinedFormatForPresentation(combinedFormatForPresentation string) *CombinedFormatForPresentation {
	parts := strings.Split(combinedFormatForPresentation, CombinedFormatSeparator)

	cf := &CombinedFormatForPresentation{SDJWT: parts[0]}

	if len(parts) > 1 {
		cf.Disclosures = parts[1 : len(parts)-1]
		cf.HolderVerification = parts[len(parts)-1]
	}

	return cf
}
