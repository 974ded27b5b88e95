/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3/json"
)

const (
	disclosureElementsAmountForArrayElement   = 2
	disclosureElementsAmountForObjectProperty = 3

	saltPosition                   = 0
	objectPropertyNamePosition     = 1
	objectPropertyValuePosition    = 2
	arrayElementDisclosureValuePos = 1
)

// ErrMalformedDisclosure is returned when a disclosure cannot be encoded or decoded.
var ErrMalformedDisclosure = errors.New("malformed disclosure")

// DisclosureClaimType disclosure claim type, used for parsing and reconstruction.
type DisclosureClaimType int

const (
	// DisclosureClaimTypeUnknown is the zero value.
	DisclosureClaimTypeUnknown = DisclosureClaimType(iota)
	// DisclosureClaimTypeObjectProperty is a [salt, name, value] disclosure of an object member.
	DisclosureClaimTypeObjectProperty
	// DisclosureClaimTypeArrayElement is a [salt, value] disclosure of an array element.
	DisclosureClaimTypeArrayElement
)

func (t DisclosureClaimType) String() string {
	switch t {
	case DisclosureClaimTypeObjectProperty:
		return "object property"
	case DisclosureClaimTypeArrayElement:
		return "array element"
	default:
		return "unknown"
	}
}

// DisclosureClaim defines claim.
type DisclosureClaim struct {
	Digest     string
	Disclosure string
	Salt       string
	// Name is empty for array element disclosures.
	Name  string
	Value interface{}
	Type  DisclosureClaimType
	// Path is the claim path in the reconstructed claim tree, set during reconstruction.
	Path string
}

// MarshalFunc serializes the disclosure array.
type MarshalFunc func(v interface{}) ([]byte, error)

// EncodeObjectPropertyDisclosure creates the [salt, name, value] disclosure of an object member.
func EncodeObjectPropertyDisclosure(salt, name string, value interface{}, marshal MarshalFunc) (*DisclosureClaim, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: object property disclosure requires a claim name", ErrMalformedDisclosure)
	}

	disclosure, err := encodeDisclosure([]interface{}{salt, name, value}, marshal)
	if err != nil {
		return nil, err
	}

	return &DisclosureClaim{
		Disclosure: disclosure,
		Salt:       salt,
		Name:       name,
		Value:      value,
		Type:       DisclosureClaimTypeObjectProperty,
	}, nil
}

// EncodeArrayElementDisclosure creates the [salt, value] disclosure of an array element.
func EncodeArrayElementDisclosure(salt string, value interface{}, marshal MarshalFunc) (*DisclosureClaim, error) {
	disclosure, err := encodeDisclosure([]interface{}{salt, value}, marshal)
	if err != nil {
		return nil, err
	}

	return &DisclosureClaim{
		Disclosure: disclosure,
		Salt:       salt,
		Value:      value,
		Type:       DisclosureClaimTypeArrayElement,
	}, nil
}

func encodeDisclosure(elements []interface{}, marshal MarshalFunc) (string, error) {
	if marshal == nil {
		marshal = json.Marshal
	}

	disclosureBytes, err := marshal(elements)
	if err != nil {
		return "", fmt.Errorf("%w: marshal disclosure: %v", ErrMalformedDisclosure, err)
	}

	return base64.RawURLEncoding.EncodeToString(disclosureBytes), nil
}

// DecodeDisclosure parses the disclosure string. Numbers are decoded as json.Number.
func DecodeDisclosure(disclosure string) (*DisclosureClaim, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(disclosure)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode disclosure: %v", ErrMalformedDisclosure, err)
	}

	var disclosureArr []interface{}

	d := json.NewDecoder(bytes.NewReader(decoded))
	d.UseNumber()

	if err = d.Decode(&disclosureArr); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal disclosure array: %v", ErrMalformedDisclosure, err)
	}

	if d.More() {
		return nil, fmt.Errorf("%w: trailing data after disclosure array", ErrMalformedDisclosure)
	}

	if len(disclosureArr) != disclosureElementsAmountForArrayElement &&
		len(disclosureArr) != disclosureElementsAmountForObjectProperty {
		return nil, fmt.Errorf("%w: disclosure array size[%d] must be %d or %d", ErrMalformedDisclosure,
			len(disclosureArr), disclosureElementsAmountForArrayElement, disclosureElementsAmountForObjectProperty)
	}

	salt, ok := disclosureArr[saltPosition].(string)
	if !ok {
		return nil, fmt.Errorf("%w: disclosure salt type[%T] must be string", ErrMalformedDisclosure,
			disclosureArr[saltPosition])
	}

	claim := &DisclosureClaim{
		Disclosure: disclosure,
		Salt:       salt,
	}

	if len(disclosureArr) == disclosureElementsAmountForArrayElement {
		claim.Type = DisclosureClaimTypeArrayElement
		claim.Value = disclosureArr[arrayElementDisclosureValuePos]

		return claim, nil
	}

	name, ok := disclosureArr[objectPropertyNamePosition].(string)
	if !ok {
		return nil, fmt.Errorf("%w: disclosure name type[%T] must be string", ErrMalformedDisclosure,
			disclosureArr[objectPropertyNamePosition])
	}

	claim.Type = DisclosureClaimTypeObjectProperty
	claim.Name = name
	claim.Value = disclosureArr[objectPropertyValuePosition]

	return claim, nil
}

// DecodeDisclosures parses every disclosure string, keeping the order.
func DecodeDisclosures(disclosures []string) ([]*DisclosureClaim, error) {
	claims := make([]*DisclosureClaim, 0, len(disclosures))

	for _, disclosure := range disclosures {
		claim, err := DecodeDisclosure(disclosure)
		if err != nil {
			return nil, err
		}

		claims = append(claims, claim)
	}

	return claims, nil
}

// SetDigests computes the digest of every disclosure with the hash algorithm.
func SetDigests(claims []*DisclosureClaim, alg HashAlgorithm) error {
	for _, claim := range claims {
		digest, err := GetHash(alg, claim.Disclosure)
		if err != nil {
			return fmt.Errorf("get disclosure hash: %w", err)
		}

		claim.Digest = digest
	}

	return nil
}
