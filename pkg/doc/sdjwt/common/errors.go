/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"errors"
	"fmt"
	"strings"
)

// Verification errors.
var (
	// ErrParsing is returned when the presented SD-JWT or its disclosures cannot be parsed.
	ErrParsing = errors.New("parsing error")
	// ErrInvalidJWT is returned when the SD-JWT is not acceptable (signature, alg, typ, digest references).
	ErrInvalidJWT = errors.New("invalid JWT")
	// ErrInvalidJWK is returned when the holder confirmation key is missing or unusable.
	ErrInvalidJWK = errors.New("invalid JWK")
	// ErrInvalidIssuer is returned when the SD-JWT issuer is not the expected one.
	ErrInvalidIssuer = errors.New("invalid issuer")
	// ErrKeyBindingFailed is returned when the key binding JWT cannot be verified.
	ErrKeyBindingFailed = errors.New("key binding failed")
	// ErrInvalidDisclosure is returned when a presented disclosure does not fit the SD-JWT.
	ErrInvalidDisclosure = errors.New("invalid disclosure")
	// ErrMissingOrUnknownHashingAlgorithm is returned when _sd_alg is absent or not supported.
	ErrMissingOrUnknownHashingAlgorithm = errors.New("missing or unknown hashing algorithm")
	// ErrNonUniqueDisclosures is returned when a disclosure is presented more than once.
	ErrNonUniqueDisclosures = errors.New("non unique disclosures")
	// ErrNonUniqueDisclosureDigests is returned when distinct disclosures have equal digests.
	ErrNonUniqueDisclosureDigests = errors.New("non unique disclosure digests")
	// ErrMissingDigests is returned when required digests are not matched by presented disclosures.
	ErrMissingDigests = errors.New("missing digests")
	// ErrNoAlgorithmProvided is returned when a JWT has no alg header.
	ErrNoAlgorithmProvided = errors.New("no algorithm provided")
	// ErrExpiredJWT is returned when the SD-JWT is expired.
	ErrExpiredJWT = errors.New("expired JWT")
	// ErrNotValidYetJWT is returned when the SD-JWT is not valid yet.
	ErrNotValidYetJWT = errors.New("JWT not valid yet")
	// ErrInternal is returned for failures that are not caused by the input.
	ErrInternal = errors.New("internal error")
)

// KeyBindingError describes why the key binding check failed.
type KeyBindingError struct {
	Description string
}

func (e *KeyBindingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrKeyBindingFailed, e.Description)
}

// Unwrap returns ErrKeyBindingFailed.
func (e *KeyBindingError) Unwrap() error {
	return ErrKeyBindingFailed
}

// NewKeyBindingError creates KeyBindingError.
func NewKeyBindingError(format string, args ...interface{}) error {
	return &KeyBindingError{Description: fmt.Sprintf(format, args...)}
}

// InvalidDisclosureError lists the disclosures that do not fit the SD-JWT.
type InvalidDisclosureError struct {
	Disclosures []string
	Reason      string
	// Err is the optional cause, e.g. ErrMalformedDisclosure for a disclosure that cannot be decoded.
	Err error
}

func (e *InvalidDisclosureError) Error() string {
	msg := fmt.Sprintf("%s: %s (%d disclosure(s))", ErrInvalidDisclosure, e.Reason, len(e.Disclosures))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns ErrInvalidDisclosure and the cause, if any.
func (e *InvalidDisclosureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidDisclosure}
	}

	return []error{ErrInvalidDisclosure, e.Err}
}

// MissingDigestsError lists required digests with no presented disclosure.
type MissingDigestsError struct {
	Digests []string
}

func (e *MissingDigestsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingDigests, strings.Join(e.Digests, ", "))
}

// Unwrap returns ErrMissingDigests.
func (e *MissingDigestsError) Unwrap() error {
	return ErrMissingDigests
}
