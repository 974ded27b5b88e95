/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/util/maphelpers"
)

// VerifySigningAlg ensures that a signing algorithm was used that was deemed secure for the application.
// The none algorithm MUST NOT be accepted.
func VerifySigningAlg(joseHeaders afgjwt.Headers, secureAlgs []string) error {
	alg, ok := joseHeaders.Algorithm()
	if !ok {
		return ErrNoAlgorithmProvided
	}

	if alg == afgjwt.AlgorithmNone {
		return fmt.Errorf("%w: alg value cannot be 'none'", ErrInvalidJWT)
	}

	if !contains(secureAlgs, alg) {
		return fmt.Errorf("%w: alg '%s' is not in the allowed list", ErrInvalidJWT, alg)
	}

	return nil
}

func contains(values []string, val string) bool {
	for _, v := range values {
		if v == val {
			return true
		}
	}

	return false
}

// VerifyJWT checks that the JWT is valid at the given time using nbf, iat, and exp claims (if provided in the JWT).
func VerifyJWT(payload map[string]interface{}, now time.Time, leeway time.Duration) error {
	var claims jwt.Claims

	if err := maphelpers.DecodeJSONMap(payload, &claims); err != nil {
		return fmt.Errorf("%w: decode registered claims: %v", ErrInvalidJWT, err)
	}

	// Validate checks claims in a token against expected values.
	expected := jwt.Expected{Time: now}

	err := claims.ValidateWithLeeway(expected, leeway)

	switch {
	case err == nil && claims.IssuedAt != nil && now.Add(leeway).Before(claims.IssuedAt.Time()):
		return fmt.Errorf("%w: issued in the future", ErrNotValidYetJWT)
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired):
		return fmt.Errorf("%w: %v", ErrExpiredJWT, err)
	default:
		return fmt.Errorf("%w: invalid JWT time values: %v", ErrNotValidYetJWT, err)
	}
}

// VerifyTyp checks JWT header parameters for the SD-JWT component.
func VerifyTyp(joseHeaders afgjwt.Headers, expectedTyp string) error {
	typ, ok := joseHeaders.Type()
	if !ok {
		return fmt.Errorf("%w: missing typ", ErrInvalidJWT)
	}

	if typ != expectedTyp {
		return fmt.Errorf("%w: unexpected typ \"%s\"", ErrInvalidJWT, typ)
	}

	return nil
}
