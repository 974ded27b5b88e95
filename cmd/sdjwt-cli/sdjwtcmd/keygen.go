/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	keyTypeFlagName  = "key-type"
	keyTypeEnvKey    = "SDJWT_KEY_TYPE"
	keyTypeFlagUsage = "Key type. Possible values [ed25519] [p-256] [p-384]. Defaults to ed25519 if not set." +
		" Alternatively, this can be set with the following environment variable: " + keyTypeEnvKey

	keyIDFlagName  = "kid"
	keyIDEnvKey    = "SDJWT_KID"
	keyIDFlagUsage = "Key ID. Defaults to a random UUID if not set." +
		" Alternatively, this can be set with the following environment variable: " + keyIDEnvKey

	keyTypeEd25519 = "ed25519"
	keyTypeP256    = "p-256"
	keyTypeP384    = "p-384"
)

func createKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key",
		Long:  "Generate a private signing key and print it as JWK",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setLogLevel(cmd); err != nil {
				return err
			}

			keyType, err := getUserSetVar(cmd, keyTypeFlagName, keyTypeEnvKey, true)
			if err != nil {
				return err
			}

			keyID, err := getUserSetVar(cmd, keyIDFlagName, keyIDEnvKey, true)
			if err != nil {
				return err
			}

			if keyID == "" {
				keyID = uuid.New().String()
			}

			jwk, err := generateKey(keyType, keyID)
			if err != nil {
				return err
			}

			jwkBytes, err := jwk.MarshalJSON()
			if err != nil {
				return errors.Wrap(err, "marshal JWK")
			}

			return printOutput(cmd, string(jwkBytes))
		},
	}

	cmd.Flags().StringP(keyTypeFlagName, "", "", keyTypeFlagUsage)
	cmd.Flags().StringP(keyIDFlagName, "", "", keyIDFlagUsage)

	return cmd
}

func generateKey(keyType, keyID string) (*jose.JSONWebKey, error) {
	var (
		key interface{}
		alg jose.SignatureAlgorithm
		err error
	)

	switch keyType {
	case "", keyTypeEd25519:
		_, key, err = ed25519.GenerateKey(rand.Reader)
		alg = jose.EdDSA
	case keyTypeP256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		alg = jose.ES256
	case keyTypeP384:
		key, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		alg = jose.ES384
	default:
		return nil, errors.Errorf("unsupported key type '%s'", keyType)
	}

	if err != nil {
		return nil, errors.Wrap(err, "generate key")
	}

	return &jose.JSONWebKey{
		Key:       key,
		KeyID:     keyID,
		Algorithm: string(alg),
		Use:       "sig",
	}, nil
}
