/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdjwtcmd holds the commands of the sdjwt-cli.
package sdjwtcmd

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-jose/go-jose/v3"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	// log level.
	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "SDJWT_LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	// input file flag.
	inFlagName      = "in"
	inEnvKey        = "SDJWT_IN"
	inFlagShorthand = "i"
	inFlagUsage     = "File to read the SD-JWT from. Reads standard input if not set." +
		" Alternatively, this can be set with the following environment variable: " + inEnvKey

	// issuer key flag.
	issuerKeyFlagName      = "issuer-key"
	issuerKeyEnvKey        = "SDJWT_ISSUER_KEY"
	issuerKeyFlagShorthand = "k"
	issuerKeyFlagUsage     = "File with the issuer JWK. Private for issue, public or private for verify." +
		" Alternatively, this can be set with the following environment variable: " + issuerKeyEnvKey

	// holder key flag.
	holderKeyFlagName  = "holder-key"
	holderKeyEnvKey    = "SDJWT_HOLDER_KEY"
	holderKeyFlagUsage = "File with the holder JWK. Public or private for issue, private for present." +
		" Alternatively, this can be set with the following environment variable: " + holderKeyEnvKey

	// issuer flag.
	issuerFlagName  = "issuer"
	issuerEnvKey    = "SDJWT_ISSUER"
	issuerFlagUsage = "Issuer identifier (iss claim). Checked by verify if set." +
		" Alternatively, this can be set with the following environment variable: " + issuerEnvKey

	// nonce flag.
	nonceFlagName  = "nonce"
	nonceEnvKey    = "SDJWT_NONCE"
	nonceFlagUsage = "Key binding nonce. Defaults to a random UUID for present." +
		" Alternatively, this can be set with the following environment variable: " + nonceEnvKey

	// audience flag.
	audienceFlagName  = "audience"
	audienceEnvKey    = "SDJWT_AUDIENCE"
	audienceFlagUsage = "Key binding audience." +
		" Alternatively, this can be set with the following environment variable: " + audienceEnvKey
)

var logger = log.New("aries-framework/sdjwt-cli")

// Cmd returns the sdjwt-cli root command.
func Cmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sdjwt-cli",
		Short:         "Selective Disclosure JWT tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)

	rootCmd.AddCommand(createKeygenCmd(), createIssueCmd(), createPresentCmd(), createVerifyCmd())

	return rootCmd
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", errors.Wrapf(err, "%s flag not found", flagName)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string, isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, errors.Wrapf(err, "%s flag not found", flagName)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet && value != "" {
		values = strings.Split(value, ",")
	}

	if isOptional || isSet {
		return values, nil
	}

	return nil, errors.Errorf(" %s not set. "+
		"It must be set via either command line or environment variable", flagName)
}

func getUserSetBool(cmd *cobra.Command, flagName, envKey string) (bool, error) {
	v, err := getUserSetVar(cmd, flagName, envKey, true)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(v) {
	case "":
		return false, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errors.Errorf("invalid value '%s' for %s, must be true or false", v, flagName)
	}
}

func setLogLevel(cmd *cobra.Command) error {
	logLevel, err := getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
	if err != nil {
		return err
	}

	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return errors.Wrapf(err, "failed to parse log level '%s'", logLevel)
		}

		log.SetLevel("", level)

		logger.Debugf("logger level set to %s", logLevel)
	}

	return nil
}

// readInput reads the file, or the command input if path is empty.
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)

	if path == "" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) // nolint:gosec
	}

	if err != nil {
		return "", errors.Wrap(err, "read input")
	}

	return strings.TrimSpace(string(data)), nil
}

func loadJWK(path string) (*jose.JSONWebKey, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		return nil, errors.Wrapf(err, "read key file %s", path)
	}

	jwk := &jose.JSONWebKey{}

	if err = jwk.UnmarshalJSON(data); err != nil {
		return nil, errors.Wrapf(err, "parse JWK from %s", path)
	}

	if !jwk.Valid() {
		return nil, errors.Errorf("invalid JWK in %s", path)
	}

	return jwk, nil
}

func publicJWK(jwk *jose.JSONWebKey) *jose.JSONWebKey {
	if jwk.IsPublic() {
		return jwk
	}

	public := jwk.Public()

	return &public
}

// signingAlgorithm returns the alg of the JWK, or the default one for its key type.
func signingAlgorithm(jwk *jose.JSONWebKey) (string, error) {
	if jwk.Algorithm != "" {
		return jwk.Algorithm, nil
	}

	switch key := jwk.Key.(type) {
	case ed25519.PrivateKey, ed25519.PublicKey:
		return string(jose.EdDSA), nil
	case *ecdsa.PrivateKey:
		return ecdsaAlgorithm(&key.PublicKey)
	case *ecdsa.PublicKey:
		return ecdsaAlgorithm(key)
	case *rsa.PrivateKey, *rsa.PublicKey:
		return string(jose.RS256), nil
	default:
		return "", errors.Errorf("unsupported key type %T", jwk.Key)
	}
}

func ecdsaAlgorithm(key *ecdsa.PublicKey) (string, error) {
	switch key.Curve.Params().Name {
	case "P-256":
		return string(jose.ES256), nil
	case "P-384":
		return string(jose.ES384), nil
	case "P-521":
		return string(jose.ES512), nil
	default:
		return "", errors.Errorf("unsupported curve %s", key.Curve.Params().Name)
	}
}

func printOutput(cmd *cobra.Command, output string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), output)

	return errors.Wrap(err, "write output")
}
