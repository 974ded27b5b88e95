/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"os"
	"strings"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/verifier"
)

const (
	holderBindingRequiredFlagName  = "holder-binding-required"
	holderBindingRequiredEnvKey    = "SDJWT_HOLDER_BINDING_REQUIRED"
	holderBindingRequiredFlagUsage = "Reject presentations without a key binding JWT." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + holderBindingRequiredEnvKey

	schemaFlagName  = "schema"
	schemaEnvKey    = "SDJWT_SCHEMA"
	schemaFlagUsage = "File or http(s) URL of a JSON schema the disclosed claims must satisfy." +
		" Alternatively, this can be set with the following environment variable: " + schemaEnvKey

	queryFlagName      = "query"
	queryEnvKey        = "SDJWT_QUERY"
	queryFlagShorthand = "q"
	queryFlagUsage     = "Claim path to print instead of the whole claim-set, e.g. address.country." +
		" Alternatively, this can be set with the following environment variable: " + queryEnvKey
)

// signing algorithms accepted by the CLI, a superset of the keygen key types.
var cliSigningAlgorithms = []string{
	string(jose.EdDSA),
	string(jose.ES256), string(jose.ES384), string(jose.ES512),
	string(jose.RS256), string(jose.PS256),
}

type verifyParameters struct {
	in                    string
	issuerKeyFile         string
	holderBindingRequired bool
	nonce                 string
	audience              string
	issuer                string
	typ                   string
	schemaFile            string
	query                 string
}

func createVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an SD-JWT presentation",
		Long:  "Verify an SD-JWT presentation and print the disclosed claims as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setLogLevel(cmd); err != nil {
				return err
			}

			parameters, err := getVerifyParameters(cmd)
			if err != nil {
				return err
			}

			combinedFormatForPresentation, err := readInput(cmd, parameters.in)
			if err != nil {
				return err
			}

			output, err := verify(combinedFormatForPresentation, parameters)
			if err != nil {
				return err
			}

			return printOutput(cmd, output)
		},
	}

	cmd.Flags().StringP(inFlagName, inFlagShorthand, "", inFlagUsage)
	cmd.Flags().StringP(issuerKeyFlagName, issuerKeyFlagShorthand, "", issuerKeyFlagUsage)
	cmd.Flags().StringP(holderBindingRequiredFlagName, "", "", holderBindingRequiredFlagUsage)
	cmd.Flags().StringP(nonceFlagName, "", "", nonceFlagUsage)
	cmd.Flags().StringP(audienceFlagName, "", "", audienceFlagUsage)
	cmd.Flags().StringP(issuerFlagName, "", "", issuerFlagUsage)
	cmd.Flags().StringP(typFlagName, "", "", typFlagUsage)
	cmd.Flags().StringP(schemaFlagName, "", "", schemaFlagUsage)
	cmd.Flags().StringP(queryFlagName, queryFlagShorthand, "", queryFlagUsage)

	return cmd
}

func getVerifyParameters(cmd *cobra.Command) (*verifyParameters, error) {
	var (
		p   verifyParameters
		err error
	)

	if p.issuerKeyFile, err = getUserSetVar(cmd, issuerKeyFlagName, issuerKeyEnvKey, false); err != nil {
		return nil, err
	}

	if p.in, err = getUserSetVar(cmd, inFlagName, inEnvKey, true); err != nil {
		return nil, err
	}

	if p.holderBindingRequired, err = getUserSetBool(cmd, holderBindingRequiredFlagName,
		holderBindingRequiredEnvKey); err != nil {
		return nil, err
	}

	optional := map[string]*string{
		nonceFlagName:    &p.nonce,
		audienceFlagName: &p.audience,
		issuerFlagName:   &p.issuer,
		typFlagName:      &p.typ,
		schemaFlagName:   &p.schemaFile,
		queryFlagName:    &p.query,
	}

	envKeys := map[string]string{
		nonceFlagName:    nonceEnvKey,
		audienceFlagName: audienceEnvKey,
		issuerFlagName:   issuerEnvKey,
		typFlagName:      typEnvKey,
		schemaFlagName:   schemaEnvKey,
		queryFlagName:    queryEnvKey,
	}

	for flagName, value := range optional {
		if *value, err = getUserSetVar(cmd, flagName, envKeys[flagName], true); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

func verify(combinedFormatForPresentation string, p *verifyParameters) (string, error) {
	issuerJWK, err := loadJWK(p.issuerKeyFile)
	if err != nil {
		return "", err
	}

	opts := []verifier.ParseOpt{
		verifier.WithSignatureVerifier(afgjwt.NewKeyVerifier(publicJWK(issuerJWK).Key)),
		verifier.WithIssuerSigningAlgorithms(cliSigningAlgorithms),
		verifier.WithHolderSigningAlgorithms(cliSigningAlgorithms),
		verifier.WithHolderVerificationRequired(p.holderBindingRequired),
		verifier.WithExpectedNonceForHolderVerification(p.nonce),
		verifier.WithExpectedAudienceForHolderVerification(p.audience),
		verifier.WithExpectedIssuer(p.issuer),
		verifier.WithExpectedTypHeader(p.typ),
	}

	switch {
	case p.schemaFile == "":
	case strings.HasPrefix(p.schemaFile, "http://"), strings.HasPrefix(p.schemaFile, "https://"):
		opts = append(opts, verifier.WithClaimsSchemaURL(p.schemaFile))
	default:
		schema, e := os.ReadFile(p.schemaFile) // nolint:gosec
		if e != nil {
			return "", errors.Wrapf(e, "read schema file %s", p.schemaFile)
		}

		opts = append(opts, verifier.WithClaimsSchema(schema))
	}

	result, err := verifier.Verify(combinedFormatForPresentation, opts...)
	if err != nil {
		return "", errors.Wrap(err, "verify SD-JWT")
	}

	logger.Infof("SD-JWT verified: %d disclosed claim(s), %d undisclosed digest(s)",
		len(result.DisclosedClaims), len(result.UnmatchedDigests))

	claimsJSON, err := json.Marshal(result.Claims)
	if err != nil {
		return "", errors.Wrap(err, "marshal claims")
	}

	if p.query == "" {
		return string(claimsJSON), nil
	}

	value := gjson.GetBytes(claimsJSON, p.query)
	if !value.Exists() {
		return "", errors.Errorf("claim '%s' not found", p.query)
	}

	return value.String(), nil
}
