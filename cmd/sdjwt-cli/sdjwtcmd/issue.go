/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"os"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v3/json"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/issuer"
)

const (
	claimsFlagName      = "claims"
	claimsEnvKey        = "SDJWT_CLAIMS"
	claimsFlagShorthand = "c"
	claimsFlagUsage     = "File with the claims JSON object, or a verifiable credential with --vc." +
		" Alternatively, this can be set with the following environment variable: " + claimsEnvKey

	strategyFlagName  = "strategy"
	strategyEnvKey    = "SDJWT_STRATEGY"
	strategyFlagUsage = "Disclosure strategy. Possible values [flat] [recursive]. Defaults to flat if not set." +
		" Alternatively, this can be set with the following environment variable: " + strategyEnvKey

	sdClaimsFlagName  = "sd-claims"
	sdClaimsEnvKey    = "SDJWT_SD_CLAIMS"
	sdClaimsFlagUsage = "Paths of the selectively disclosable claims, e.g. address.country or nationalities.1." +
		" Every claim is selectively disclosable if not set." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + sdClaimsEnvKey

	decoysFlagName  = "decoys"
	decoysEnvKey    = "SDJWT_DECOYS"
	decoysFlagUsage = "Number of decoy digests per object or array with selectively disclosable claims." +
		" Possible values [random] or a number. No decoys if not set." +
		" Alternatively, this can be set with the following environment variable: " + decoysEnvKey

	hashAlgFlagName  = "hash-alg"
	hashAlgEnvKey    = "SDJWT_HASH_ALG"
	hashAlgFlagUsage = "Hash algorithm of the disclosure digests. Defaults to sha-256 if not set." +
		" Alternatively, this can be set with the following environment variable: " + hashAlgEnvKey

	expiryFlagName  = "expiry"
	expiryEnvKey    = "SDJWT_EXPIRY"
	expiryFlagUsage = "Validity period of the SD-JWT, e.g. 24h. No expiry if not set. Not supported with --vc." +
		" Alternatively, this can be set with the following environment variable: " + expiryEnvKey

	typFlagName  = "typ"
	typEnvKey    = "SDJWT_TYP"
	typFlagUsage = "typ header of the SD-JWT, checked by verify if set." +
		" Alternatively, this can be set with the following environment variable: " + typEnvKey

	vcFlagName  = "vc"
	vcEnvKey    = "SDJWT_VC"
	vcFlagUsage = "Treat the claims as a verifiable credential and disclose its credential subject." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + vcEnvKey

	strategyFlat      = "flat"
	strategyRecursive = "recursive"
	decoysRandom      = "random"
)

type issueParameters struct {
	issuerKeyFile string
	holderKeyFile string
	claimsFile    string
	issuer        string
	strategy      string
	sdClaims      []string
	decoys        string
	hashAlg       string
	expiry        string
	typ           string
	vc            bool
}

func createIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an SD-JWT",
		Long:  "Issue an SD-JWT for the claims and print the combined format for issuance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setLogLevel(cmd); err != nil {
				return err
			}

			parameters, err := getIssueParameters(cmd)
			if err != nil {
				return err
			}

			combinedFormatForIssuance, err := issue(parameters)
			if err != nil {
				return err
			}

			return printOutput(cmd, combinedFormatForIssuance)
		},
	}

	createIssueFlags(cmd)

	return cmd
}

func createIssueFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(issuerKeyFlagName, issuerKeyFlagShorthand, "", issuerKeyFlagUsage)
	cmd.Flags().StringP(holderKeyFlagName, "", "", holderKeyFlagUsage)
	cmd.Flags().StringP(claimsFlagName, claimsFlagShorthand, "", claimsFlagUsage)
	cmd.Flags().StringP(issuerFlagName, "", "", issuerFlagUsage)
	cmd.Flags().StringP(strategyFlagName, "", "", strategyFlagUsage)
	cmd.Flags().StringSliceP(sdClaimsFlagName, "", []string{}, sdClaimsFlagUsage)
	cmd.Flags().StringP(decoysFlagName, "", "", decoysFlagUsage)
	cmd.Flags().StringP(hashAlgFlagName, "", "", hashAlgFlagUsage)
	cmd.Flags().StringP(expiryFlagName, "", "", expiryFlagUsage)
	cmd.Flags().StringP(typFlagName, "", "", typFlagUsage)
	cmd.Flags().StringP(vcFlagName, "", "", vcFlagUsage)
}

func getIssueParameters(cmd *cobra.Command) (*issueParameters, error) {
	var (
		p   issueParameters
		err error
	)

	if p.issuerKeyFile, err = getUserSetVar(cmd, issuerKeyFlagName, issuerKeyEnvKey, false); err != nil {
		return nil, err
	}

	if p.claimsFile, err = getUserSetVar(cmd, claimsFlagName, claimsEnvKey, false); err != nil {
		return nil, err
	}

	if p.vc, err = getUserSetBool(cmd, vcFlagName, vcEnvKey); err != nil {
		return nil, err
	}

	// the issuer of a verifiable credential is taken from the credential
	if p.issuer, err = getUserSetVar(cmd, issuerFlagName, issuerEnvKey, p.vc); err != nil {
		return nil, err
	}

	if p.holderKeyFile, err = getUserSetVar(cmd, holderKeyFlagName, holderKeyEnvKey, true); err != nil {
		return nil, err
	}

	if p.strategy, err = getUserSetVar(cmd, strategyFlagName, strategyEnvKey, true); err != nil {
		return nil, err
	}

	if p.sdClaims, err = getUserSetVars(cmd, sdClaimsFlagName, sdClaimsEnvKey, true); err != nil {
		return nil, err
	}

	if p.decoys, err = getUserSetVar(cmd, decoysFlagName, decoysEnvKey, true); err != nil {
		return nil, err
	}

	if p.hashAlg, err = getUserSetVar(cmd, hashAlgFlagName, hashAlgEnvKey, true); err != nil {
		return nil, err
	}

	if p.expiry, err = getUserSetVar(cmd, expiryFlagName, expiryEnvKey, true); err != nil {
		return nil, err
	}

	if p.typ, err = getUserSetVar(cmd, typFlagName, typEnvKey, true); err != nil {
		return nil, err
	}

	return &p, nil
}

func issue(p *issueParameters) (string, error) {
	issuerJWK, err := loadJWK(p.issuerKeyFile)
	if err != nil {
		return "", err
	}

	alg, err := signingAlgorithm(issuerJWK)
	if err != nil {
		return "", err
	}

	signer, err := afgjwt.NewSigner(alg, issuerJWK)
	if err != nil {
		return "", errors.Wrap(err, "create issuer signer")
	}

	opts, err := getIssuerOpts(p)
	if err != nil {
		return "", err
	}

	claimsBytes, err := os.ReadFile(p.claimsFile) // nolint:gosec
	if err != nil {
		return "", errors.Wrapf(err, "read claims file %s", p.claimsFile)
	}

	var claims map[string]interface{}

	if err = json.Unmarshal(claimsBytes, &claims); err != nil {
		return "", errors.Wrapf(err, "parse claims file %s", p.claimsFile)
	}

	var headers afgjwt.Headers
	if p.typ != "" {
		headers = afgjwt.Headers{afgjwt.HeaderType: p.typ}
	}

	var token *issuer.SelectiveDisclosureJWT

	if p.vc {
		token, err = issuer.NewFromVC(claims, headers, signer, opts...)
	} else {
		token, err = issuer.New(p.issuer, claims, headers, signer, opts...)
	}

	if err != nil {
		return "", errors.Wrap(err, "issue SD-JWT")
	}

	logger.Debugf("issued SD-JWT with %d disclosure(s)", len(token.Disclosures))

	return token.Serialize(false)
}

func getIssuerOpts(p *issueParameters) ([]issuer.NewOpt, error) { // nolint:gocyclo
	var opts []issuer.NewOpt

	// registered claims of a verifiable credential are set in the credential
	if !p.vc {
		opts = append(opts,
			issuer.WithIssuedAt(jwt.NewNumericDate(time.Now())),
			issuer.WithJTI(uuid.New().String()))
	}

	switch p.strategy {
	case "", strategyFlat:
		opts = append(opts, issuer.WithDisclosureStrategy(issuer.FlatStrategy()))
	case strategyRecursive:
		opts = append(opts, issuer.WithDisclosureStrategy(issuer.RecursiveStrategy()))
	default:
		return nil, errors.Errorf("unsupported strategy '%s'", p.strategy)
	}

	if len(p.sdClaims) > 0 {
		opts = append(opts, issuer.WithSelectivelyDisclosableClaims(p.sdClaims))
	}

	switch p.decoys {
	case "":
	case decoysRandom:
		opts = append(opts, issuer.WithDecoyDigests(true))
	default:
		n, err := strconv.Atoi(p.decoys)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid decoys value '%s'", p.decoys)
		}

		opts = append(opts, issuer.WithDecoyCount(n))
	}

	if p.hashAlg != "" {
		alg, err := common.GetHashAlgorithm(p.hashAlg)
		if err != nil {
			return nil, errors.Wrap(err, "hash algorithm")
		}

		opts = append(opts, issuer.WithHashAlgorithm(alg))
	}

	if p.expiry != "" {
		if p.vc {
			return nil, errors.New("expiry is not supported for verifiable credentials")
		}

		validity, err := time.ParseDuration(p.expiry)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid expiry '%s'", p.expiry)
		}

		opts = append(opts, issuer.WithExpiry(jwt.NewNumericDate(time.Now().Add(validity))))
	}

	if p.holderKeyFile != "" {
		holderJWK, err := loadJWK(p.holderKeyFile)
		if err != nil {
			return nil, err
		}

		opts = append(opts, issuer.WithHolderPublicKey(publicJWK(holderJWK)))
	}

	return opts, nil
}
