/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	afgjwt "github.com/hyperledger/aries-sdjwt-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/holder"
)

const (
	discloseFlagName      = "disclose"
	discloseEnvKey        = "SDJWT_DISCLOSE"
	discloseFlagShorthand = "d"
	discloseFlagUsage     = "Paths of the claims to disclose, e.g. given_name or address.country." +
		" Nothing is disclosed if not set." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + discloseEnvKey
)

type presentParameters struct {
	in            string
	disclose      []string
	holderKeyFile string
	nonce         string
	audience      string
}

func createPresentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "present",
		Short: "Create an SD-JWT presentation",
		Long: "Select the disclosures of an issued SD-JWT and print the combined format for presentation," +
			" with a key binding JWT if the holder key is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setLogLevel(cmd); err != nil {
				return err
			}

			parameters, err := getPresentParameters(cmd)
			if err != nil {
				return err
			}

			combinedFormatForIssuance, err := readInput(cmd, parameters.in)
			if err != nil {
				return err
			}

			presentation, err := present(combinedFormatForIssuance, parameters)
			if err != nil {
				return err
			}

			return printOutput(cmd, presentation)
		},
	}

	cmd.Flags().StringP(inFlagName, inFlagShorthand, "", inFlagUsage)
	cmd.Flags().StringSliceP(discloseFlagName, discloseFlagShorthand, []string{}, discloseFlagUsage)
	cmd.Flags().StringP(holderKeyFlagName, "", "", holderKeyFlagUsage)
	cmd.Flags().StringP(nonceFlagName, "", "", nonceFlagUsage)
	cmd.Flags().StringP(audienceFlagName, "", "", audienceFlagUsage)

	return cmd
}

func getPresentParameters(cmd *cobra.Command) (*presentParameters, error) {
	var (
		p   presentParameters
		err error
	)

	if p.in, err = getUserSetVar(cmd, inFlagName, inEnvKey, true); err != nil {
		return nil, err
	}

	if p.disclose, err = getUserSetVars(cmd, discloseFlagName, discloseEnvKey, true); err != nil {
		return nil, err
	}

	if p.holderKeyFile, err = getUserSetVar(cmd, holderKeyFlagName, holderKeyEnvKey, true); err != nil {
		return nil, err
	}

	if p.nonce, err = getUserSetVar(cmd, nonceFlagName, nonceEnvKey, true); err != nil {
		return nil, err
	}

	if p.audience, err = getUserSetVar(cmd, audienceFlagName, audienceEnvKey, true); err != nil {
		return nil, err
	}

	return &p, nil
}

func present(combinedFormatForIssuance string, p *presentParameters) (string, error) {
	disclosures, err := holder.SelectDisclosures(combinedFormatForIssuance, p.disclose)
	if err != nil {
		return "", errors.Wrap(err, "select disclosures")
	}

	logger.Debugf("presenting %d disclosure(s)", len(disclosures))

	if p.holderKeyFile == "" {
		return holder.CreatePresentation(combinedFormatForIssuance, disclosures)
	}

	holderJWK, err := loadJWK(p.holderKeyFile)
	if err != nil {
		return "", err
	}

	if holderJWK.IsPublic() {
		return "", errors.New("holder key must be a private key")
	}

	alg, err := signingAlgorithm(holderJWK)
	if err != nil {
		return "", err
	}

	signer, err := afgjwt.NewSigner(alg, holderJWK)
	if err != nil {
		return "", errors.Wrap(err, "create holder signer")
	}

	nonce := p.nonce
	if nonce == "" {
		nonce = uuid.New().String()
	}

	return holder.CreatePresentation(combinedFormatForIssuance, disclosures,
		holder.WithHolderVerification(&holder.BindingInfo{
			Payload: holder.BindingPayload{
				Nonce:    nonce,
				Audience: p.audience,
			},
			Signer: signer,
		}))
}
