/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdjwt-cli issues, presents and verifies Selective Disclosure JWTs from the command line.
package main

import (
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-sdjwt-go/cmd/sdjwt-cli/sdjwtcmd"
)

func main() {
	logger := log.New("aries-framework/sdjwt-cli")

	if err := sdjwtcmd.Cmd().Execute(); err != nil {
		logger.Fatalf("Failed to run sdjwt-cli: %s", err)
	}
}
