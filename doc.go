/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdjwt enables Go developers to issue, present and verify Selective Disclosure JWTs (SD-JWT).
//
// Packages for end developer usage
//
// pkg/doc/sdjwt/issuer: Creates SD-JWTs from a claim-set using the flat or recursive disclosure strategy,
// optionally with decoy digests and a holder public key.
//
// pkg/doc/sdjwt/holder: Parses an issued SD-JWT, selects the disclosures for a set of claim paths and creates
// presentations with an optional key binding JWT.
//
// pkg/doc/sdjwt/verifier: Verifies presentations and rebuilds the disclosed claim-set.
//
// pkg/doc/jwt: Signs and verifies the compact JWS carrying the SD-JWT and the key binding JWT.
//
// cmd/sdjwt-cli: Command line tool covering the same workflow.
//
// Basic workflow
//
//  1. Create a signer for the issuer key with jwt.NewSigner.
//  2. Issue the SD-JWT with issuer.New and serialize it into the combined format for issuance.
//  3. Select disclosures with holder.SelectDisclosures and create the presentation with holder.CreatePresentation.
//  4. Verify the presentation with verifier.Verify and the issuer public key.
package sdjwt
