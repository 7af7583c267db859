/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"

	"multisig-wallet-go/internal/common"
	"multisig-wallet-go/internal/config"
	"multisig-wallet-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	txFlag := flag.String("transaction", "", "Transaction id (required)")
	participantFlag := flag.String("participant", "", "Signing participant user id (required)")
	signatureFlag := flag.String("signature", "", "Hex-encoded signature blob")
	keyFlag := flag.String("key", "", "Hex-encoded ed25519 private key to sign with locally")
	flag.Parse()

	if *txFlag == "" || *participantFlag == "" {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Required flags: --transaction, --participant")
	}
	if *signatureFlag == "" && *keyFlag == "" {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Provide either --signature or --key")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	blob, err := resolveSignature(ctx, services, *txFlag, *signatureFlag, *keyFlag)
	if err != nil {
		zap.L().Fatal("Failed to resolve signature", zap.Error(err))
	}

	tx, err := services.Approvals.AddSignature(ctx, *txFlag, *participantFlag, blob)
	if err != nil {
		zap.L().Fatal("Failed to add signature", zap.Error(err))
	}

	fmt.Printf("Signature recorded: %d of %d\n", len(tx.Signatures), tx.RequiredSignatures)
	if tx.Status == models.StatusApproved {
		fmt.Printf("Quorum reached - transaction %s is approved\n", tx.Id)
	}
}

// resolveSignature returns the signature blob to submit: either the one
// supplied on the command line, or one produced locally from a private key
// over the transaction's canonical signing message.
func resolveSignature(ctx context.Context, services *common.Services, txId, signatureHex, keyHex string) ([]byte, error) {
	if signatureHex != "" {
		blob, err := hex.DecodeString(signatureHex)
		if err != nil {
			return nil, fmt.Errorf("invalid signature encoding: %w", err)
		}
		return blob, nil
	}

	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key encoding: %w", err)
	}
	if len(keyBytes) == ed25519.SeedSize {
		keyBytes = ed25519.NewKeyFromSeed(keyBytes)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(keyBytes))
	}

	tx, err := services.Approvals.Get(ctx, txId)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return ed25519.Sign(ed25519.PrivateKey(keyBytes), tx.SigningMessage()), nil
}
