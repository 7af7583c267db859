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
	"encoding/hex"
	"flag"
	"fmt"

	"multisig-wallet-go/internal/common"
	"multisig-wallet-go/internal/config"
	"multisig-wallet-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	nameFlag := flag.String("name", "", "Wallet name (required when creating)")
	currencyFlag := flag.String("currency", "USDC", "Wallet currency")
	userFlag := flag.String("user", "", "User id: the creator, or the participant to add (required)")
	keyFlag := flag.String("key", "", "Hex-encoded ed25519 public key for the user (required)")
	thresholdFlag := flag.Int("threshold", 1, "Signature threshold")
	walletFlag := flag.String("wallet", "", "Existing wallet id: add a participant instead of creating")
	actorFlag := flag.String("actor", "", "Acting admin user id (required with --wallet)")
	roleFlag := flag.String("role", "member", "Role for the added participant: admin or member")
	activateFlag := flag.Bool("activate", false, "Activate an invited participant instead of adding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
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

	if *userFlag == "" {
		zap.L().Fatal("Missing required flag --user")
	}

	if *walletFlag == "" {
		createWallet(ctx, services, *nameFlag, *currencyFlag, *userFlag, *keyFlag, *thresholdFlag)
		return
	}
	if *activateFlag {
		activateParticipant(ctx, services, *walletFlag, *userFlag)
		return
	}
	addParticipant(ctx, services, *walletFlag, *userFlag, *keyFlag, *roleFlag, *actorFlag)
}

func decodeKey(keyHex string) []byte {
	if keyHex == "" {
		zap.L().Fatal("Missing required flag --key")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		zap.L().Fatal("Invalid public key encoding", zap.Error(err))
	}
	return key
}

func createWallet(ctx context.Context, services *common.Services, name, currency, userId, keyHex string, threshold int) {
	if name == "" {
		zap.L().Fatal("Missing required flag --name")
	}

	creator := models.Participant{
		UserId:    userId,
		PublicKey: decodeKey(keyHex),
	}
	wallet, err := services.Registry.CreateWallet(ctx, name, currency, creator, threshold)
	if err != nil {
		zap.L().Fatal("Failed to create wallet", zap.Error(err))
	}

	common.PrintHeader("Wallet created", common.DefaultWidth)
	fmt.Printf("Id:        %s\n", wallet.Id)
	fmt.Printf("Name:      %s\n", wallet.Name)
	fmt.Printf("Currency:  %s\n", wallet.Currency)
	fmt.Printf("Threshold: %d of %d\n", wallet.Threshold, len(wallet.Participants))
	common.PrintFooter("Done", common.DefaultWidth)
}

func addParticipant(ctx context.Context, services *common.Services, walletId, userId, keyHex, role, actorId string) {
	if actorId == "" {
		zap.L().Fatal("Missing required flag --actor")
	}

	participant := models.Participant{
		UserId:    userId,
		PublicKey: decodeKey(keyHex),
		Role:      models.Role(role),
	}
	wallet, err := services.Registry.AddParticipant(ctx, walletId, participant, actorId)
	if err != nil {
		zap.L().Fatal("Failed to add participant", zap.Error(err))
	}

	fmt.Printf("Participant %s invited to wallet %s (%d participants, threshold %d)\n",
		userId, wallet.Id, len(wallet.Participants), wallet.Threshold)
}

func activateParticipant(ctx context.Context, services *common.Services, walletId, userId string) {
	wallet, err := services.Registry.ActivateParticipant(ctx, walletId, userId)
	if err != nil {
		zap.L().Fatal("Failed to activate participant", zap.Error(err))
	}
	fmt.Printf("Participant %s is now active in wallet %s\n", userId, wallet.Id)
}
