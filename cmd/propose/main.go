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
	"flag"
	"fmt"
	"time"

	"multisig-wallet-go/internal/approval"
	"multisig-wallet-go/internal/common"
	"multisig-wallet-go/internal/config"
	"multisig-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type proposeRequest struct {
	walletId    string
	actorId     string
	kind        models.TransactionKind
	amount      decimal.Decimal
	currency    string
	destination string
	reference   string
}

func parseAndValidateFlags() (*proposeRequest, error) {
	walletFlag := flag.String("wallet", "", "Wallet id (required)")
	actorFlag := flag.String("actor", "", "Proposing participant user id (required)")
	kindFlag := flag.String("kind", "payment", "Transaction kind: payment, deposit, split, configuration")
	amountFlag := flag.String("amount", "", "Amount (required)")
	currencyFlag := flag.String("currency", "", "Currency (defaults to wallet currency)")
	destinationFlag := flag.String("destination", "", "Destination address (required for payments)")
	referenceFlag := flag.String("reference", "", "Free-form reference")
	flag.Parse()

	if *walletFlag == "" || *actorFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("required flags: --wallet, --actor, --amount")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &proposeRequest{
		walletId:    *walletFlag,
		actorId:     *actorFlag,
		kind:        models.TransactionKind(*kindFlag),
		amount:      amount,
		currency:    *currencyFlag,
		destination: *destinationFlag,
		reference:   *referenceFlag,
	}, nil
}

func main() {
	req, err := parseAndValidateFlags()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Invalid arguments", zap.Error(err))
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

	tx, err := services.Approvals.Propose(ctx, approval.ProposeParams{
		WalletId:    req.walletId,
		Kind:        req.kind,
		Amount:      req.amount,
		Currency:    req.currency,
		Destination: req.destination,
		Reference:   req.reference,
		ActorId:     req.actorId,
	})
	if err != nil {
		zap.L().Fatal("Failed to propose transaction", zap.Error(err))
	}

	common.PrintHeader("Transaction proposed", common.DefaultWidth)
	fmt.Printf("Id:                  %s\n", tx.Id)
	fmt.Printf("Kind:                %s\n", tx.Kind)
	fmt.Printf("Amount:              %s %s\n", tx.Amount.String(), tx.Currency)
	fmt.Printf("Required signatures: %d\n", tx.RequiredSignatures)
	fmt.Printf("Expires:             %s\n", tx.ExpiresAt.Format(time.RFC3339))
	common.PrintFooter("Collect signatures with the sign command", common.DefaultWidth)
}
