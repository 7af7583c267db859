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

	"multisig-wallet-go/internal/approval"
	"multisig-wallet-go/internal/common"
	"multisig-wallet-go/internal/config"
	"multisig-wallet-go/internal/gateway"
	"multisig-wallet-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// consoleGateway is a stand-in ledger client for local runs: it logs the
// broadcast and fabricates a reference. Real deployments wire the actual
// ledger-network client here.
type consoleGateway struct{}

func (consoleGateway) Execute(_ context.Context, tx *models.Transaction) gateway.Result {
	zap.L().Info("Broadcasting transaction",
		zap.String("transaction_id", tx.Id),
		zap.String("destination", tx.Destination),
		zap.String("amount", tx.Amount.String()))
	return gateway.Result{Ref: "local-" + uuid.New().String(), Success: true}
}

func main() {
	txFlag := flag.String("transaction", "", "Approved transaction id (required)")
	actorFlag := flag.String("actor", "", "Executing participant user id (required)")
	flag.Parse()

	if *txFlag == "" || *actorFlag == "" {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Required flags: --transaction, --actor")
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

	executor := approval.NewExecutor(services.Approvals, consoleGateway{})
	tx, err := executor.Run(ctx, *txFlag, *actorFlag)
	if err != nil {
		zap.L().Fatal("Execution failed", zap.Error(err))
	}

	if tx.Status == models.StatusExecuted {
		fmt.Printf("Transaction %s executed, external ref %s\n", tx.Id, tx.ExternalRef)
	} else {
		fmt.Printf("Transaction %s failed: %s\n", tx.Id, tx.FailureMsg)
	}
}
