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

	"multisig-wallet-go/internal/common"
	"multisig-wallet-go/internal/config"
	"multisig-wallet-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	walletFlag := flag.String("wallet", "", "Wallet id (required)")
	actorFlag := flag.String("actor", "", "Acting admin user id (required for --file and --status)")
	fileFlag := flag.String("file", "", "YAML rule file to load")
	listFlag := flag.Bool("list", false, "List active rules for the wallet")
	ruleFlag := flag.String("rule", "", "Rule id (for --status)")
	statusFlag := flag.String("status", "", "Set rule status: active, inactive, suspended")
	flag.Parse()

	if *walletFlag == "" {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Required flag: --wallet")
	}
	if *fileFlag == "" && !*listFlag && *statusFlag == "" {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Nothing to do: pass --file, --list, or --status")
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

	if *fileFlag != "" {
		loadRules(ctx, services, *fileFlag, *walletFlag, *actorFlag)
	}

	if *statusFlag != "" {
		setStatus(ctx, services, *ruleFlag, *statusFlag, *actorFlag)
	}

	if *listFlag {
		listRules(ctx, services, *walletFlag)
	}
}

func loadRules(ctx context.Context, services *common.Services, file, walletId, actorId string) {
	if actorId == "" {
		zap.L().Fatal("Required flag: --actor")
	}

	rules, err := common.LoadRuleFile(file, walletId)
	if err != nil {
		zap.L().Fatal("Failed to load rule file", zap.Error(err))
	}

	common.PrintHeader("Loading split rules", common.DefaultWidth)
	for i := range rules {
		created, err := services.Engine.CreateRule(ctx, &rules[i], actorId)
		if err != nil {
			zap.L().Fatal("Failed to create rule",
				zap.String("rule_name", rules[i].Name),
				zap.Error(err))
		}
		fmt.Printf("Created %-24s %s (%s, priority %d)\n",
			created.Name, created.Id, created.Type, created.Priority)
	}
	common.PrintFooter(fmt.Sprintf("%d rules loaded", len(rules)), common.DefaultWidth)
}

func setStatus(ctx context.Context, services *common.Services, ruleId, status, actorId string) {
	if ruleId == "" || actorId == "" {
		zap.L().Fatal("Required flags: --rule, --actor")
	}

	rule, err := services.Engine.SetRuleStatus(ctx, ruleId, models.RuleStatus(status), actorId)
	if err != nil {
		zap.L().Fatal("Failed to update rule status", zap.Error(err))
	}
	fmt.Printf("Rule %s is now %s\n", rule.Id, rule.Status)
}

func listRules(ctx context.Context, services *common.Services, walletId string) {
	rules, err := services.DbService.ListActiveRules(ctx, walletId)
	if err != nil {
		zap.L().Fatal("Failed to list rules", zap.Error(err))
	}

	common.PrintHeader("Active split rules", common.DefaultWidth)
	if len(rules) == 0 {
		fmt.Println("No active rules.")
	}
	for _, rule := range rules {
		fmt.Printf("%-38s %-24s %-14s priority %d, %d splits, %d runs\n",
			rule.Id, rule.Name, rule.Type, rule.Priority, len(rule.Splits), len(rule.History))
	}
	common.PrintFooter("", common.DefaultWidth)
}
