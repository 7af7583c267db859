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
	"os"
	"os/signal"
	"syscall"
	"time"

	"multisig-wallet-go/internal/common"
	"multisig-wallet-go/internal/config"
	"multisig-wallet-go/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	rulesFile := flag.String("rules", "", "Optional path to a YAML rule file to load on startup")
	walletFlag := flag.String("wallet", "", "Wallet id for --rules (required when --rules is set)")
	actorFlag := flag.String("actor", "", "Acting admin user id for --rules")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting wallet watcher")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *rulesFile == "" {
		*rulesFile = cfg.Watcher.RulesFile
	}
	if *rulesFile != "" {
		if *walletFlag == "" || *actorFlag == "" {
			zap.L().Fatal("--rules requires --wallet and --actor")
		}
		rules, err := common.LoadRuleFile(*rulesFile, *walletFlag)
		if err != nil {
			zap.L().Fatal("Failed to load rule file", zap.Error(err))
		}
		for i := range rules {
			if _, err := services.Engine.CreateRule(ctx, &rules[i], *actorFlag); err != nil {
				zap.L().Fatal("Failed to create rule",
					zap.String("rule_name", rules[i].Name),
					zap.Error(err))
			}
		}
		zap.L().Info("Loaded split rules from file",
			zap.String("file", *rulesFile),
			zap.Int("count", len(rules)))
	}

	s := sweeper.New(sweeper.Config{
		Store:           services.DbService,
		Approvals:       services.Approvals,
		Engine:          services.Engine,
		LookbackWindow:  cfg.Watcher.LookbackWindow,
		PollingInterval: cfg.Watcher.PollingInterval,
		CleanupInterval: cfg.Watcher.CleanupInterval,
	})

	if err := s.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start sweeper", zap.Error(err))
	}

	zap.L().Info("Watcher running",
		zap.Duration("polling_interval", cfg.Watcher.PollingInterval))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping watcher...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Watcher stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
