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

package sweeper

import (
	"context"
	"sync"
	"time"

	"multisig-wallet-go/internal/approval"
	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/splitter"
	"multisig-wallet-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config contains configuration for the Sweeper.
type Config struct {
	Store           store.WalletStore
	Approvals       *approval.Service
	Engine          *splitter.Engine
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}

// Sweeper periodically expires overdue proposals and feeds newly executed
// deposits into the fund-split engine. Sweeps are idempotent: an expiry may
// run redundantly without harm, and processed deposits are remembered so a
// deposit is split at most once per process lifetime.
type Sweeper struct {
	store     store.WalletStore
	approvals *approval.Service
	engine    *splitter.Engine

	// State management for processed deposits
	processedTxIds  map[string]time.Time
	mutex           sync.RWMutex
	lookbackWindow  time.Duration
	pollingInterval time.Duration
	cleanupInterval time.Duration

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a sweeper.
func New(cfg Config) *Sweeper {
	return &Sweeper{
		store:           cfg.Store,
		approvals:       cfg.Approvals,
		engine:          cfg.Engine,
		processedTxIds:  make(map[string]time.Time),
		lookbackWindow:  cfg.LookbackWindow,
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start runs an immediate sweep, then begins the polling and cleanup loops.
func (s *Sweeper) Start(ctx context.Context) error {
	zap.L().Info("Starting wallet sweeper",
		zap.Duration("polling_interval", s.pollingInterval),
		zap.Duration("lookback_window", s.lookbackWindow))

	if err := s.sweep(ctx); err != nil {
		zap.L().Error("Startup sweep failed", zap.Error(err))
		return err
	}

	go s.pollLoop(ctx)
	go s.cleanupLoop(ctx)

	zap.L().Info("Wallet sweeper started successfully")
	return nil
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping wallet sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Wallet sweeper stopped")
}

func (s *Sweeper) pollLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				zap.L().Error("Sweep failed", zap.Error(err))
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep expires overdue proposals across all wallets, then routes recent
// executed deposits through the split engine.
func (s *Sweeper) sweep(ctx context.Context) error {
	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		return err
	}

	// Each wallet's expiry pass only touches that wallet's proposals, so the
	// fan-out never contends across wallets.
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range wallets {
		w := w
		g.Go(func() error {
			expired, err := s.approvals.ExpireOverdue(gctx, w.Id)
			if err != nil {
				zap.L().Error("Expiry sweep failed for wallet",
					zap.String("wallet_id", w.Id),
					zap.Error(err))
				return err
			}
			if expired > 0 {
				zap.L().Info("Expired overdue proposals",
					zap.String("wallet_id", w.Id),
					zap.Int("count", expired))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return s.routeDeposits(ctx)
}

// routeDeposits feeds executed deposits inside the lookback window into the
// split engine, once each.
func (s *Sweeper) routeDeposits(ctx context.Context) error {
	since := time.Now().UTC().Add(-s.lookbackWindow)
	deposits, err := s.store.ListExecutedDeposits(ctx, since)
	if err != nil {
		return err
	}

	for _, deposit := range deposits {
		if s.isProcessed(deposit.Id) {
			continue
		}

		drafts, err := s.engine.EvaluateWallet(ctx, deposit.WalletId, deposit.Amount, models.KindDeposit)
		if err != nil {
			zap.L().Error("Failed to split deposit",
				zap.String("transaction_id", deposit.Id),
				zap.String("wallet_id", deposit.WalletId),
				zap.Error(err))
			continue
		}
		s.markProcessed(deposit.Id)

		zap.L().Info("Deposit routed through split engine",
			zap.String("transaction_id", deposit.Id),
			zap.String("wallet_id", deposit.WalletId),
			zap.String("amount", deposit.Amount.String()),
			zap.Int("drafts", len(drafts)))
	}
	return nil
}

func (s *Sweeper) isProcessed(txId string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.processedTxIds[txId]
	return ok
}

func (s *Sweeper) markProcessed(txId string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.processedTxIds[txId] = time.Now().UTC()
}

// cleanupLoop prunes processed-deposit ids that fell out of the lookback
// window, bounding memory on long runs.
func (s *Sweeper) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) cleanup() {
	cutoff := time.Now().UTC().Add(-s.lookbackWindow)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	removed := 0
	for txId, processedAt := range s.processedTxIds {
		if processedAt.Before(cutoff) {
			delete(s.processedTxIds, txId)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Debug("Cleaned up processed deposit ids", zap.Int("removed", removed))
	}
}
