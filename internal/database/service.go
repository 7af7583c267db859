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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.WalletStore.
var _ store.WalletStore = (*Service)(nil)

// Service is the SQLite WalletStore backend. Aggregates (participants,
// signatures, audit trails, rule configuration) are stored as JSON columns;
// amounts are stored as TEXT and parsed into decimals on read. Every row
// carries a version column for compare-and-swap saves.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Wallets: membership and threshold live in the participants JSON blob;
	-- the whole aggregate is saved and versioned as one row.
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		threshold INTEGER NOT NULL,
		participants TEXT NOT NULL,
		status TEXT NOT NULL,
		balance TEXT NOT NULL,
		currency TEXT NOT NULL,
		creator_id TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallets_status ON wallets(status);

	-- Transactions: never deleted, terminal rows retained for audit.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		signatures TEXT NOT NULL,
		required_signatures INTEGER NOT NULL,
		destination TEXT,
		reference TEXT,
		source_rule_id TEXT,
		proposed_by TEXT NOT NULL,
		proposed_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		approved_at TIMESTAMP,
		terminal_at TIMESTAMP,
		external_ref TEXT,
		failure_msg TEXT,
		audit_trail TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_wallet_status ON transactions(wallet_id, status);
	CREATE INDEX IF NOT EXISTS idx_transactions_kind_status ON transactions(kind, status);
	CREATE INDEX IF NOT EXISTS idx_transactions_terminal_at ON transactions(terminal_at);

	-- Split rules with embedded append-only execution history.
	CREATE TABLE IF NOT EXISTS split_rules (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		name TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		status TEXT NOT NULL,
		priority INTEGER NOT NULL,
		conditions TEXT NOT NULL,
		splits TEXT NOT NULL,
		settings TEXT NOT NULL,
		history TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_split_rules_wallet_status ON split_rules(wallet_id, status);
	CREATE INDEX IF NOT EXISTS idx_split_rules_priority ON split_rules(priority);
	`

	_, err := s.db.Exec(schema)
	return err
}
