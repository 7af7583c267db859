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

const (
	// Wallet queries
	queryInsertWallet = `
		INSERT INTO wallets (id, name, threshold, participants, status, balance,
			currency, creator_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWallet = `
		SELECT id, name, threshold, participants, status, balance, currency,
			creator_id, version, created_at, updated_at
		FROM wallets
		WHERE id = ?`

	queryListWallets = `
		SELECT id, name, threshold, participants, status, balance, currency,
			creator_id, version, created_at, updated_at
		FROM wallets
		ORDER BY created_at`

	queryUpdateWallet = `
		UPDATE wallets
		SET name = ?, threshold = ?, participants = ?, status = ?, balance = ?,
			currency = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (id, wallet_id, kind, amount, currency, status,
			signatures, required_signatures, destination, reference, source_rule_id,
			proposed_by, proposed_at, expires_at, approved_at, terminal_at,
			external_ref, failure_msg, audit_trail, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT id, wallet_id, kind, amount, currency, status, signatures,
			required_signatures, destination, reference, source_rule_id,
			proposed_by, proposed_at, expires_at, approved_at, terminal_at,
			external_ref, failure_msg, audit_trail, version
		FROM transactions
		WHERE id = ?`

	queryListProposed = `
		SELECT id, wallet_id, kind, amount, currency, status, signatures,
			required_signatures, destination, reference, source_rule_id,
			proposed_by, proposed_at, expires_at, approved_at, terminal_at,
			external_ref, failure_msg, audit_trail, version
		FROM transactions
		WHERE wallet_id = ? AND status = 'proposed'
		ORDER BY proposed_at`

	queryListExecutedDeposits = `
		SELECT id, wallet_id, kind, amount, currency, status, signatures,
			required_signatures, destination, reference, source_rule_id,
			proposed_by, proposed_at, expires_at, approved_at, terminal_at,
			external_ref, failure_msg, audit_trail, version
		FROM transactions
		WHERE kind = 'deposit' AND status = 'executed' AND terminal_at >= ?
		ORDER BY terminal_at`

	queryUpdateTransaction = `
		UPDATE transactions
		SET status = ?, signatures = ?, approved_at = ?, terminal_at = ?,
			external_ref = ?, failure_msg = ?, audit_trail = ?, version = version + 1
		WHERE id = ? AND version = ?`

	// Split rule queries
	queryInsertRule = `
		INSERT INTO split_rules (id, wallet_id, name, rule_type, status, priority,
			conditions, splits, settings, history, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetRule = `
		SELECT id, wallet_id, name, rule_type, status, priority, conditions,
			splits, settings, history, version, created_at, updated_at
		FROM split_rules
		WHERE id = ?`

	queryListActiveRules = `
		SELECT id, wallet_id, name, rule_type, status, priority, conditions,
			splits, settings, history, version, created_at, updated_at
		FROM split_rules
		WHERE wallet_id = ? AND status = 'active'
		ORDER BY priority, created_at`

	queryUpdateRule = `
		UPDATE split_rules
		SET name = ?, rule_type = ?, status = ?, priority = ?, conditions = ?,
			splits = ?, settings = ?, history = ?, version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`
)
