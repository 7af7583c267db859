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

package splitter

import (
	"context"
	"fmt"
	"time"

	"multisig-wallet-go/internal/gateway"
	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// splitProposalTTL bounds how long a rule-originated draft accepts
// signatures before expiring, matching the approval default.
const splitProposalTTL = 7 * 24 * time.Hour

// Engine evaluates split rules against incoming funds and emits draft split
// transactions. It shares the wallet registry context (balances,
// participants) but is independent of the approval state machine: drafts it
// emits re-enter that pipeline on their own.
type Engine struct {
	store    store.WalletStore
	notifier gateway.Notifier
	defaults models.SplitterConfig
	now      func() time.Time
}

// NewEngine creates a fund-split engine with explicit defaults; nothing is
// read from process-global state.
func NewEngine(walletStore store.WalletStore, notifier gateway.Notifier, defaults models.SplitterConfig) *Engine {
	if defaults.RemainderAction == "" {
		defaults.RemainderAction = models.RemainderKeepInWallet
	}
	if defaults.DecimalPlaces < 0 {
		defaults.DecimalPlaces = 2
	}
	return &Engine{
		store:    walletStore,
		notifier: notifier,
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRule validates and stores a new split rule. Admin only.
func (e *Engine) CreateRule(ctx context.Context, rule *models.SplitRule, actorId string) (*models.SplitRule, error) {
	w, err := e.store.GetWallet(ctx, rule.WalletId)
	if err != nil {
		return nil, err
	}
	if !w.HasPermission(actorId, models.CapManageRules) {
		return nil, fmt.Errorf("%w: %s cannot manage rules of wallet %s",
			models.ErrPermission, actorId, w.Id)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	if rule.Id == "" {
		rule.Id = uuid.New().String()
	}
	if rule.Status == "" {
		rule.Status = models.RuleActive
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := e.store.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	zap.L().Info("Split rule created",
		zap.String("rule_id", rule.Id),
		zap.String("wallet_id", rule.WalletId),
		zap.String("type", string(rule.Type)),
		zap.Int("priority", rule.Priority))
	return rule, nil
}

// SetRuleStatus activates, deactivates, or suspends a rule. Admin only.
// Execution history is untouched.
func (e *Engine) SetRuleStatus(ctx context.Context, ruleId string, status models.RuleStatus, actorId string) (*models.SplitRule, error) {
	switch status {
	case models.RuleActive, models.RuleInactive, models.RuleSuspended:
	default:
		return nil, fmt.Errorf("%w: unknown rule status %q", models.ErrValidation, status)
	}

	var result *models.SplitRule
	err := store.RetryConflict(ctx, func(ctx context.Context) error {
		rule, err := e.store.GetRule(ctx, ruleId)
		if err != nil {
			return err
		}
		w, err := e.store.GetWallet(ctx, rule.WalletId)
		if err != nil {
			return err
		}
		if !w.HasPermission(actorId, models.CapManageRules) {
			return fmt.Errorf("%w: %s cannot manage rules of wallet %s",
				models.ErrPermission, actorId, w.Id)
		}
		rule.Status = status
		if err := e.store.SaveRule(ctx, rule); err != nil {
			return err
		}
		result = rule
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EvaluateWallet runs the wallet's active rules against an incoming amount.
//
// Rules are consumed strictly in ascending priority order and draw from a
// shared remaining pool: each applied rule sees only what earlier rules left
// unallocated, so two active rules can never jointly overcommit the incoming
// amount. One draft split transaction is emitted per destination, and an
// execution-history entry is recorded per applied rule regardless of what
// happens to the drafts downstream.
func (e *Engine) EvaluateWallet(ctx context.Context, walletId string, incomingAmount decimal.Decimal, kind models.TransactionKind) ([]models.Transaction, error) {
	if incomingAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: incoming amount must be positive, got %s",
			models.ErrValidation, incomingAmount.String())
	}

	w, err := e.store.GetWallet(ctx, walletId)
	if err != nil {
		return nil, err
	}
	rules, err := e.store.ListActiveRules(ctx, walletId)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	pool := incomingAmount
	now := e.now()
	var drafts []models.Transaction

	for i := range rules {
		rule := &rules[i]
		if pool.LessThanOrEqual(decimal.Zero) {
			break
		}
		evalCtx := Context{
			Amount:        pool,
			Kind:          kind,
			WalletBalance: w.Balance,
			Timestamp:     now,
		}
		if !ShouldApply(rule, evalCtx) {
			continue
		}

		result, err := ComputeSplits(rule, pool, e.defaults)
		if err != nil {
			e.recordExecution(ctx, rule.Id, models.RuleExecution{
				Id:         uuid.New().String(),
				Amount:     pool,
				Allocated:  decimal.Zero,
				Remainder:  pool,
				Status:     models.ExecutionFailed,
				Outcomes:   nil,
				ExecutedAt: now,
			})
			zap.L().Error("Split computation failed",
				zap.String("rule_id", rule.Id),
				zap.Error(err))
			continue
		}

		outcomes := make([]models.DestinationOutcome, 0, len(result.Allocations))
		succeeded := 0
		for _, alloc := range result.Allocations {
			draft, err := e.emitDraft(ctx, w, rule, alloc, now)
			if err != nil {
				// one bad destination never aborts the rest of the pass
				outcomes = append(outcomes, models.DestinationOutcome{
					Destination: alloc.Destination,
					Amount:      alloc.Amount,
					Status:      models.ExecutionFailed,
					Detail:      err.Error(),
				})
				zap.L().Warn("Split destination failed",
					zap.String("rule_id", rule.Id),
					zap.String("destination", alloc.Destination),
					zap.Error(err))
				continue
			}
			succeeded++
			drafts = append(drafts, *draft)
			outcomes = append(outcomes, models.DestinationOutcome{
				Destination:   alloc.Destination,
				Amount:        alloc.Amount,
				TransactionId: draft.Id,
				Status:        models.ExecutionSuccess,
			})
		}

		status := models.ExecutionSuccess
		switch {
		case len(outcomes) == 0 || succeeded == 0:
			status = models.ExecutionFailed
		case succeeded < len(outcomes):
			status = models.ExecutionPartialSuccess
		}

		e.recordExecution(ctx, rule.Id, models.RuleExecution{
			Id:         uuid.New().String(),
			Amount:     pool,
			Allocated:  result.Allocated(),
			Remainder:  result.Remainder,
			Status:     status,
			Outcomes:   outcomes,
			ExecutedAt: now,
		})

		zap.L().Info("Split rule applied",
			zap.String("rule_id", rule.Id),
			zap.String("wallet_id", walletId),
			zap.String("pool", pool.String()),
			zap.String("allocated", result.Allocated().String()),
			zap.String("remainder", result.Remainder.String()),
			zap.String("status", string(status)))

		// later rules draw only from what this rule left unallocated
		pool = pool.Sub(result.Allocated())
	}

	gateway.SendNotification(ctx, e.notifier, walletId, "funds.split", map[string]string{
		"incoming":    incomingAmount.String(),
		"unallocated": pool.String(),
		"drafts":      fmt.Sprintf("%d", len(drafts)),
	})
	return drafts, nil
}

// emitDraft creates one split transaction for a destination. Rules that
// require co-signature enter the approval pipeline as Proposed with the
// wallet's current threshold; auto-execute rules start out Approved.
func (e *Engine) emitDraft(ctx context.Context, w *models.Wallet, rule *models.SplitRule, alloc Allocation, now time.Time) (*models.Transaction, error) {
	if alloc.Destination == "" {
		return nil, fmt.Errorf("%w: split destination is empty", models.ErrValidation)
	}

	tx := &models.Transaction{
		Id:                 uuid.New().String(),
		WalletId:           w.Id,
		Kind:               models.KindSplit,
		Amount:             alloc.Amount,
		Currency:           w.Currency,
		Status:             models.StatusProposed,
		RequiredSignatures: w.Threshold,
		Destination:        alloc.Destination,
		Reference:          fmt.Sprintf("split by rule %s", rule.Name),
		SourceRuleId:       rule.Id,
		ProposedBy:         "fund-split-engine",
		ProposedAt:         now,
		ExpiresAt:          now.Add(splitProposalTTL),
	}
	audit(tx, "created", "fund-split-engine", fmt.Sprintf("rule %s", rule.Id), now)

	if rule.Settings.AutoExecute && !rule.Settings.RequireApproval {
		// configured for direct execution: no co-signature round needed
		approvedAt := now
		tx.ApprovedAt = &approvedAt
		tx.Status = models.StatusApproved
		audit(tx, "approved", "fund-split-engine", "auto-execute rule", now)
	}

	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to store split draft: %w", err)
	}
	return tx, nil
}

// recordExecution appends one history entry to the rule. History is
// append-only and survives regardless of draft outcomes; a version conflict
// re-reads and re-appends.
func (e *Engine) recordExecution(ctx context.Context, ruleId string, exec models.RuleExecution) {
	err := store.RetryConflict(ctx, func(ctx context.Context) error {
		rule, err := e.store.GetRule(ctx, ruleId)
		if err != nil {
			return err
		}
		rule.History = append(rule.History, exec)
		return e.store.SaveRule(ctx, rule)
	})
	if err != nil {
		zap.L().Error("Failed to record rule execution",
			zap.String("rule_id", ruleId),
			zap.Error(err))
	}
}

// audit mirrors the approval package's trail helper for engine-created drafts.
func audit(tx *models.Transaction, event, actor, detail string, at time.Time) {
	tx.AuditTrail = append(tx.AuditTrail, models.AuditEntry{
		Id:     uuid.New().String(),
		Event:  event,
		Actor:  actor,
		Detail: detail,
		At:     at,
	})
}
