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

package approval

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

// DefaultProposalTTL applies when the config leaves the TTL unset.
const DefaultProposalTTL = 7 * 24 * time.Hour

// Service drives transactions through the approval state machine.
//
// Concurrency model: every mutation is load -> pure transition -> version-
// checked save, retried on conflict. Concurrent signers of one transaction
// serialize on that transaction's version; unrelated transactions never
// contend. No network call happens inside the load/save window.
type Service struct {
	store    store.WalletStore
	verifier gateway.Verifier
	notifier gateway.Notifier
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates an approval service. The verifier is required; a nil
// notifier disables notifications.
func NewService(walletStore store.WalletStore, verifier gateway.Verifier, notifier gateway.Notifier, cfg models.ApprovalConfig) *Service {
	ttl := cfg.ProposalTTL
	if ttl <= 0 {
		ttl = DefaultProposalTTL
	}
	return &Service{
		store:    walletStore,
		verifier: verifier,
		notifier: notifier,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProposeParams carries the inputs for one proposal.
type ProposeParams struct {
	WalletId    string
	Kind        models.TransactionKind
	Amount      decimal.Decimal
	Currency    string
	Destination string
	Reference   string
	// SourceRuleId is set when the fund-split engine originates the proposal.
	SourceRuleId string
	ActorId      string
}

// Propose creates a transaction in Proposed state. The wallet threshold is
// snapshotted as RequiredSignatures so later threshold changes never touch
// in-flight approvals. Payment proposals are checked against the cached
// wallet balance.
func (s *Service) Propose(ctx context.Context, params ProposeParams) (*models.Transaction, error) {
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive, got %s",
			models.ErrValidation, params.Amount.String())
	}
	switch params.Kind {
	case models.KindPayment, models.KindDeposit, models.KindSplit, models.KindConfiguration:
	default:
		return nil, fmt.Errorf("%w: unknown transaction kind %q", models.ErrValidation, params.Kind)
	}
	if (params.Kind == models.KindPayment || params.Kind == models.KindSplit) && params.Destination == "" {
		return nil, fmt.Errorf("%w: %s requires a destination", models.ErrValidation, params.Kind)
	}

	w, err := s.store.GetWallet(ctx, params.WalletId)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WalletActive {
		return nil, fmt.Errorf("%w: wallet %s is %s", models.ErrStateConflict, w.Id, w.Status)
	}
	if !w.IsParticipant(params.ActorId) {
		return nil, fmt.Errorf("%w: %s is not a participant of wallet %s",
			models.ErrPermission, params.ActorId, w.Id)
	}
	if params.Kind == models.KindPayment && params.Amount.GreaterThan(w.Balance) {
		return nil, fmt.Errorf("%w: amount %s exceeds wallet balance %s",
			models.ErrInsufficientFunds, params.Amount.String(), w.Balance.String())
	}

	now := s.now()
	tx := &models.Transaction{
		Id:                 uuid.New().String(),
		WalletId:           w.Id,
		Kind:               params.Kind,
		Amount:             params.Amount,
		Currency:           params.Currency,
		Status:             models.StatusProposed,
		RequiredSignatures: w.Threshold,
		Destination:        params.Destination,
		Reference:          params.Reference,
		SourceRuleId:       params.SourceRuleId,
		ProposedBy:         params.ActorId,
		ProposedAt:         now,
		ExpiresAt:          now.Add(s.ttl),
	}
	if tx.Currency == "" {
		tx.Currency = w.Currency
	}
	audit(tx, "created", params.ActorId, string(params.Kind), now)

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	zap.L().Info("Transaction proposed",
		zap.String("transaction_id", tx.Id),
		zap.String("wallet_id", tx.WalletId),
		zap.String("kind", string(tx.Kind)),
		zap.String("amount", tx.Amount.String()),
		zap.Int("required_signatures", tx.RequiredSignatures))

	gateway.SendNotification(ctx, s.notifier, tx.WalletId, "transaction.proposed", map[string]string{
		"transaction_id": tx.Id,
		"kind":           string(tx.Kind),
		"amount":         tx.Amount.String(),
	})
	return tx, nil
}

// AddSignature verifies and appends one participant signature, transitioning
// to Approved atomically when the quorum is crossed. The append and the
// quorum check commit in a single version-checked save, so the Approved
// transition fires exactly once no matter how many signers race.
func (s *Service) AddSignature(ctx context.Context, txId, participantId string, signatureBlob []byte) (*models.Transaction, error) {
	var result *models.Transaction
	var approved bool

	err := store.RetryConflict(ctx, func(ctx context.Context) error {
		approved = false
		tx, err := s.store.GetTransaction(ctx, txId)
		if err != nil {
			return err
		}
		now := s.now()

		if expire(tx, now) {
			// Persist the expiry as a side effect, then refuse the signature.
			if err := s.store.SaveTransaction(ctx, tx); err != nil {
				return err
			}
			return fmt.Errorf("%w: transaction %s expired at %s",
				models.ErrExpired, tx.Id, tx.ExpiresAt.Format(time.RFC3339))
		}
		if tx.Status != models.StatusProposed {
			return fmt.Errorf("%w: cannot sign transaction %s in state %s",
				models.ErrStateConflict, tx.Id, tx.Status)
		}

		w, err := s.store.GetWallet(ctx, tx.WalletId)
		if err != nil {
			return err
		}
		participant := w.FindParticipant(participantId)
		if participant == nil || participant.Status != models.MembershipActive {
			return fmt.Errorf("%w: %s is not an active participant of wallet %s",
				models.ErrPermission, participantId, w.Id)
		}
		if tx.Signatures.Has(participantId) {
			return fmt.Errorf("%w: participant %s already signed", models.ErrConflict, participantId)
		}
		if !s.verifier.Verify(participant.PublicKey, tx.SigningMessage(), signatureBlob) {
			return fmt.Errorf("%w: participant %s on transaction %s",
				models.ErrSignatureInvalid, participantId, tx.Id)
		}

		approved, err = applySignature(tx, models.Signature{
			ParticipantId: participantId,
			Blob:          signatureBlob,
			SignedAt:      now,
		}, now)
		if err != nil {
			return err
		}
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Signature recorded",
		zap.String("transaction_id", result.Id),
		zap.String("participant_id", participantId),
		zap.Int("signatures", len(result.Signatures)),
		zap.Int("required", result.RequiredSignatures),
		zap.Bool("approved", approved))

	if approved {
		gateway.SendNotification(ctx, s.notifier, result.WalletId, "transaction.approved", map[string]string{
			"transaction_id": result.Id,
			"amount":         result.Amount.String(),
		})
	}
	return result, nil
}

// Reject moves a Proposed or Approved transaction to Rejected. Admin only.
func (s *Service) Reject(ctx context.Context, txId, actorId, reason string) (*models.Transaction, error) {
	result, err := s.mutate(ctx, txId, func(tx *models.Transaction, w *models.Wallet, now time.Time) error {
		if !w.HasPermission(actorId, models.CapReject) {
			return fmt.Errorf("%w: %s cannot reject transactions of wallet %s",
				models.ErrPermission, actorId, w.Id)
		}
		return transition(tx, models.StatusRejected, actorId, reason, now)
	})
	if err != nil {
		return nil, err
	}
	gateway.SendNotification(ctx, s.notifier, result.WalletId, "transaction.rejected", map[string]string{
		"transaction_id": result.Id,
		"reason":         reason,
	})
	return result, nil
}

// BeginExecution reserves an Approved transaction for broadcast by moving it
// to Executing. The version-checked save admits exactly one caller, so a
// transaction can never be broadcast twice. The gateway call itself happens
// outside this method, never inside the load/save window.
func (s *Service) BeginExecution(ctx context.Context, txId, actorId string) (*models.Transaction, error) {
	return s.mutate(ctx, txId, func(tx *models.Transaction, w *models.Wallet, now time.Time) error {
		if !w.HasPermission(actorId, models.CapExecute) {
			return fmt.Errorf("%w: %s cannot execute transactions of wallet %s",
				models.ErrPermission, actorId, w.Id)
		}
		if tx.Status != models.StatusApproved {
			return fmt.Errorf("%w: cannot begin execution of transaction %s in state %s",
				models.ErrStateConflict, tx.Id, tx.Status)
		}
		return transition(tx, models.StatusExecuting, actorId, "", now)
	})
}

// CompleteExecution records the gateway's result: Executed with the external
// reference on success, Failed with the preserved error on failure. Failed is
// terminal; a retry is a fresh proposal, never a resurrection.
func (s *Service) CompleteExecution(ctx context.Context, txId string, result gateway.Result) (*models.Transaction, error) {
	tx, err := s.mutate(ctx, txId, func(tx *models.Transaction, _ *models.Wallet, now time.Time) error {
		if result.Success {
			tx.ExternalRef = result.Ref
			return transition(tx, models.StatusExecuted, "", result.Ref, now)
		}
		tx.FailureMsg = result.Err
		return transition(tx, models.StatusFailed, "", result.Err, now)
	})
	if err != nil {
		return nil, err
	}

	event := "transaction.executed"
	if !result.Success {
		event = "transaction.failed"
	}
	gateway.SendNotification(ctx, s.notifier, tx.WalletId, event, map[string]string{
		"transaction_id": tx.Id,
		"external_ref":   tx.ExternalRef,
		"error":          tx.FailureMsg,
	})
	return tx, nil
}

// Get loads a transaction, lazily expiring a past-due proposal so callers
// always observe the Expired state.
func (s *Service) Get(ctx context.Context, txId string) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txId)
	if err != nil {
		return nil, err
	}
	if expire(tx, s.now()) {
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			// Another reader may have expired it first; return the fresh state.
			return s.store.GetTransaction(ctx, txId)
		}
	}
	return tx, nil
}

// ListPending returns a wallet's Proposed transactions.
func (s *Service) ListPending(ctx context.Context, walletId string) ([]models.Transaction, error) {
	return s.store.ListProposed(ctx, walletId)
}

// ExpireOverdue sweeps one wallet's proposals, expiring any past-due ones.
// Idempotent; redundant sweeps are harmless. Returns how many expired.
func (s *Service) ExpireOverdue(ctx context.Context, walletId string) (int, error) {
	proposed, err := s.store.ListProposed(ctx, walletId)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range proposed {
		tx := &proposed[i]
		if !expire(tx, s.now()) {
			continue
		}
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			// A racing sweep or a signer already handled it; skip.
			zap.L().Debug("Expiry save skipped",
				zap.String("transaction_id", tx.Id),
				zap.Error(err))
			continue
		}
		expired++
		gateway.SendNotification(ctx, s.notifier, tx.WalletId, "transaction.expired", map[string]string{
			"transaction_id": tx.Id,
		})
	}
	return expired, nil
}

// mutate loads transaction and wallet, applies fn, and saves the transaction
// with the version read, retrying on conflict.
func (s *Service) mutate(ctx context.Context, txId string, fn func(*models.Transaction, *models.Wallet, time.Time) error) (*models.Transaction, error) {
	var result *models.Transaction
	err := store.RetryConflict(ctx, func(ctx context.Context) error {
		tx, err := s.store.GetTransaction(ctx, txId)
		if err != nil {
			return err
		}
		w, err := s.store.GetWallet(ctx, tx.WalletId)
		if err != nil {
			return err
		}
		if err := fn(tx, w, s.now()); err != nil {
			return err
		}
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
