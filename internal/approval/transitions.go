package approval

import (
	"fmt"
	"time"

	"multisig-wallet-go/internal/models"

	"github.com/google/uuid"
)

// The functions in this file are pure: they take a transaction value, return
// a mutated copy or an error, and touch no storage. The service wraps them in
// a compare-and-swap save so the whole check-then-act sequence commits
// atomically per transaction.

// audit appends one lifecycle event to the transaction's append-only trail.
func audit(tx *models.Transaction, event, actor, detail string, at time.Time) {
	tx.AuditTrail = append(tx.AuditTrail, models.AuditEntry{
		Id:     uuid.New().String(),
		Event:  event,
		Actor:  actor,
		Detail: detail,
		At:     at,
	})
}

// transition moves the transaction to a new status, enforcing the state
// machine's transition table and stamping terminal time.
func transition(tx *models.Transaction, to models.TransactionStatus, actor, detail string, at time.Time) error {
	if !models.CanTransition(tx.Status, to) {
		return fmt.Errorf("%w: %s -> %s on transaction %s",
			models.ErrStateConflict, tx.Status, to, tx.Id)
	}
	tx.Status = to
	if models.IsTerminalStatus(to) {
		terminal := at
		tx.TerminalAt = &terminal
	}
	audit(tx, string(to), actor, detail, at)
	return nil
}

// applySignature appends a signature and, when the quorum is crossed,
// transitions to Approved in the same step. ApprovedAt is stamped only on the
// crossing, never re-set by later saves.
func applySignature(tx *models.Transaction, sig models.Signature, now time.Time) (approved bool, err error) {
	if tx.Status != models.StatusProposed {
		return false, fmt.Errorf("%w: cannot sign transaction %s in state %s",
			models.ErrStateConflict, tx.Id, tx.Status)
	}

	signatures, err := tx.Signatures.Add(sig)
	if err != nil {
		return false, err
	}
	tx.Signatures = signatures
	audit(tx, "signed", sig.ParticipantId, "", now)

	if !tx.QuorumReached() {
		return false, nil
	}
	approvedAt := now
	tx.ApprovedAt = &approvedAt
	if err := transition(tx, models.StatusApproved,
		sig.ParticipantId, fmt.Sprintf("quorum %d/%d", len(tx.Signatures), tx.RequiredSignatures), now); err != nil {
		return false, err
	}
	return true, nil
}

// expire moves a past-due proposal to Expired. Safe to call redundantly: a
// transaction that already left Proposed is reported as-is, not an error.
func expire(tx *models.Transaction, now time.Time) bool {
	if !tx.PastDue(now) {
		return false
	}
	// transition cannot fail here: Proposed -> Expired is always legal.
	_ = transition(tx, models.StatusExpired, "", "proposal TTL elapsed", now)
	return true
}
