package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a proposed value movement.
type TransactionKind string

const (
	KindPayment       TransactionKind = "payment"
	KindDeposit       TransactionKind = "deposit"
	KindSplit         TransactionKind = "split"
	KindConfiguration TransactionKind = "configuration"
)

// TransactionStatus is the approval state machine state.
type TransactionStatus string

const (
	StatusProposed  TransactionStatus = "proposed"
	StatusApproved  TransactionStatus = "approved"
	StatusRejected  TransactionStatus = "rejected"
	StatusExpired   TransactionStatus = "expired"
	StatusExecuting TransactionStatus = "executing"
	StatusExecuted  TransactionStatus = "executed"
	StatusFailed    TransactionStatus = "failed"
)

// legalTransitions is the full transition table. Anything absent is illegal.
var legalTransitions = map[TransactionStatus][]TransactionStatus{
	StatusProposed:  {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved:  {StatusExecuting, StatusRejected},
	StatusExecuting: {StatusExecuted, StatusFailed},
}

// CanTransition reports whether from -> to is a legal state machine edge.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transition is possible.
func IsTerminalStatus(s TransactionStatus) bool {
	return len(legalTransitions[s]) == 0
}

// Signature is one participant's approval of a transaction.
type Signature struct {
	ParticipantId string    `json:"participant_id"`
	Blob          []byte    `json:"blob"`
	SignedAt      time.Time `json:"signed_at"`
}

// SignatureSet is an append-only collection of signatures, at most one per
// participant. The zero value is ready to use.
type SignatureSet []Signature

// Has reports whether the participant has already signed.
func (s SignatureSet) Has(participantId string) bool {
	for _, sig := range s {
		if sig.ParticipantId == participantId {
			return true
		}
	}
	return false
}

// Add appends a signature, refusing duplicates. It returns the extended set;
// the receiver is never mutated in place beyond append semantics.
func (s SignatureSet) Add(sig Signature) (SignatureSet, error) {
	if s.Has(sig.ParticipantId) {
		return s, fmt.Errorf("%w: participant %s already signed", ErrConflict, sig.ParticipantId)
	}
	return append(s, sig), nil
}

// AuditEntry is one record in a transaction's append-only lifecycle log.
type AuditEntry struct {
	Id     string    `json:"id"`
	Event  string    `json:"event"`
	Actor  string    `json:"actor,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Transaction is a proposed value movement on a wallet. It is created on
// proposal, mutated only through the approval state machine, and never
// deleted: terminal transactions are retained for audit.
type Transaction struct {
	Id       string            `json:"id"`
	WalletId string            `json:"wallet_id"`
	Kind     TransactionKind   `json:"kind"`
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Status   TransactionStatus `json:"status"`

	Signatures SignatureSet `json:"signatures"`

	// RequiredSignatures snapshots the wallet threshold at proposal time so a
	// later threshold change never retroactively invalidates an in-flight
	// approval.
	RequiredSignatures int `json:"required_signatures"`

	Destination string `json:"destination,omitempty"`
	Reference   string `json:"reference,omitempty"`
	// SourceRuleId links a split transaction back to the rule that emitted it.
	SourceRuleId string `json:"source_rule_id,omitempty"`

	ProposedBy  string     `json:"proposed_by"`
	ProposedAt  time.Time  `json:"proposed_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	TerminalAt  *time.Time `json:"terminal_at,omitempty"`
	ExternalRef string     `json:"external_ref,omitempty"`
	FailureMsg  string     `json:"failure_msg,omitempty"`

	AuditTrail []AuditEntry `json:"audit_trail"`
	Version    int64        `json:"version"`
}

// IsTerminal reports whether the transaction reached a terminal state.
func (t *Transaction) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// PastDue reports whether a proposed transaction is beyond its expiry.
func (t *Transaction) PastDue(now time.Time) bool {
	return t.Status == StatusProposed && now.After(t.ExpiresAt)
}

// QuorumReached reports whether enough distinct signatures were collected.
func (t *Transaction) QuorumReached() bool {
	return len(t.Signatures) >= t.RequiredSignatures
}

// SigningMessage is the canonical byte string a participant signs. The same
// bytes are handed to the verification capability on AddSignature.
func (t *Transaction) SigningMessage() []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s", t.Id, t.WalletId, t.Amount.String(), t.Currency))
}
