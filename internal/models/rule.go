package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RuleType selects the split computation strategy.
type RuleType string

const (
	RulePercentage    RuleType = "percentage"
	RuleFixedAmount   RuleType = "fixed_amount"
	RulePriorityBased RuleType = "priority_based"
)

// RuleStatus controls whether a rule participates in evaluation.
type RuleStatus string

const (
	RuleActive    RuleStatus = "active"
	RuleInactive  RuleStatus = "inactive"
	RuleSuspended RuleStatus = "suspended"
)

// AllocationType selects how a priority_based entry computes its share.
type AllocationType string

const (
	AllocPercentage AllocationType = "percentage"
	AllocFixed      AllocationType = "fixed"
)

// RemainderAction governs leftover amount after a rule's entries are applied.
type RemainderAction string

const (
	RemainderKeepInWallet     RemainderAction = "keep_in_wallet"
	RemainderAddToFirst       RemainderAction = "add_to_first"
	RemainderAddToLast        RemainderAction = "add_to_last"
	RemainderDistributeEvenly RemainderAction = "distribute_evenly"
)

// SplitEntry is one destination in a rule's split configuration.
// Percentage is used by percentage rules and percentage-allocation priority
// entries; Amount by fixed_amount rules and fixed-allocation priority entries.
type SplitEntry struct {
	Destination    string          `json:"destination"`
	Percentage     decimal.Decimal `json:"percentage"`
	Amount         decimal.Decimal `json:"amount"`
	Priority       int             `json:"priority"`
	AllocationType AllocationType  `json:"allocation_type,omitempty"`
}

// RuleConditions gate whether a rule applies to an incoming amount.
// Nil bounds are unconstrained.
type RuleConditions struct {
	MinAmount  *decimal.Decimal  `json:"min_amount,omitempty"`
	MaxAmount  *decimal.Decimal  `json:"max_amount,omitempty"`
	Kinds      []TransactionKind `json:"kinds,omitempty"` // empty = wildcard
	Days       []time.Weekday    `json:"days,omitempty"`  // empty = any day
	StartTime  string            `json:"start_time,omitempty"` // "HH:MM", inclusive
	EndTime    string            `json:"end_time,omitempty"`   // "HH:MM", inclusive
	MinBalance *decimal.Decimal  `json:"min_balance,omitempty"`
	MaxBalance *decimal.Decimal  `json:"max_balance,omitempty"`
}

// AdvancedSettings tune rounding, remainder handling, and downstream routing.
// A nil DecimalPlaces defers to the engine defaults; zero means whole units.
type AdvancedSettings struct {
	DecimalPlaces     *int32          `json:"decimal_places,omitempty"`
	RemainderAction   RemainderAction `json:"remainder_action"`
	AllowPartialSplit bool            `json:"allow_partial_split"`
	MinPerDestination decimal.Decimal `json:"min_per_destination"`
	AutoExecute       bool            `json:"auto_execute"`
	RequireApproval   bool            `json:"require_approval"`
}

// ExecutionStatus summarizes one rule evaluation.
type ExecutionStatus string

const (
	ExecutionSuccess        ExecutionStatus = "success"
	ExecutionPartialSuccess ExecutionStatus = "partial_success"
	ExecutionFailed         ExecutionStatus = "failed"
)

// DestinationOutcome records the result for one destination of one evaluation.
type DestinationOutcome struct {
	Destination   string          `json:"destination"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionId string          `json:"transaction_id,omitempty"`
	Status        ExecutionStatus `json:"status"`
	Detail        string          `json:"detail,omitempty"`
}

// RuleExecution is one append-only record in a rule's execution history.
// History is never rewritten, regardless of downstream execution results.
type RuleExecution struct {
	Id         string               `json:"id"`
	Amount     decimal.Decimal      `json:"amount"`
	Allocated  decimal.Decimal      `json:"allocated"`
	Remainder  decimal.Decimal      `json:"remainder"`
	Status     ExecutionStatus      `json:"status"`
	Outcomes   []DestinationOutcome `json:"outcomes"`
	ExecutedAt time.Time            `json:"executed_at"`
}

// SplitRule is a declarative policy distributing incoming funds.
type SplitRule struct {
	Id         string           `json:"id"`
	WalletId   string           `json:"wallet_id"`
	Name       string           `json:"name"`
	Type       RuleType         `json:"type"`
	Status     RuleStatus       `json:"status"`
	Priority   int              `json:"priority"` // lower = evaluated first
	Conditions RuleConditions   `json:"conditions"`
	Splits     []SplitEntry     `json:"splits"`
	Settings   AdvancedSettings `json:"settings"`
	History    []RuleExecution  `json:"history"`
	Version    int64            `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Validate checks the rule's structural invariants.
func (r *SplitRule) Validate() error {
	switch r.Type {
	case RulePercentage, RuleFixedAmount, RulePriorityBased:
	default:
		return fmt.Errorf("%w: unknown rule type %q", ErrValidation, r.Type)
	}
	if len(r.Splits) == 0 {
		return fmt.Errorf("%w: rule needs at least one split entry", ErrValidation)
	}

	switch r.Settings.RemainderAction {
	case RemainderKeepInWallet, RemainderAddToFirst, RemainderAddToLast, RemainderDistributeEvenly:
	case "":
		// filled in from config defaults by the caller
	default:
		return fmt.Errorf("%w: unknown remainder action %q", ErrValidation, r.Settings.RemainderAction)
	}
	if r.Settings.DecimalPlaces != nil && *r.Settings.DecimalPlaces < 0 {
		return fmt.Errorf("%w: decimal places cannot be negative", ErrValidation)
	}

	totalPct := decimal.Zero
	for i, entry := range r.Splits {
		if entry.Destination == "" {
			return fmt.Errorf("%w: split entry %d missing destination", ErrValidation, i)
		}
		switch r.Type {
		case RulePercentage:
			if entry.Percentage.LessThanOrEqual(decimal.Zero) {
				return fmt.Errorf("%w: split entry %d percentage must be positive", ErrValidation, i)
			}
			totalPct = totalPct.Add(entry.Percentage)
		case RuleFixedAmount:
			if entry.Amount.LessThanOrEqual(decimal.Zero) {
				return fmt.Errorf("%w: split entry %d amount must be positive", ErrValidation, i)
			}
		case RulePriorityBased:
			switch entry.AllocationType {
			case AllocPercentage:
				if entry.Percentage.LessThanOrEqual(decimal.Zero) {
					return fmt.Errorf("%w: split entry %d percentage must be positive", ErrValidation, i)
				}
			case AllocFixed:
				if entry.Amount.LessThanOrEqual(decimal.Zero) {
					return fmt.Errorf("%w: split entry %d amount must be positive", ErrValidation, i)
				}
			default:
				return fmt.Errorf("%w: split entry %d has unknown allocation type %q",
					ErrValidation, i, entry.AllocationType)
			}
		}
	}

	if r.Type == RulePercentage && totalPct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: percentages sum to %s, must not exceed 100",
			ErrValidation, totalPct.String())
	}
	return nil
}
