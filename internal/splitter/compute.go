package splitter

import (
	"fmt"
	"sort"
	"time"

	"multisig-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// Context is the evaluation input for a rule predicate.
type Context struct {
	Amount        decimal.Decimal
	Kind          models.TransactionKind
	WalletBalance decimal.Decimal
	Timestamp     time.Time
}

// Allocation is one computed (destination, amount) pair.
type Allocation struct {
	Destination string
	Amount      decimal.Decimal
}

// SplitResult is the deterministic outcome of applying one rule to an amount.
type SplitResult struct {
	Allocations []Allocation
	// Remainder is the unallocated amount after entries and the remainder
	// policy were applied. Always >= 0: allocations are computed with
	// truncating rounding so the pool can never be overcommitted.
	Remainder decimal.Decimal
}

// Allocated returns the total amount assigned to destinations.
func (r SplitResult) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// ShouldApply is a pure, deterministic predicate deciding whether a rule
// applies in the given context. No side effects.
func ShouldApply(rule *models.SplitRule, evalCtx Context) bool {
	cond := rule.Conditions

	if cond.MinAmount != nil && evalCtx.Amount.LessThan(*cond.MinAmount) {
		return false
	}
	if cond.MaxAmount != nil && evalCtx.Amount.GreaterThan(*cond.MaxAmount) {
		return false
	}

	if len(cond.Kinds) > 0 {
		matched := false
		for _, kind := range cond.Kinds {
			if kind == evalCtx.Kind {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(cond.Days) > 0 {
		matched := false
		for _, day := range cond.Days {
			if day == evalCtx.Timestamp.Weekday() {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if cond.StartTime != "" && cond.EndTime != "" {
		if !withinTimeWindow(cond.StartTime, cond.EndTime, evalCtx.Timestamp) {
			return false
		}
	}

	if cond.MinBalance != nil && evalCtx.WalletBalance.LessThan(*cond.MinBalance) {
		return false
	}
	if cond.MaxBalance != nil && evalCtx.WalletBalance.GreaterThan(*cond.MaxBalance) {
		return false
	}
	return true
}

// withinTimeWindow checks an inclusive "HH:MM".."HH:MM" window. A window with
// start after end wraps past midnight. Malformed bounds fail closed.
func withinTimeWindow(start, end string, ts time.Time) bool {
	startMin, err := parseClock(start)
	if err != nil {
		return false
	}
	endMin, err := parseClock(end)
	if err != nil {
		return false
	}
	nowMin := ts.Hour()*60 + ts.Minute()

	if startMin <= endMin {
		return nowMin >= startMin && nowMin <= endMin
	}
	return nowMin >= startMin || nowMin <= endMin
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ComputeSplits computes the ordered destination allocations for one rule
// against an amount. Pure and deterministic: same rule + amount always yields
// the same result. Defaults fill in settings the rule leaves unset.
func ComputeSplits(rule *models.SplitRule, amount decimal.Decimal, defaults models.SplitterConfig) (SplitResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return SplitResult{}, fmt.Errorf("%w: split amount must be positive, got %s",
			models.ErrValidation, amount.String())
	}

	settings := rule.Settings
	if settings.RemainderAction == "" {
		settings.RemainderAction = defaults.RemainderAction
	}
	if settings.RemainderAction == "" {
		settings.RemainderAction = models.RemainderKeepInWallet
	}
	places := defaults.DecimalPlaces
	if settings.DecimalPlaces != nil {
		places = *settings.DecimalPlaces
	}

	var allocations []Allocation
	switch rule.Type {
	case models.RulePercentage:
		allocations = computePercentage(rule.Splits, amount, places, settings.MinPerDestination)
	case models.RuleFixedAmount:
		allocations = computeFixed(rule.Splits, amount, settings)
	case models.RulePriorityBased:
		allocations = computePriority(rule.Splits, amount, places, settings)
	default:
		return SplitResult{}, fmt.Errorf("%w: unknown rule type %q", models.ErrValidation, rule.Type)
	}

	result := SplitResult{Allocations: allocations}
	result.Remainder = amount.Sub(result.Allocated())
	applyRemainderPolicy(&result, settings.RemainderAction, places)
	return result, nil
}

// computePercentage allocates round-down percentages of the amount. Entries
// whose share falls below the per-destination minimum are dropped, not
// zero-filled.
func computePercentage(entries []models.SplitEntry, amount decimal.Decimal, places int32, minPerDest decimal.Decimal) []Allocation {
	hundred := decimal.NewFromInt(100)
	var out []Allocation
	for _, entry := range entries {
		share := amount.Mul(entry.Percentage).Div(hundred).RoundDown(places)
		if share.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if minPerDest.IsPositive() && share.LessThan(minPerDest) {
			continue
		}
		out = append(out, Allocation{Destination: entry.Destination, Amount: share})
	}
	return out
}

// computeFixed allocates each configured fixed amount in listed order while
// the remaining pool affords it. An unaffordable entry either receives the
// whole remainder (partial split allowed, then allocation stops) or is
// skipped entirely.
func computeFixed(entries []models.SplitEntry, amount decimal.Decimal, settings models.AdvancedSettings) []Allocation {
	remaining := amount
	var out []Allocation
	for _, entry := range entries {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		alloc, stop := affordableAllocation(entry.Amount, remaining, settings)
		if alloc.IsPositive() {
			out = append(out, Allocation{Destination: entry.Destination, Amount: alloc})
			remaining = remaining.Sub(alloc)
		}
		if stop {
			break
		}
	}
	return out
}

// computePriority sorts entries by ascending priority, computes each entry's
// claim as a percentage of the original amount or a fixed amount, and applies
// the same affordability rule as fixed_amount against the remaining pool.
func computePriority(entries []models.SplitEntry, amount decimal.Decimal, places int32, settings models.AdvancedSettings) []Allocation {
	ordered := make([]models.SplitEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	hundred := decimal.NewFromInt(100)
	remaining := amount
	var out []Allocation
	for _, entry := range ordered {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		var claim decimal.Decimal
		switch entry.AllocationType {
		case models.AllocPercentage:
			claim = amount.Mul(entry.Percentage).Div(hundred).RoundDown(places)
		case models.AllocFixed:
			claim = entry.Amount
		default:
			continue
		}
		if claim.LessThanOrEqual(decimal.Zero) {
			continue
		}

		alloc, stop := affordableAllocation(claim, remaining, settings)
		if alloc.IsPositive() {
			out = append(out, Allocation{Destination: entry.Destination, Amount: alloc})
			remaining = remaining.Sub(alloc)
		}
		if stop {
			break
		}
	}
	return out
}

// affordableAllocation resolves one claim against the remaining pool. Returns
// the granted amount and whether allocation must stop (a partial grant
// exhausts the pool).
func affordableAllocation(claim, remaining decimal.Decimal, settings models.AdvancedSettings) (decimal.Decimal, bool) {
	grant := decimal.Zero
	stop := false
	switch {
	case remaining.GreaterThanOrEqual(claim):
		grant = claim
	case settings.AllowPartialSplit && remaining.IsPositive():
		grant = remaining
		stop = true
	default:
		// insufficient and partial splits disallowed: skip this destination
		return decimal.Zero, false
	}
	if settings.MinPerDestination.IsPositive() && grant.LessThan(settings.MinPerDestination) {
		return decimal.Zero, stop
	}
	return grant, stop
}

// applyRemainderPolicy distributes the leftover amount according to the
// rule's remainder action. keep_in_wallet leaves it unallocated; the other
// policies move it onto already-applied destinations, always conserving the
// full remainder.
func applyRemainderPolicy(result *SplitResult, action models.RemainderAction, places int32) {
	if result.Remainder.LessThanOrEqual(decimal.Zero) || len(result.Allocations) == 0 {
		return
	}

	switch action {
	case models.RemainderAddToFirst:
		result.Allocations[0].Amount = result.Allocations[0].Amount.Add(result.Remainder)
		result.Remainder = decimal.Zero

	case models.RemainderAddToLast:
		last := len(result.Allocations) - 1
		result.Allocations[last].Amount = result.Allocations[last].Amount.Add(result.Remainder)
		result.Remainder = decimal.Zero

	case models.RemainderDistributeEvenly:
		n := decimal.NewFromInt(int64(len(result.Allocations)))
		share := result.Remainder.Div(n).RoundDown(places)
		distributed := decimal.Zero
		for i := range result.Allocations {
			result.Allocations[i].Amount = result.Allocations[i].Amount.Add(share)
			distributed = distributed.Add(share)
		}
		// truncation residue lands on the last destination so nothing is lost
		residue := result.Remainder.Sub(distributed)
		if residue.IsPositive() {
			last := len(result.Allocations) - 1
			result.Allocations[last].Amount = result.Allocations[last].Amount.Add(residue)
		}
		result.Remainder = decimal.Zero

	default: // keep_in_wallet
	}
}
