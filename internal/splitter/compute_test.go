package splitter

import (
	"errors"
	"testing"
	"time"

	"multisig-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

var testDefaults = models.SplitterConfig{
	DecimalPlaces:   2,
	RemainderAction: models.RemainderKeepInWallet,
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func places(n int32) *int32 {
	return &n
}

func assertAllocation(t *testing.T, got Allocation, destination, amount string) {
	t.Helper()
	if got.Destination != destination {
		t.Errorf("Expected destination %s, got %s", destination, got.Destination)
	}
	if !got.Amount.Equal(dec(amount)) {
		t.Errorf("Expected %s for %s, got %s", amount, destination, got.Amount.String())
	}
}

func TestComputeSplits_Percentage(t *testing.T) {
	rule := &models.SplitRule{
		Type: models.RulePercentage,
		Splits: []models.SplitEntry{
			{Destination: "savings", Percentage: dec("60")},
			{Destination: "investments", Percentage: dec("30")},
		},
		Settings: models.AdvancedSettings{
			DecimalPlaces:   places(2),
			RemainderAction: models.RemainderKeepInWallet,
		},
	}

	result, err := ComputeSplits(rule, dec("100"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	if len(result.Allocations) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(result.Allocations))
	}
	assertAllocation(t, result.Allocations[0], "savings", "60")
	assertAllocation(t, result.Allocations[1], "investments", "30")
	if !result.Remainder.Equal(dec("10")) {
		t.Errorf("Expected remainder 10, got %s", result.Remainder.String())
	}
}

func TestComputeSplits_PercentageTruncates(t *testing.T) {
	rule := &models.SplitRule{
		Type: models.RulePercentage,
		Splits: []models.SplitEntry{
			{Destination: "a", Percentage: dec("33.33")},
			{Destination: "b", Percentage: dec("33.33")},
			{Destination: "c", Percentage: dec("33.34")},
		},
		Settings: models.AdvancedSettings{
			DecimalPlaces:   places(2),
			RemainderAction: models.RemainderKeepInWallet,
		},
	}

	result, err := ComputeSplits(rule, dec("0.10"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	// 0.10 * 33.33% = 0.03333 -> truncated to 0.03 per destination.
	total := result.Allocated()
	if total.GreaterThan(dec("0.10")) {
		t.Errorf("Allocations overcommitted the pool: %s", total.String())
	}
	if !result.Allocated().Add(result.Remainder).Equal(dec("0.10")) {
		t.Errorf("Allocated + remainder must equal the amount, got %s + %s",
			total.String(), result.Remainder.String())
	}
}

func TestComputeSplits_WholeUnitRounding(t *testing.T) {
	rule := &models.SplitRule{
		Type:   models.RulePercentage,
		Splits: []models.SplitEntry{{Destination: "savings", Percentage: dec("33")}},
		Settings: models.AdvancedSettings{
			DecimalPlaces:   places(0),
			RemainderAction: models.RemainderKeepInWallet,
		},
	}

	result, err := ComputeSplits(rule, dec("10"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	if len(result.Allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(result.Allocations))
	}
	// 33% of 10 = 3.3, truncated to whole units.
	assertAllocation(t, result.Allocations[0], "savings", "3")
	if !result.Remainder.Equal(dec("7")) {
		t.Errorf("Expected remainder 7, got %s", result.Remainder.String())
	}
}

func TestComputeSplits_UnsetDecimalPlacesUsesDefaults(t *testing.T) {
	rule := &models.SplitRule{
		Type:     models.RulePercentage,
		Splits:   []models.SplitEntry{{Destination: "savings", Percentage: dec("33")}},
		Settings: models.AdvancedSettings{RemainderAction: models.RemainderKeepInWallet},
	}

	result, err := ComputeSplits(rule, dec("10"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	if len(result.Allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(result.Allocations))
	}
	assertAllocation(t, result.Allocations[0], "savings", "3.3")
}

func TestComputeSplits_FixedInsufficientNoPartial(t *testing.T) {
	rule := &models.SplitRule{
		Type: models.RuleFixedAmount,
		Splits: []models.SplitEntry{
			{Destination: "a", Amount: dec("40")},
			{Destination: "b", Amount: dec("40")},
		},
		Settings: models.AdvancedSettings{
			RemainderAction:   models.RemainderKeepInWallet,
			AllowPartialSplit: false,
		},
	}

	result, err := ComputeSplits(rule, dec("50"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	// a gets its full 40, b cannot afford 40 and partial splits are off.
	if len(result.Allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(result.Allocations))
	}
	assertAllocation(t, result.Allocations[0], "a", "40")
	if !result.Remainder.Equal(dec("10")) {
		t.Errorf("Expected remainder 10, got %s", result.Remainder.String())
	}
}

func TestComputeSplits_FixedPartial(t *testing.T) {
	rule := &models.SplitRule{
		Type: models.RuleFixedAmount,
		Splits: []models.SplitEntry{
			{Destination: "a", Amount: dec("40")},
			{Destination: "b", Amount: dec("40")},
			{Destination: "c", Amount: dec("40")},
		},
		Settings: models.AdvancedSettings{
			RemainderAction:   models.RemainderKeepInWallet,
			AllowPartialSplit: true,
		},
	}

	result, err := ComputeSplits(rule, dec("50"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	// a gets 40, b absorbs the last 10 as a partial grant, c gets nothing.
	if len(result.Allocations) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(result.Allocations))
	}
	assertAllocation(t, result.Allocations[0], "a", "40")
	assertAllocation(t, result.Allocations[1], "b", "10")
	if !result.Remainder.IsZero() {
		t.Errorf("Expected zero remainder, got %s", result.Remainder.String())
	}
}

func TestComputeSplits_PriorityBased(t *testing.T) {
	rule := &models.SplitRule{
		Type: models.RulePriorityBased,
		Splits: []models.SplitEntry{
			// Listed out of order on purpose.
			{Destination: "bills", Amount: dec("20"), Priority: 2, AllocationType: models.AllocFixed},
			{Destination: "savings", Percentage: dec("50"), Priority: 1, AllocationType: models.AllocPercentage},
		},
		Settings: models.AdvancedSettings{
			DecimalPlaces:   places(2),
			RemainderAction: models.RemainderKeepInWallet,
		},
	}

	result, err := ComputeSplits(rule, dec("100"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	if len(result.Allocations) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(result.Allocations))
	}
	assertAllocation(t, result.Allocations[0], "savings", "50")
	assertAllocation(t, result.Allocations[1], "bills", "20")
	if !result.Remainder.Equal(dec("30")) {
		t.Errorf("Expected remainder 30, got %s", result.Remainder.String())
	}
}

func TestComputeSplits_MinPerDestination(t *testing.T) {
	rule := &models.SplitRule{
		Type: models.RulePercentage,
		Splits: []models.SplitEntry{
			{Destination: "big", Percentage: dec("50")},
			{Destination: "dust", Percentage: dec("1")},
		},
		Settings: models.AdvancedSettings{
			DecimalPlaces:     places(2),
			RemainderAction:   models.RemainderKeepInWallet,
			MinPerDestination: dec("5"),
		},
	}

	result, err := ComputeSplits(rule, dec("100"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	// The 1% share (1.00) falls below the 5 minimum and is dropped.
	if len(result.Allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(result.Allocations))
	}
	assertAllocation(t, result.Allocations[0], "big", "50")
	if !result.Remainder.Equal(dec("50")) {
		t.Errorf("Expected remainder 50, got %s", result.Remainder.String())
	}
}

func TestComputeSplits_RemainderPolicies(t *testing.T) {
	base := func(action models.RemainderAction) *models.SplitRule {
		return &models.SplitRule{
			Type: models.RulePercentage,
			Splits: []models.SplitEntry{
				{Destination: "a", Percentage: dec("40")},
				{Destination: "b", Percentage: dec("40")},
			},
			Settings: models.AdvancedSettings{
				DecimalPlaces:   places(2),
				RemainderAction: action,
			},
		}
	}

	result, err := ComputeSplits(base(models.RemainderAddToFirst), dec("100"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	assertAllocation(t, result.Allocations[0], "a", "60")
	assertAllocation(t, result.Allocations[1], "b", "40")
	if !result.Remainder.IsZero() {
		t.Errorf("add_to_first: expected zero remainder, got %s", result.Remainder.String())
	}

	result, err = ComputeSplits(base(models.RemainderAddToLast), dec("100"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	assertAllocation(t, result.Allocations[0], "a", "40")
	assertAllocation(t, result.Allocations[1], "b", "60")

	result, err = ComputeSplits(base(models.RemainderDistributeEvenly), dec("100"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	assertAllocation(t, result.Allocations[0], "a", "50")
	assertAllocation(t, result.Allocations[1], "b", "50")
	if !result.Remainder.IsZero() {
		t.Errorf("distribute_evenly: expected zero remainder, got %s", result.Remainder.String())
	}
}

func TestComputeSplits_DistributeEvenlyResidue(t *testing.T) {
	rule := &models.SplitRule{
		Type: models.RulePercentage,
		Splits: []models.SplitEntry{
			{Destination: "a", Percentage: dec("30")},
			{Destination: "b", Percentage: dec("30")},
			{Destination: "c", Percentage: dec("30")},
		},
		Settings: models.AdvancedSettings{
			DecimalPlaces:   places(2),
			RemainderAction: models.RemainderDistributeEvenly,
		},
	}

	result, err := ComputeSplits(rule, dec("100"), testDefaults)
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	// remainder 10 over 3 -> 3.33 each, residue 0.01 to the last destination.
	assertAllocation(t, result.Allocations[0], "a", "33.33")
	assertAllocation(t, result.Allocations[1], "b", "33.33")
	assertAllocation(t, result.Allocations[2], "c", "33.34")
	if !result.Allocated().Equal(dec("100")) {
		t.Errorf("Expected full amount distributed, got %s", result.Allocated().String())
	}
}

func TestComputeSplits_NonPositiveAmount(t *testing.T) {
	rule := validRuleForTest()
	if _, err := ComputeSplits(rule, decimal.Zero, testDefaults); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for zero amount, got %v", err)
	}
	if _, err := ComputeSplits(rule, dec("-5"), testDefaults); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for negative amount, got %v", err)
	}
}

func validRuleForTest() *models.SplitRule {
	return &models.SplitRule{
		Type:     models.RulePercentage,
		Splits:   []models.SplitEntry{{Destination: "a", Percentage: dec("50")}},
		Settings: models.AdvancedSettings{DecimalPlaces: places(2), RemainderAction: models.RemainderKeepInWallet},
	}
}

func TestShouldApply_AmountBounds(t *testing.T) {
	min := dec("10")
	max := dec("100")
	rule := &models.SplitRule{
		Conditions: models.RuleConditions{MinAmount: &min, MaxAmount: &max},
	}

	if ShouldApply(rule, Context{Amount: dec("5")}) {
		t.Errorf("Expected amount below min to not apply")
	}
	if !ShouldApply(rule, Context{Amount: dec("10")}) {
		t.Errorf("Expected amount at min to apply")
	}
	if !ShouldApply(rule, Context{Amount: dec("100")}) {
		t.Errorf("Expected amount at max to apply")
	}
	if ShouldApply(rule, Context{Amount: dec("101")}) {
		t.Errorf("Expected amount above max to not apply")
	}
}

func TestShouldApply_Kinds(t *testing.T) {
	rule := &models.SplitRule{
		Conditions: models.RuleConditions{Kinds: []models.TransactionKind{models.KindDeposit}},
	}
	if !ShouldApply(rule, Context{Amount: dec("1"), Kind: models.KindDeposit}) {
		t.Errorf("Expected matching kind to apply")
	}
	if ShouldApply(rule, Context{Amount: dec("1"), Kind: models.KindPayment}) {
		t.Errorf("Expected mismatched kind to not apply")
	}

	// Empty kind list is a wildcard.
	wildcard := &models.SplitRule{}
	if !ShouldApply(wildcard, Context{Amount: dec("1"), Kind: models.KindPayment}) {
		t.Errorf("Expected empty kind list to match any kind")
	}
}

func TestShouldApply_TimeWindow(t *testing.T) {
	rule := &models.SplitRule{
		Conditions: models.RuleConditions{StartTime: "09:00", EndTime: "17:00"},
	}

	morning := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	if !ShouldApply(rule, Context{Amount: dec("1"), Timestamp: morning}) {
		t.Errorf("Expected 10:30 to fall inside 09:00-17:00")
	}

	night := time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
	if ShouldApply(rule, Context{Amount: dec("1"), Timestamp: night}) {
		t.Errorf("Expected 22:00 to fall outside 09:00-17:00")
	}

	// Window wrapping midnight.
	wrapped := &models.SplitRule{
		Conditions: models.RuleConditions{StartTime: "22:00", EndTime: "06:00"},
	}
	if !ShouldApply(wrapped, Context{Amount: dec("1"), Timestamp: night}) {
		t.Errorf("Expected 22:00 to fall inside 22:00-06:00")
	}
	if ShouldApply(wrapped, Context{Amount: dec("1"), Timestamp: morning}) {
		t.Errorf("Expected 10:30 to fall outside 22:00-06:00")
	}

	// Malformed bounds fail closed.
	broken := &models.SplitRule{
		Conditions: models.RuleConditions{StartTime: "9am", EndTime: "17:00"},
	}
	if ShouldApply(broken, Context{Amount: dec("1"), Timestamp: morning}) {
		t.Errorf("Expected malformed time bounds to fail closed")
	}
}

func TestShouldApply_Days(t *testing.T) {
	rule := &models.SplitRule{
		Conditions: models.RuleConditions{Days: []time.Weekday{time.Monday, time.Friday}},
	}

	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if !ShouldApply(rule, Context{Amount: dec("1"), Timestamp: monday}) {
		t.Errorf("Expected Monday to apply")
	}
	tuesday := monday.AddDate(0, 0, 1)
	if ShouldApply(rule, Context{Amount: dec("1"), Timestamp: tuesday}) {
		t.Errorf("Expected Tuesday to not apply")
	}
}

func TestShouldApply_BalanceBounds(t *testing.T) {
	minBal := dec("1000")
	rule := &models.SplitRule{
		Conditions: models.RuleConditions{MinBalance: &minBal},
	}
	if ShouldApply(rule, Context{Amount: dec("1"), WalletBalance: dec("500")}) {
		t.Errorf("Expected balance below min to not apply")
	}
	if !ShouldApply(rule, Context{Amount: dec("1"), WalletBalance: dec("1500")}) {
		t.Errorf("Expected balance above min to apply")
	}
}
