package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"multisig-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

func memWallet() *models.Wallet {
	return &models.Wallet{
		Id:        "w-1",
		Name:      "Household",
		Threshold: 1,
		Participants: []models.Participant{
			{UserId: "alice", Role: models.RoleAdmin, Status: models.MembershipActive},
		},
		Status:   models.WalletActive,
		Balance:  decimal.NewFromInt(100),
		Currency: "USDC",
	}
}

func TestMemoryStore_WalletLifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.CreateWallet(ctx, memWallet()); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if err := m.CreateWallet(ctx, memWallet()); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate on second create, got %v", err)
	}

	w, err := m.GetWallet(ctx, "w-1")
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if w.Version != 1 {
		t.Errorf("Expected version 1 after create, got %d", w.Version)
	}

	w.Name = "Renamed"
	if err := m.SaveWallet(ctx, w); err != nil {
		t.Fatalf("SaveWallet failed: %v", err)
	}
	if w.Version != 2 {
		t.Errorf("Expected version bump to 2, got %d", w.Version)
	}

	if _, err := m.GetWallet(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_StaleSave(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreateWallet(ctx, memWallet()); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	first, _ := m.GetWallet(ctx, "w-1")
	second, _ := m.GetWallet(ctx, "w-1")

	if err := m.SaveWallet(ctx, first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	// The second copy still carries the old version.
	if err := m.SaveWallet(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict on stale save, got %v", err)
	}
}

func TestMemoryStore_ClonesOnReturn(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreateWallet(ctx, memWallet()); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	w, _ := m.GetWallet(ctx, "w-1")
	w.Participants[0].UserId = "hacked"
	w.Name = "hacked"

	fresh, _ := m.GetWallet(ctx, "w-1")
	if fresh.Name != "Household" || fresh.Participants[0].UserId != "alice" {
		t.Errorf("Expected stored state untouched by caller mutation, got %+v", fresh)
	}
}

func TestMemoryStore_ListProposed(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	mk := func(id string, status models.TransactionStatus, offset time.Duration) *models.Transaction {
		return &models.Transaction{
			Id:         id,
			WalletId:   "w-1",
			Kind:       models.KindPayment,
			Amount:     decimal.NewFromInt(1),
			Status:     status,
			ProposedAt: base.Add(offset),
		}
	}
	if err := m.CreateTransaction(ctx, mk("tx-2", models.StatusProposed, time.Minute)); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if err := m.CreateTransaction(ctx, mk("tx-1", models.StatusProposed, 0)); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if err := m.CreateTransaction(ctx, mk("tx-3", models.StatusRejected, 0)); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	proposed, err := m.ListProposed(ctx, "w-1")
	if err != nil {
		t.Fatalf("ListProposed failed: %v", err)
	}
	if len(proposed) != 2 {
		t.Fatalf("Expected 2 proposed transactions, got %d", len(proposed))
	}
	// Oldest first.
	if proposed[0].Id != "tx-1" || proposed[1].Id != "tx-2" {
		t.Errorf("Expected proposal-time order, got %s, %s", proposed[0].Id, proposed[1].Id)
	}
}

func TestMemoryStore_ListExecutedDeposits(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	old := now.Add(-2 * time.Hour)
	recent := now.Add(-10 * time.Minute)

	mk := func(id string, kind models.TransactionKind, status models.TransactionStatus, terminal *time.Time) *models.Transaction {
		return &models.Transaction{
			Id:         id,
			WalletId:   "w-1",
			Kind:       kind,
			Amount:     decimal.NewFromInt(1),
			Status:     status,
			TerminalAt: terminal,
		}
	}
	if err := m.CreateTransaction(ctx, mk("old-deposit", models.KindDeposit, models.StatusExecuted, &old)); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if err := m.CreateTransaction(ctx, mk("new-deposit", models.KindDeposit, models.StatusExecuted, &recent)); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if err := m.CreateTransaction(ctx, mk("payment", models.KindPayment, models.StatusExecuted, &recent)); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	deposits, err := m.ListExecutedDeposits(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListExecutedDeposits failed: %v", err)
	}
	if len(deposits) != 1 || deposits[0].Id != "new-deposit" {
		t.Errorf("Expected only the recent deposit, got %+v", deposits)
	}
}

func TestMemoryStore_ListActiveRules(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	mk := func(id string, status models.RuleStatus, priority int) *models.SplitRule {
		return &models.SplitRule{
			Id:       id,
			WalletId: "w-1",
			Type:     models.RulePercentage,
			Status:   status,
			Priority: priority,
			Splits:   []models.SplitEntry{{Destination: "a", Percentage: decimal.NewFromInt(10)}},
		}
	}
	if err := m.CreateRule(ctx, mk("low", models.RuleActive, 5)); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if err := m.CreateRule(ctx, mk("high", models.RuleActive, 1)); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if err := m.CreateRule(ctx, mk("off", models.RuleInactive, 0)); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	rules, err := m.ListActiveRules(ctx, "w-1")
	if err != nil {
		t.Fatalf("ListActiveRules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 active rules, got %d", len(rules))
	}
	if rules[0].Id != "high" || rules[1].Id != "low" {
		t.Errorf("Expected priority order high, low; got %s, %s", rules[0].Id, rules[1].Id)
	}
}

func TestRetryConflict(t *testing.T) {
	ctx := context.Background()

	// Succeeds after transient version conflicts.
	attempts := 0
	err := RetryConflict(ctx, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	// Non-conflict errors pass straight through.
	attempts = 0
	sentinel := errors.New("boom")
	err = RetryConflict(ctx, func(context.Context) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected the original error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-conflict error, got %d", attempts)
	}

	// Persistent conflicts surface once retries are exhausted.
	err = RetryConflict(ctx, func(context.Context) error {
		return ErrVersionConflict
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict after exhausted retries, got %v", err)
	}
}
