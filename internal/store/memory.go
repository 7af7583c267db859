package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"multisig-wallet-go/internal/models"
)

// Compile-time check: *MemoryStore must satisfy WalletStore.
var _ WalletStore = (*MemoryStore)(nil)

// MemoryStore is an in-process WalletStore with the same compare-and-swap
// semantics as the SQLite backend. Records are deep-copied on the way in and
// out, so callers can never mutate stored state except through Save.
type MemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]*models.Wallet
	transactions map[string]*models.Transaction
	rules        map[string]*models.SplitRule
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:      make(map[string]*models.Wallet),
		transactions: make(map[string]*models.Transaction),
		rules:        make(map[string]*models.SplitRule),
	}
}

func cloneWallet(w *models.Wallet) *models.Wallet {
	out := *w
	out.Participants = append([]models.Participant(nil), w.Participants...)
	return &out
}

func cloneTransaction(t *models.Transaction) *models.Transaction {
	out := *t
	out.Signatures = append(models.SignatureSet(nil), t.Signatures...)
	out.AuditTrail = append([]models.AuditEntry(nil), t.AuditTrail...)
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		out.ApprovedAt = &at
	}
	if t.TerminalAt != nil {
		at := *t.TerminalAt
		out.TerminalAt = &at
	}
	return &out
}

func cloneRule(r *models.SplitRule) *models.SplitRule {
	out := *r
	out.Splits = append([]models.SplitEntry(nil), r.Splits...)
	out.History = make([]models.RuleExecution, len(r.History))
	for i, exec := range r.History {
		execCopy := exec
		execCopy.Outcomes = append([]models.DestinationOutcome(nil), exec.Outcomes...)
		out.History[i] = execCopy
	}
	return &out
}

func (m *MemoryStore) CreateWallet(_ context.Context, wallet *models.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[wallet.Id]; ok {
		return fmt.Errorf("%w: wallet %s", ErrDuplicate, wallet.Id)
	}
	wallet.Version = 1
	m.wallets[wallet.Id] = cloneWallet(wallet)
	return nil
}

func (m *MemoryStore) GetWallet(_ context.Context, walletId string) (*models.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wallet, ok := m.wallets[walletId]
	if !ok {
		return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, walletId)
	}
	return cloneWallet(wallet), nil
}

func (m *MemoryStore) SaveWallet(_ context.Context, wallet *models.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.wallets[wallet.Id]
	if !ok {
		return fmt.Errorf("%w: wallet %s", ErrNotFound, wallet.Id)
	}
	if stored.Version != wallet.Version {
		return fmt.Errorf("%w: wallet %s version %d != stored %d",
			ErrVersionConflict, wallet.Id, wallet.Version, stored.Version)
	}
	wallet.Version++
	wallet.UpdatedAt = time.Now().UTC()
	m.wallets[wallet.Id] = cloneWallet(wallet)
	return nil
}

func (m *MemoryStore) ListWallets(_ context.Context) ([]models.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wallets := make([]models.Wallet, 0, len(m.wallets))
	for _, w := range m.wallets {
		wallets = append(wallets, *cloneWallet(w))
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Id < wallets[j].Id })
	return wallets, nil
}

func (m *MemoryStore) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.Id]; ok {
		return fmt.Errorf("%w: transaction %s", ErrDuplicate, tx.Id)
	}
	tx.Version = 1
	m.transactions[tx.Id] = cloneTransaction(tx)
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, txId string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[txId]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, txId)
	}
	return cloneTransaction(tx), nil
}

func (m *MemoryStore) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.transactions[tx.Id]
	if !ok {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, tx.Id)
	}
	if stored.Version != tx.Version {
		return fmt.Errorf("%w: transaction %s version %d != stored %d",
			ErrVersionConflict, tx.Id, tx.Version, stored.Version)
	}
	tx.Version++
	m.transactions[tx.Id] = cloneTransaction(tx)
	return nil
}

func (m *MemoryStore) ListProposed(_ context.Context, walletId string) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Transaction
	for _, tx := range m.transactions {
		if tx.WalletId == walletId && tx.Status == models.StatusProposed {
			out = append(out, *cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProposedAt.Before(out[j].ProposedAt) })
	return out, nil
}

func (m *MemoryStore) ListExecutedDeposits(_ context.Context, since time.Time) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Transaction
	for _, tx := range m.transactions {
		if tx.Kind != models.KindDeposit || tx.Status != models.StatusExecuted {
			continue
		}
		if tx.TerminalAt == nil || tx.TerminalAt.Before(since) {
			continue
		}
		out = append(out, *cloneTransaction(tx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TerminalAt.Before(*out[j].TerminalAt) })
	return out, nil
}

func (m *MemoryStore) CreateRule(_ context.Context, rule *models.SplitRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.Id]; ok {
		return fmt.Errorf("%w: rule %s", ErrDuplicate, rule.Id)
	}
	rule.Version = 1
	m.rules[rule.Id] = cloneRule(rule)
	return nil
}

func (m *MemoryStore) GetRule(_ context.Context, ruleId string) (*models.SplitRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rule, ok := m.rules[ruleId]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s", ErrNotFound, ruleId)
	}
	return cloneRule(rule), nil
}

func (m *MemoryStore) SaveRule(_ context.Context, rule *models.SplitRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rules[rule.Id]
	if !ok {
		return fmt.Errorf("%w: rule %s", ErrNotFound, rule.Id)
	}
	if stored.Version != rule.Version {
		return fmt.Errorf("%w: rule %s version %d != stored %d",
			ErrVersionConflict, rule.Id, rule.Version, stored.Version)
	}
	rule.Version++
	rule.UpdatedAt = time.Now().UTC()
	m.rules[rule.Id] = cloneRule(rule)
	return nil
}

func (m *MemoryStore) ListActiveRules(_ context.Context, walletId string) ([]models.SplitRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SplitRule
	for _, rule := range m.rules {
		if rule.WalletId == walletId && rule.Status == models.RuleActive {
			out = append(out, *cloneRule(rule))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Close() {}
