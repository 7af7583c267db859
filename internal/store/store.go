package store

import (
	"context"
	"errors"
	"time"

	"multisig-wallet-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrVersionConflict = errors.New("concurrent modification detected")
)

// WalletStore defines the persistence contract that every backend (SQLite,
// in-memory, ...) must satisfy. Save methods are compare-and-swap: the write
// is rejected with ErrVersionConflict when the stored version no longer
// matches the version the caller read, which is what makes the approval state
// machine's check-then-act sequences atomic without a lock manager.
type WalletStore interface {
	// --- Wallets ---
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWallet(ctx context.Context, walletId string) (*models.Wallet, error)
	SaveWallet(ctx context.Context, wallet *models.Wallet) error
	ListWallets(ctx context.Context) ([]models.Wallet, error)

	// --- Transactions ---
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, txId string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	ListProposed(ctx context.Context, walletId string) ([]models.Transaction, error)
	ListExecutedDeposits(ctx context.Context, since time.Time) ([]models.Transaction, error)

	// --- Split rules ---
	CreateRule(ctx context.Context, rule *models.SplitRule) error
	GetRule(ctx context.Context, ruleId string) (*models.SplitRule, error)
	SaveRule(ctx context.Context, rule *models.SplitRule) error
	// ListActiveRules returns the wallet's active rules ordered by ascending
	// priority, the order EvaluateWallet consumes them in.
	ListActiveRules(ctx context.Context, walletId string) ([]models.SplitRule, error)

	// --- Lifecycle ---
	Close()
}

// maxSaveAttempts bounds the CAS retry loop in RetryConflict.
const maxSaveAttempts = 5

// RetryConflict runs op, retrying while it fails with ErrVersionConflict.
// op must re-read the record it mutates on every attempt so each retry starts
// from fresh state.
func RetryConflict(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		err = op(ctx)
		if err == nil || !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return err
}
