package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

// isUniqueViolation reports whether err is a SQLite primary-key/unique error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	participants, err := json.Marshal(wallet.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	wallet.Version = 1
	_, err = s.db.ExecContext(ctx, queryInsertWallet,
		wallet.Id, wallet.Name, wallet.Threshold, string(participants),
		string(wallet.Status), wallet.Balance.String(), wallet.Currency,
		wallet.CreatorId, wallet.Version, wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: wallet %s", store.ErrDuplicate, wallet.Id)
		}
		return fmt.Errorf("failed to insert wallet: %w", err)
	}
	return nil
}

func (s *Service) GetWallet(ctx context.Context, walletId string) (*models.Wallet, error) {
	row := s.db.QueryRowContext(ctx, queryGetWallet, walletId)
	wallet, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet %s", store.ErrNotFound, walletId)
	}
	return wallet, err
}

func (s *Service) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	participants, err := json.Marshal(wallet.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	result, err := s.db.ExecContext(ctx, queryUpdateWallet,
		wallet.Name, wallet.Threshold, string(participants), string(wallet.Status),
		wallet.Balance.String(), wallet.Currency, wallet.Id, wallet.Version)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// either the row is gone or the version moved under us
		if _, getErr := s.GetWallet(ctx, wallet.Id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("wallet update failed - %w", store.ErrVersionConflict)
	}
	wallet.Version++
	return nil
}

func (s *Service) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, queryListWallets)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, *wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var wallet models.Wallet
	var participantsJSON, balanceStr, status string

	err := row.Scan(&wallet.Id, &wallet.Name, &wallet.Threshold, &participantsJSON,
		&status, &balanceStr, &wallet.Currency, &wallet.CreatorId, &wallet.Version,
		&wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	wallet.Status = models.WalletStatus(status)
	if err := json.Unmarshal([]byte(participantsJSON), &wallet.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}
	wallet.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
	}
	return &wallet, nil
}
