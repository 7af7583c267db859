package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func (s *Service) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	signatures, auditTrail, err := encodeTransactionBlobs(tx)
	if err != nil {
		return err
	}

	tx.Version = 1
	_, err = s.db.ExecContext(ctx, queryInsertTransaction,
		tx.Id, tx.WalletId, string(tx.Kind), tx.Amount.String(), tx.Currency,
		string(tx.Status), signatures, tx.RequiredSignatures, tx.Destination,
		tx.Reference, tx.SourceRuleId, tx.ProposedBy, tx.ProposedAt, tx.ExpiresAt,
		nullableTime(tx.ApprovedAt), nullableTime(tx.TerminalAt),
		tx.ExternalRef, tx.FailureMsg, auditTrail, tx.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s", store.ErrDuplicate, tx.Id)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, txId string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, queryGetTransaction, txId)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, txId)
	}
	return tx, err
}

// SaveTransaction commits the mutable fields with optimistic locking. Zero
// rows affected on a live row means the version moved: the caller's
// check-then-act sequence lost the race and must re-run on fresh state.
func (s *Service) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	signatures, auditTrail, err := encodeTransactionBlobs(tx)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, queryUpdateTransaction,
		string(tx.Status), signatures, nullableTime(tx.ApprovedAt),
		nullableTime(tx.TerminalAt), tx.ExternalRef, tx.FailureMsg, auditTrail,
		tx.Id, tx.Version)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, getErr := s.GetTransaction(ctx, tx.Id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("transaction update failed - %w", store.ErrVersionConflict)
	}
	tx.Version++
	return nil
}

func (s *Service) ListProposed(ctx context.Context, walletId string) ([]models.Transaction, error) {
	return s.listTransactions(ctx, queryListProposed, walletId)
}

func (s *Service) ListExecutedDeposits(ctx context.Context, since time.Time) ([]models.Transaction, error) {
	return s.listTransactions(ctx, queryListExecutedDeposits, since)
}

func (s *Service) listTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

func encodeTransactionBlobs(tx *models.Transaction) (signatures, auditTrail string, err error) {
	sigBytes, err := json.Marshal(tx.Signatures)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode signatures: %w", err)
	}
	auditBytes, err := json.Marshal(tx.AuditTrail)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode audit trail: %w", err)
	}
	return string(sigBytes), string(auditBytes), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var kind, status, amountStr, signaturesJSON, auditJSON string
	var destination, reference, sourceRuleId, externalRef, failureMsg sql.NullString
	var approvedAt, terminalAt sql.NullTime

	err := row.Scan(&tx.Id, &tx.WalletId, &kind, &amountStr, &tx.Currency, &status,
		&signaturesJSON, &tx.RequiredSignatures, &destination, &reference,
		&sourceRuleId, &tx.ProposedBy, &tx.ProposedAt, &tx.ExpiresAt,
		&approvedAt, &terminalAt, &externalRef, &failureMsg, &auditJSON, &tx.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Kind = models.TransactionKind(kind)
	tx.Status = models.TransactionStatus(status)
	tx.Destination = destination.String
	tx.Reference = reference.String
	tx.SourceRuleId = sourceRuleId.String
	tx.ExternalRef = externalRef.String
	tx.FailureMsg = failureMsg.String

	tx.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	if err := json.Unmarshal([]byte(signaturesJSON), &tx.Signatures); err != nil {
		return nil, fmt.Errorf("failed to decode signatures: %w", err)
	}
	if err := json.Unmarshal([]byte(auditJSON), &tx.AuditTrail); err != nil {
		return nil, fmt.Errorf("failed to decode audit trail: %w", err)
	}
	if approvedAt.Valid {
		at := approvedAt.Time
		tx.ApprovedAt = &at
	}
	if terminalAt.Valid {
		at := terminalAt.Time
		tx.TerminalAt = &at
	}
	return &tx, nil
}
