package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/store"
)

func (s *Service) CreateRule(ctx context.Context, rule *models.SplitRule) error {
	conditions, splits, settings, history, err := encodeRuleBlobs(rule)
	if err != nil {
		return err
	}

	rule.Version = 1
	_, err = s.db.ExecContext(ctx, queryInsertRule,
		rule.Id, rule.WalletId, rule.Name, string(rule.Type), string(rule.Status),
		rule.Priority, conditions, splits, settings, history, rule.Version,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: rule %s", store.ErrDuplicate, rule.Id)
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

func (s *Service) GetRule(ctx context.Context, ruleId string) (*models.SplitRule, error) {
	row := s.db.QueryRowContext(ctx, queryGetRule, ruleId)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %s", store.ErrNotFound, ruleId)
	}
	return rule, err
}

func (s *Service) SaveRule(ctx context.Context, rule *models.SplitRule) error {
	conditions, splits, settings, history, err := encodeRuleBlobs(rule)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, queryUpdateRule,
		rule.Name, string(rule.Type), string(rule.Status), rule.Priority,
		conditions, splits, settings, history, rule.Id, rule.Version)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, getErr := s.GetRule(ctx, rule.Id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("rule update failed - %w", store.ErrVersionConflict)
	}
	rule.Version++
	return nil
}

func (s *Service) ListActiveRules(ctx context.Context, walletId string) ([]models.SplitRule, error) {
	rows, err := s.db.QueryContext(ctx, queryListActiveRules, walletId)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer closeRows(rows)

	var rules []models.SplitRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule rows: %w", err)
	}
	return rules, nil
}

func encodeRuleBlobs(rule *models.SplitRule) (conditions, splits, settings, history string, err error) {
	condBytes, err := json.Marshal(rule.Conditions)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	splitBytes, err := json.Marshal(rule.Splits)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode splits: %w", err)
	}
	settingsBytes, err := json.Marshal(rule.Settings)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode settings: %w", err)
	}
	historyBytes, err := json.Marshal(rule.History)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode history: %w", err)
	}
	return string(condBytes), string(splitBytes), string(settingsBytes), string(historyBytes), nil
}

func scanRule(row rowScanner) (*models.SplitRule, error) {
	var rule models.SplitRule
	var ruleType, status, conditionsJSON, splitsJSON, settingsJSON, historyJSON string

	err := row.Scan(&rule.Id, &rule.WalletId, &rule.Name, &ruleType, &status,
		&rule.Priority, &conditionsJSON, &splitsJSON, &settingsJSON, &historyJSON,
		&rule.Version, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Type = models.RuleType(ruleType)
	rule.Status = models.RuleStatus(status)
	if err := json.Unmarshal([]byte(conditionsJSON), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(splitsJSON), &rule.Splits); err != nil {
		return nil, fmt.Errorf("failed to decode splits: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &rule.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &rule.History); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return &rule, nil
}
