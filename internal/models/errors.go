package models

import "errors"

// Sentinel errors for domain-level failures. Callers wrap these with
// fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrPermission        = errors.New("permission denied")
	ErrInvariant         = errors.New("invariant violation")
	ErrStateConflict     = errors.New("illegal state transition")
	ErrConflict          = errors.New("conflicting operation")
	ErrExpired           = errors.New("transaction expired")
	ErrSignatureInvalid  = errors.New("signature verification failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
