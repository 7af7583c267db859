package gateway

import (
	"context"

	"multisig-wallet-go/internal/models"

	"go.uber.org/zap"
)

// Result is the ledger network's answer to a broadcast attempt.
type Result struct {
	Ref     string // external transaction reference on success
	Success bool
	Err     string // underlying error message on failure
}

// ExecutionGateway signs and broadcasts an approved transaction on the ledger
// network and reports the outcome. The core consumes this capability; it
// never implements broadcasting, and it never calls Execute while holding a
// record lock. Retry and backoff are the gateway's own concern.
type ExecutionGateway interface {
	Execute(ctx context.Context, tx *models.Transaction) Result
}

// Verifier checks a signature blob against a participant's public key and the
// transaction's canonical signing message. The core treats a false result as
// a hard rejection, never a silent no-op.
type Verifier interface {
	Verify(publicKey, message, signature []byte) bool
}

// Notifier delivers fire-and-forget wallet event notifications. A failed
// notification must never roll back or block the transition that caused it;
// callers log the error and move on.
type Notifier interface {
	Notify(ctx context.Context, walletId, event string, payload map[string]string) error
}

// LogNotifier writes notifications to the process log. It is the default
// Notifier for the CLIs and the watcher.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, walletId, event string, payload map[string]string) error {
	fields := []zap.Field{
		zap.String("wallet_id", walletId),
		zap.String("event", event),
	}
	for k, v := range payload {
		fields = append(fields, zap.String(k, v))
	}
	zap.L().Info("Wallet notification", fields...)
	return nil
}

// SendNotification dispatches through the notifier and swallows the error,
// logging it. Core transitions call this so notification failures can never
// surface as failures of the originating operation.
func SendNotification(ctx context.Context, n Notifier, walletId, event string, payload map[string]string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, walletId, event, payload); err != nil {
		zap.L().Warn("Notification delivery failed",
			zap.String("wallet_id", walletId),
			zap.String("event", event),
			zap.Error(err))
	}
}
