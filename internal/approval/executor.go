package approval

import (
	"context"
	"fmt"

	"multisig-wallet-go/internal/gateway"
	"multisig-wallet-go/internal/models"

	"go.uber.org/zap"
)

// Executor drives an approved transaction through the execution gateway:
// reserve synchronously (BeginExecution), broadcast with no lock held, then
// close the loop (CompleteExecution). Gateway failures are recorded on the
// transaction as a terminal Failed state, never retried here.
type Executor struct {
	approvals *Service
	gateway   gateway.ExecutionGateway
}

// NewExecutor wires an executor over the approval service and a gateway.
func NewExecutor(approvals *Service, gw gateway.ExecutionGateway) *Executor {
	return &Executor{approvals: approvals, gateway: gw}
}

// Run executes one approved transaction end to end and returns its final
// state. The transaction must be Approved and the actor a wallet participant.
func (e *Executor) Run(ctx context.Context, txId, actorId string) (*models.Transaction, error) {
	tx, err := e.approvals.BeginExecution(ctx, txId, actorId)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve transaction for execution: %w", err)
	}

	// The broadcast happens here, outside any record lock or CAS window.
	result := e.gateway.Execute(ctx, tx)

	final, err := e.approvals.CompleteExecution(ctx, txId, result)
	if err != nil {
		return nil, fmt.Errorf("failed to record execution result: %w", err)
	}

	if result.Success {
		zap.L().Info("Transaction executed",
			zap.String("transaction_id", final.Id),
			zap.String("external_ref", final.ExternalRef))
	} else {
		zap.L().Warn("Transaction execution failed",
			zap.String("transaction_id", final.Id),
			zap.String("error", final.FailureMsg))
	}
	return final, nil
}
