package wallet

import (
	"context"
	"fmt"
	"time"

	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Registry owns participant membership, roles, and the signature threshold
// invariant. Every mutation is load -> validate -> compare-and-swap save, so
// a mutation that would break an invariant is never observable, and two
// concurrent mutations of the same wallet cannot both commit against the same
// version.
type Registry struct {
	store store.WalletStore
}

// NewRegistry creates a wallet registry over the given store.
func NewRegistry(walletStore store.WalletStore) *Registry {
	return &Registry{store: walletStore}
}

// CreateWallet creates an active wallet with the creator as its first active
// admin participant. Threshold defaults to 1 when zero.
func (r *Registry) CreateWallet(ctx context.Context, name, currency string, creator models.Participant, threshold int) (*models.Wallet, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: wallet name is required", models.ErrValidation)
	}
	if creator.UserId == "" {
		return nil, fmt.Errorf("%w: creator user id is required", models.ErrValidation)
	}
	if threshold == 0 {
		threshold = 1
	}

	now := time.Now().UTC()
	creator.Role = models.RoleAdmin
	creator.Status = models.MembershipActive
	creator.JoinedAt = now

	wallet := &models.Wallet{
		Id:           uuid.New().String(),
		Name:         name,
		Threshold:    threshold,
		Participants: []models.Participant{creator},
		Status:       models.WalletActive,
		Balance:      decimal.Zero,
		Currency:     currency,
		CreatorId:    creator.UserId,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := wallet.CheckInvariants(); err != nil {
		return nil, err
	}
	if err := r.store.CreateWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	zap.L().Info("Wallet created",
		zap.String("wallet_id", wallet.Id),
		zap.String("name", wallet.Name),
		zap.Int("threshold", wallet.Threshold),
		zap.String("creator", creator.UserId))
	return wallet, nil
}

// Get loads a wallet by id.
func (r *Registry) Get(ctx context.Context, walletId string) (*models.Wallet, error) {
	return r.store.GetWallet(ctx, walletId)
}

// AddParticipant adds a new participant as an invited member. Only admins may
// add participants; adding an existing participant is a conflict.
func (r *Registry) AddParticipant(ctx context.Context, walletId string, participant models.Participant, actorId string) (*models.Wallet, error) {
	if participant.UserId == "" {
		return nil, fmt.Errorf("%w: participant user id is required", models.ErrValidation)
	}

	return r.mutate(ctx, walletId, func(w *models.Wallet) error {
		if !w.HasPermission(actorId, models.CapManageParticipants) {
			return fmt.Errorf("%w: %s cannot manage participants of wallet %s",
				models.ErrPermission, actorId, walletId)
		}
		if w.FindParticipant(participant.UserId) != nil {
			return fmt.Errorf("%w: participant %s already present",
				models.ErrConflict, participant.UserId)
		}
		if participant.Role == "" {
			participant.Role = models.RoleMember
		}
		participant.Status = models.MembershipInvited
		participant.JoinedAt = time.Now().UTC()
		w.Participants = append(w.Participants, participant)
		return nil
	})
}

// ActivateParticipant flips an invited participant to active membership.
func (r *Registry) ActivateParticipant(ctx context.Context, walletId, participantId string) (*models.Wallet, error) {
	return r.mutate(ctx, walletId, func(w *models.Wallet) error {
		p := w.FindParticipant(participantId)
		if p == nil {
			return fmt.Errorf("%w: participant %s", store.ErrNotFound, participantId)
		}
		if p.Status == models.MembershipActive {
			return fmt.Errorf("%w: participant %s is already active",
				models.ErrConflict, participantId)
		}
		p.Status = models.MembershipActive
		return nil
	})
}

// RemoveParticipant removes a participant. It refuses to drop the participant
// count below the current threshold, to remove the wallet creator, or to
// remove the sole remaining admin.
func (r *Registry) RemoveParticipant(ctx context.Context, walletId, participantId, actorId string) (*models.Wallet, error) {
	return r.mutate(ctx, walletId, func(w *models.Wallet) error {
		if !w.HasPermission(actorId, models.CapManageParticipants) {
			return fmt.Errorf("%w: %s cannot manage participants of wallet %s",
				models.ErrPermission, actorId, walletId)
		}
		target := w.FindParticipant(participantId)
		if target == nil {
			return fmt.Errorf("%w: participant %s", store.ErrNotFound, participantId)
		}
		if participantId == w.CreatorId {
			return fmt.Errorf("%w: wallet creator cannot be removed", models.ErrInvariant)
		}
		if target.Role == models.RoleAdmin && target.Status == models.MembershipActive && w.AdminCount() == 1 {
			return fmt.Errorf("%w: cannot remove the last admin", models.ErrInvariant)
		}
		if len(w.Participants)-1 < w.Threshold {
			return fmt.Errorf("%w: removal would leave %d participants below threshold %d",
				models.ErrInvariant, len(w.Participants)-1, w.Threshold)
		}

		kept := w.Participants[:0]
		for _, p := range w.Participants {
			if p.UserId != participantId {
				kept = append(kept, p)
			}
		}
		w.Participants = kept
		return nil
	})
}

// UpdateThreshold changes the wallet threshold within 1..participant count.
// In-flight proposals keep the threshold snapshotted at proposal time.
func (r *Registry) UpdateThreshold(ctx context.Context, walletId string, newThreshold int, actorId string) (*models.Wallet, error) {
	return r.mutate(ctx, walletId, func(w *models.Wallet) error {
		if !w.HasPermission(actorId, models.CapManageParticipants) {
			return fmt.Errorf("%w: %s cannot change threshold of wallet %s",
				models.ErrPermission, actorId, walletId)
		}
		if newThreshold < 1 || newThreshold > len(w.Participants) {
			return fmt.Errorf("%w: threshold %d outside 1..%d",
				models.ErrInvariant, newThreshold, len(w.Participants))
		}
		w.Threshold = newThreshold
		return nil
	})
}

// SetStatus suspends, freezes, or reactivates a wallet. Admin only.
func (r *Registry) SetStatus(ctx context.Context, walletId string, status models.WalletStatus, actorId string) (*models.Wallet, error) {
	switch status {
	case models.WalletActive, models.WalletSuspended, models.WalletFrozen:
	default:
		return nil, fmt.Errorf("%w: unknown wallet status %q", models.ErrValidation, status)
	}
	return r.mutate(ctx, walletId, func(w *models.Wallet) error {
		if !w.IsAdmin(actorId) {
			return fmt.Errorf("%w: %s cannot change status of wallet %s",
				models.ErrPermission, actorId, walletId)
		}
		w.Status = status
		return nil
	})
}

// CreditBalance adjusts the cached balance by delta (negative to debit).
// The cache backs affordability checks on proposals; the ledger network
// remains the source of truth.
func (r *Registry) CreditBalance(ctx context.Context, walletId string, delta decimal.Decimal) (*models.Wallet, error) {
	return r.mutate(ctx, walletId, func(w *models.Wallet) error {
		w.Balance = w.Balance.Add(delta)
		return nil
	})
}

// HasPermission is a pure query with no side effects.
func (r *Registry) HasPermission(ctx context.Context, walletId, userId string, capability models.Capability) (bool, error) {
	w, err := r.store.GetWallet(ctx, walletId)
	if err != nil {
		return false, err
	}
	return w.HasPermission(userId, capability), nil
}

// mutate loads the wallet, applies fn, re-checks invariants, and saves with
// the version read. A version conflict re-runs the whole sequence against
// fresh state.
func (r *Registry) mutate(ctx context.Context, walletId string, fn func(*models.Wallet) error) (*models.Wallet, error) {
	var result *models.Wallet
	err := store.RetryConflict(ctx, func(ctx context.Context) error {
		w, err := r.store.GetWallet(ctx, walletId)
		if err != nil {
			return err
		}
		if err := fn(w); err != nil {
			return err
		}
		if err := w.CheckInvariants(); err != nil {
			return err
		}
		if err := r.store.SaveWallet(ctx, w); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
