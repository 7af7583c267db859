package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupRegistry(t *testing.T) (*Registry, *models.Wallet) {
	t.Helper()
	registry := NewRegistry(store.NewMemoryStore())

	w, err := registry.CreateWallet(context.Background(), "Household", "USDC",
		models.Participant{UserId: "alice", PublicKey: []byte("alice-key")}, 1)
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	return registry, w
}

func addActive(t *testing.T, registry *Registry, walletId, userId string, role models.Role) {
	t.Helper()
	ctx := context.Background()
	_, err := registry.AddParticipant(ctx, walletId, models.Participant{UserId: userId, Role: role}, "alice")
	if err != nil {
		t.Fatalf("AddParticipant(%s) failed: %v", userId, err)
	}
	if _, err := registry.ActivateParticipant(ctx, walletId, userId); err != nil {
		t.Fatalf("ActivateParticipant(%s) failed: %v", userId, err)
	}
}

func TestCreateWallet(t *testing.T) {
	_, w := setupRegistry(t)

	if w.Threshold != 1 {
		t.Errorf("Expected threshold 1, got %d", w.Threshold)
	}
	if len(w.Participants) != 1 {
		t.Fatalf("Expected 1 participant, got %d", len(w.Participants))
	}
	// The creator is always an active admin regardless of the passed role.
	creator := w.Participants[0]
	if creator.Role != models.RoleAdmin || creator.Status != models.MembershipActive {
		t.Errorf("Expected creator to be active admin, got %s/%s", creator.Role, creator.Status)
	}
	if w.Status != models.WalletActive {
		t.Errorf("Expected active wallet, got %s", w.Status)
	}
}

func TestCreateWallet_Validation(t *testing.T) {
	registry := NewRegistry(store.NewMemoryStore())
	ctx := context.Background()

	_, err := registry.CreateWallet(ctx, "", "USDC", models.Participant{UserId: "alice"}, 1)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for missing name, got %v", err)
	}
	_, err = registry.CreateWallet(ctx, "Household", "USDC", models.Participant{}, 1)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for missing creator, got %v", err)
	}
	// Threshold above the single initial participant breaks the invariant.
	_, err = registry.CreateWallet(ctx, "Household", "USDC", models.Participant{UserId: "alice"}, 3)
	if !errors.Is(err, models.ErrInvariant) {
		t.Errorf("Expected ErrInvariant for threshold above participant count, got %v", err)
	}
}

func TestAddParticipant(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()

	updated, err := registry.AddParticipant(ctx, w.Id, models.Participant{UserId: "bob"}, "alice")
	if err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}
	bob := updated.FindParticipant("bob")
	if bob == nil {
		t.Fatalf("Expected bob to be present")
	}
	if bob.Status != models.MembershipInvited {
		t.Errorf("Expected bob to start invited, got %s", bob.Status)
	}
	if bob.Role != models.RoleMember {
		t.Errorf("Expected default member role, got %s", bob.Role)
	}

	// Invited participants cannot manage the wallet yet.
	_, err = registry.AddParticipant(ctx, w.Id, models.Participant{UserId: "carol"}, "bob")
	if !errors.Is(err, models.ErrPermission) {
		t.Errorf("Expected ErrPermission for non-admin actor, got %v", err)
	}

	// Duplicate membership is a conflict.
	_, err = registry.AddParticipant(ctx, w.Id, models.Participant{UserId: "bob"}, "alice")
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate participant, got %v", err)
	}
}

func TestActivateParticipant(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()

	if _, err := registry.AddParticipant(ctx, w.Id, models.Participant{UserId: "bob"}, "alice"); err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	updated, err := registry.ActivateParticipant(ctx, w.Id, "bob")
	if err != nil {
		t.Fatalf("ActivateParticipant failed: %v", err)
	}
	if !updated.IsParticipant("bob") {
		t.Errorf("Expected bob to be active after activation")
	}

	_, err = registry.ActivateParticipant(ctx, w.Id, "bob")
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict for double activation, got %v", err)
	}
	_, err = registry.ActivateParticipant(ctx, w.Id, "nobody")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown participant, got %v", err)
	}
}

func TestRemoveParticipant(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()
	addActive(t, registry, w.Id, "bob", models.RoleMember)
	addActive(t, registry, w.Id, "carol", models.RoleMember)

	updated, err := registry.RemoveParticipant(ctx, w.Id, "carol", "alice")
	if err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}
	if updated.FindParticipant("carol") != nil {
		t.Errorf("Expected carol to be removed")
	}

	// The creator is untouchable.
	_, err = registry.RemoveParticipant(ctx, w.Id, "alice", "alice")
	if !errors.Is(err, models.ErrInvariant) {
		t.Errorf("Expected ErrInvariant removing the creator, got %v", err)
	}
}

func TestRemoveParticipant_ProtectsThreshold(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()
	addActive(t, registry, w.Id, "bob", models.RoleMember)

	if _, err := registry.UpdateThreshold(ctx, w.Id, 2, "alice"); err != nil {
		t.Fatalf("UpdateThreshold failed: %v", err)
	}

	// Removing bob would leave 1 participant with threshold 2.
	_, err := registry.RemoveParticipant(ctx, w.Id, "bob", "alice")
	if !errors.Is(err, models.ErrInvariant) {
		t.Errorf("Expected ErrInvariant dropping below threshold, got %v", err)
	}

	// The refused mutation must not be observable.
	current, err := registry.Get(ctx, w.Id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(current.Participants) != 2 {
		t.Errorf("Expected 2 participants after refused removal, got %d", len(current.Participants))
	}
}

func TestRemoveParticipant_SecondAdmin(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()
	addActive(t, registry, w.Id, "bob", models.RoleAdmin)
	addActive(t, registry, w.Id, "carol", models.RoleMember)

	// alice (creator) and bob are both admins, so bob is removable.
	updated, err := registry.RemoveParticipant(ctx, w.Id, "bob", "alice")
	if err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}
	if updated.AdminCount() != 1 {
		t.Errorf("Expected 1 admin remaining, got %d", updated.AdminCount())
	}
}

func TestUpdateThreshold(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()
	addActive(t, registry, w.Id, "bob", models.RoleMember)

	updated, err := registry.UpdateThreshold(ctx, w.Id, 2, "alice")
	if err != nil {
		t.Fatalf("UpdateThreshold failed: %v", err)
	}
	if updated.Threshold != 2 {
		t.Errorf("Expected threshold 2, got %d", updated.Threshold)
	}

	_, err = registry.UpdateThreshold(ctx, w.Id, 0, "alice")
	if !errors.Is(err, models.ErrInvariant) {
		t.Errorf("Expected ErrInvariant for threshold 0, got %v", err)
	}
	_, err = registry.UpdateThreshold(ctx, w.Id, 3, "alice")
	if !errors.Is(err, models.ErrInvariant) {
		t.Errorf("Expected ErrInvariant for threshold above participant count, got %v", err)
	}
	_, err = registry.UpdateThreshold(ctx, w.Id, 1, "bob")
	if !errors.Is(err, models.ErrPermission) {
		t.Errorf("Expected ErrPermission for non-admin actor, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()

	updated, err := registry.SetStatus(ctx, w.Id, models.WalletSuspended, "alice")
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if updated.Status != models.WalletSuspended {
		t.Errorf("Expected suspended, got %s", updated.Status)
	}

	_, err = registry.SetStatus(ctx, w.Id, models.WalletStatus("melted"), "alice")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown status, got %v", err)
	}
	_, err = registry.SetStatus(ctx, w.Id, models.WalletActive, "nobody")
	if !errors.Is(err, models.ErrPermission) {
		t.Errorf("Expected ErrPermission for outsider, got %v", err)
	}
}

func TestCreditBalance(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()

	updated, err := registry.CreditBalance(ctx, w.Id, decimal.NewFromInt(250))
	if err != nil {
		t.Fatalf("CreditBalance failed: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected balance 250, got %s", updated.Balance.String())
	}

	updated, err = registry.CreditBalance(ctx, w.Id, decimal.NewFromInt(-100))
	if err != nil {
		t.Fatalf("CreditBalance debit failed: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected balance 150, got %s", updated.Balance.String())
	}
}

// Runs a long randomized sequence of membership and threshold mutations and
// checks the wallet invariants after every step. Mutations are free to fail;
// a committed state that violates the invariants is the only defect.
func TestRegistry_RandomizedMutations(t *testing.T) {
	registry, w := setupRegistry(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	nextUser := 0
	for step := 0; step < 500; step++ {
		current, err := registry.Get(ctx, w.Id)
		if err != nil {
			t.Fatalf("Get failed at step %d: %v", step, err)
		}

		switch rng.Intn(4) {
		case 0:
			userId := fmt.Sprintf("user-%d", nextUser)
			nextUser++
			role := models.RoleMember
			if rng.Intn(4) == 0 {
				role = models.RoleAdmin
			}
			registry.AddParticipant(ctx, w.Id, models.Participant{UserId: userId, Role: role}, "alice")
		case 1:
			victim := current.Participants[rng.Intn(len(current.Participants))]
			registry.RemoveParticipant(ctx, w.Id, victim.UserId, "alice")
		case 2:
			registry.UpdateThreshold(ctx, w.Id, rng.Intn(len(current.Participants)+2), "alice")
		case 3:
			candidate := current.Participants[rng.Intn(len(current.Participants))]
			registry.ActivateParticipant(ctx, w.Id, candidate.UserId)
		}

		after, err := registry.Get(ctx, w.Id)
		if err != nil {
			t.Fatalf("Get failed at step %d: %v", step, err)
		}
		if err := after.CheckInvariants(); err != nil {
			t.Fatalf("Invariants violated at step %d: %v", step, err)
		}
		if after.Threshold < 1 || after.Threshold > len(after.Participants) {
			t.Fatalf("Threshold %d out of range for %d participants at step %d",
				after.Threshold, len(after.Participants), step)
		}
	}
}
