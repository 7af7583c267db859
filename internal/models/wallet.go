package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WalletStatus describes whether a wallet accepts new operations.
type WalletStatus string

const (
	WalletActive    WalletStatus = "active"
	WalletSuspended WalletStatus = "suspended"
	WalletFrozen    WalletStatus = "frozen"
)

// Role is a participant's privilege level within a wallet.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// MembershipStatus tracks whether an invited participant has accepted.
type MembershipStatus string

const (
	MembershipInvited MembershipStatus = "invited"
	MembershipActive  MembershipStatus = "active"
)

// Capability names a permission checked by HasPermission.
type Capability string

const (
	CapManageParticipants Capability = "manage_participants"
	CapManageRules        Capability = "manage_rules"
	CapPropose            Capability = "propose"
	CapSign               Capability = "sign"
	CapReject             Capability = "reject"
	CapExecute            Capability = "execute"
)

// Participant is a member of a shared wallet. UserId references an external
// identity; the wallet owns the membership record, not the user.
type Participant struct {
	UserId    string           `json:"user_id"`
	PublicKey []byte           `json:"public_key"`
	Role      Role             `json:"role"`
	Status    MembershipStatus `json:"status"`
	JoinedAt  time.Time        `json:"joined_at"`
}

// Wallet is a shared custodial account with a signature threshold.
// Invariant: 1 <= Threshold <= len(Participants), enforced on every mutation.
type Wallet struct {
	Id           string          `json:"id"`
	Name         string          `json:"name"`
	Threshold    int             `json:"threshold"`
	Participants []Participant   `json:"participants"`
	Status       WalletStatus    `json:"status"`
	Balance      decimal.Decimal `json:"balance"` // cached ledger balance
	Currency     string          `json:"currency"`
	CreatorId    string          `json:"creator_id"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FindParticipant returns the participant with the given user id, or nil.
func (w *Wallet) FindParticipant(userId string) *Participant {
	for i := range w.Participants {
		if w.Participants[i].UserId == userId {
			return &w.Participants[i]
		}
	}
	return nil
}

// IsParticipant reports whether userId is an active member of the wallet.
func (w *Wallet) IsParticipant(userId string) bool {
	p := w.FindParticipant(userId)
	return p != nil && p.Status == MembershipActive
}

// IsAdmin reports whether userId is an active admin of the wallet.
func (w *Wallet) IsAdmin(userId string) bool {
	p := w.FindParticipant(userId)
	return p != nil && p.Status == MembershipActive && p.Role == RoleAdmin
}

// AdminCount returns the number of active admins.
func (w *Wallet) AdminCount() int {
	count := 0
	for _, p := range w.Participants {
		if p.Role == RoleAdmin && p.Status == MembershipActive {
			count++
		}
	}
	return count
}

// CheckInvariants validates the threshold invariant. It is called after every
// candidate mutation before the wallet is saved; a mutation that fails here is
// discarded without being observable.
func (w *Wallet) CheckInvariants() error {
	if w.Threshold < 1 {
		return fmt.Errorf("%w: threshold %d must be at least 1", ErrInvariant, w.Threshold)
	}
	if w.Threshold > len(w.Participants) {
		return fmt.Errorf("%w: threshold %d exceeds participant count %d",
			ErrInvariant, w.Threshold, len(w.Participants))
	}
	if w.AdminCount() == 0 {
		return fmt.Errorf("%w: wallet must retain at least one active admin", ErrInvariant)
	}
	return nil
}

// HasPermission is a pure query mapping a capability to the wallet's
// membership and role rules. It never mutates the wallet.
func (w *Wallet) HasPermission(userId string, capability Capability) bool {
	switch capability {
	case CapManageParticipants, CapManageRules, CapReject:
		return w.IsAdmin(userId)
	case CapPropose, CapSign, CapExecute:
		return w.IsParticipant(userId)
	default:
		return false
	}
}
