package authz

import (
	"context"
	"time"
)

// Capability flag names, used by the action mapping, the discovery endpoint
// and audit snapshots.
const (
	FlagCanCreateShifts    = "can_create_shifts"
	FlagCanEditShifts      = "can_edit_shifts"
	FlagCanCreateExpenses  = "can_create_expenses"
	FlagCanEditExpenses    = "can_edit_expenses"
	FlagCanApproveExpenses = "can_approve_expenses"
)

func AllCapabilityFlags() []string {
	return []string{
		FlagCanCreateShifts,
		FlagCanEditShifts,
		FlagCanCreateExpenses,
		FlagCanEditExpenses,
		FlagCanApproveExpenses,
	}
}

// CapabilityFlags refine what a non-owner access holder may do on the
// property's data. They are independent of the access type: an assigned guard
// can be allowed to create shifts without being allowed to approve expenses.
type CapabilityFlags struct {
	CanCreateShifts    bool `json:"can_create_shifts"`
	CanEditShifts      bool `json:"can_edit_shifts"`
	CanCreateExpenses  bool `json:"can_create_expenses"`
	CanEditExpenses    bool `json:"can_edit_expenses"`
	CanApproveExpenses bool `json:"can_approve_expenses"`
}

func (f CapabilityFlags) Enabled(flag string) bool {
	switch flag {
	case FlagCanCreateShifts:
		return f.CanCreateShifts
	case FlagCanEditShifts:
		return f.CanEditShifts
	case FlagCanCreateExpenses:
		return f.CanCreateExpenses
	case FlagCanEditExpenses:
		return f.CanEditExpenses
	case FlagCanApproveExpenses:
		return f.CanApproveExpenses
	}
	return false
}

// PropertyAccess scopes a principal to one property. At most one active row
// may exist per (user, property); a new grant supersedes the old row instead
// of duplicating it, and revoked rows are immutable.
type PropertyAccess struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	PropertyID int64           `json:"property_id"`
	AccessType AccessType      `json:"access_type"`
	Flags      CapabilityFlags `json:"flags"`
	GrantedBy  int64           `json:"granted_by"`
	GrantedAt  time.Time       `json:"granted_at"`
	RevokedAt  *time.Time      `json:"revoked_at,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

func (a *PropertyAccess) Revoked() bool {
	return a.RevokedAt != nil
}

// Allows decides an action on the property's data from this row alone.
// Owners get everything; other access types get reads plus whatever their
// capability flags enable for the mapped action.
func (a *PropertyAccess) Allows(resource ResourceType, action Action) bool {
	if a.Revoked() {
		return false
	}
	if a.AccessType == AccessOwner {
		return true
	}
	if action == ActionRead {
		return true
	}
	flag, ok := capabilityFlagFor(resource, action)
	if !ok {
		return false
	}
	return a.Flags.Enabled(flag)
}

// PropertyAccessStore persists per-property access rows.
type PropertyAccessStore interface {
	Create(ctx context.Context, access *PropertyAccess) error
	// GetByID returns the row regardless of its revoked state.
	GetByID(ctx context.Context, id int64) (*PropertyAccess, error)
	// GetActive returns the active row for the pair, or nil when none exists.
	GetActive(ctx context.Context, userID, propertyID int64) (*PropertyAccess, error)
	// GetActiveForUpdate is GetActive under a row lock, serializing concurrent
	// grants for the same pair.
	GetActiveForUpdate(ctx context.Context, userID, propertyID int64) (*PropertyAccess, error)
	MarkRevoked(ctx context.Context, id int64, at time.Time) error
	ListActive(ctx context.Context, userID int64) ([]*PropertyAccess, error)
	// ListAccessiblePropertyIDs returns the ids of every property the
	// principal holds any active access row for.
	ListAccessiblePropertyIDs(ctx context.Context, userID int64) ([]int64, error)
}
