package authz

import (
	"context"
	"time"
)

// RoleAssignment is the single active role row for a principal. Assigning a
// new role supersedes the previous one; rows are deactivated, never deleted.
type RoleAssignment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleStore reads and writes role assignments. Mutations are only reachable
// through the Service so that every change is audited in the same transaction.
type RoleStore interface {
	// Get returns the principal's active role, or RoleUnassigned when no row
	// exists. A missing row is not an error.
	Get(ctx context.Context, userID int64) (Role, error)
	// Assign supersedes any active role row for the principal and returns the
	// previous role (RoleUnassigned when there was none).
	Assign(ctx context.Context, userID int64, role Role) (previous Role, err error)
}
