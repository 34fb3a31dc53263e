package authz

import (
	"context"
	"time"
)

// ResourcePermission is a fine-grained grant. A nil ObjectID makes the grant
// a wildcard over every object of the resource type; a non-nil ObjectID scopes
// it to one object. Rows are never deleted: revocation sets RevokedAt and
// expiry is evaluated against the clock at read time so the audit trail can
// distinguish the two.
type ResourcePermission struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	ResourceType ResourceType `json:"resource_type"`
	Action       Action       `json:"action"`
	ObjectID     *int64       `json:"object_id,omitempty"`
	GrantedBy    int64        `json:"granted_by"`
	GrantedAt    time.Time    `json:"granted_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	RevokedAt    *time.Time   `json:"revoked_at,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

// Wildcard reports whether the grant applies to all objects of its type.
func (p *ResourcePermission) Wildcard() bool {
	return p.ObjectID == nil
}

func (p *ResourcePermission) Revoked() bool {
	return p.RevokedAt != nil
}

func (p *ResourcePermission) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// ValidAt reports whether the grant is currently effective: not revoked and
// not past its expiry.
func (p *ResourcePermission) ValidAt(now time.Time) bool {
	return !p.Revoked() && !p.ExpiredAt(now)
}

// ResourcePermissionStore persists fine-grained grants.
type ResourcePermissionStore interface {
	Create(ctx context.Context, perm *ResourcePermission) error
	// GetByID returns the grant regardless of its revoked/expired state.
	GetByID(ctx context.Context, id int64) (*ResourcePermission, error)
	// MarkRevoked stamps RevokedAt; it is not idempotent at this layer, the
	// Service checks the current state first.
	MarkRevoked(ctx context.Context, id int64, at time.Time) error
	// ListActive returns the principal's currently valid grants, excluding
	// revoked and expired rows.
	ListActive(ctx context.Context, userID int64) ([]*ResourcePermission, error)
	// FindApplicable returns the best currently valid match for the request:
	// an object-scoped grant when objectID is non-nil and one exists,
	// otherwise a wildcard grant, otherwise nil.
	FindApplicable(ctx context.Context, userID int64, resource ResourceType, action Action, objectID *int64) (*ResourcePermission, error)
}
