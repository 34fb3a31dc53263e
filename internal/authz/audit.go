package authz

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditGranted    AuditAction = "granted"
	AuditRevoked    AuditAction = "revoked"
	AuditSuperseded AuditAction = "superseded"
	AuditAssigned   AuditAction = "assigned"
)

type PermissionKind string

const (
	KindRole               PermissionKind = "role"
	KindResourcePermission PermissionKind = "resource_permission"
	KindPropertyAccess     PermissionKind = "property_access"
)

// AuditEntry is an append-only record of one permission-state change. It is
// written in the same transaction as the change itself: either both commit or
// neither does.
type AuditEntry struct {
	ID             int64          `json:"id"`
	ActorID        int64          `json:"actor_id"`
	Action         AuditAction    `json:"action"`
	TargetUserID   int64          `json:"target_user_id"`
	PermissionKind PermissionKind `json:"permission_kind"`
	BeforeState    datatypes.JSON `json:"before_state,omitempty"`
	AfterState     datatypes.JSON `json:"after_state,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AuditFilter narrows audit-log reads. Zero values mean "no filter".
type AuditFilter struct {
	TargetUserID   int64
	PermissionKind PermissionKind
	Action         AuditAction
	Page           int
	PerPage        int
}

// AuditStore appends and reads the permission audit trail. There is no update
// or delete: the log is immutable by construction.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, int64, error)
}

// snapshot serializes a state value for a before/after column. Marshal errors
// cannot happen for our own record types, so a nil JSON is returned instead of
// failing the surrounding transaction.
func snapshot(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
