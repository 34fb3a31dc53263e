package authz

import (
	"time"

	"github.com/guardhq/workforce-management/internal"
)

// AssignRoleDTO is the admin request body for role assignment.
type AssignRoleDTO struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	Reason string `json:"reason,omitempty"`
}

func (d AssignRoleDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationError("user_id is required", internal.ErrCodeValidationFailed)
	}
	if !Role(d.Role).Valid() {
		return internal.NewValidationError("role must be one of the known roles", internal.ErrCodeInvalidRole)
	}
	return nil
}

// GrantResourcePermissionDTO creates a fine-grained grant; object_id omitted
// means a wildcard over the resource type, expires_at omitted means no expiry.
type GrantResourcePermissionDTO struct {
	UserID       int64      `json:"user_id"`
	ResourceType string     `json:"resource_type"`
	Action       string     `json:"action"`
	ObjectID     *int64     `json:"object_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

func (d GrantResourcePermissionDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationError("user_id is required", internal.ErrCodeValidationFailed)
	}
	if !ResourceType(d.ResourceType).Valid() {
		return internal.NewValidationError("resource_type must be one of the known resource types", internal.ErrCodeInvalidResource)
	}
	if !Action(d.Action).Valid() {
		return internal.NewValidationError("action must be one of the known actions", internal.ErrCodeInvalidAction)
	}
	if d.ObjectID != nil && *d.ObjectID <= 0 {
		return internal.NewValidationError("object_id must be positive when present", internal.ErrCodeValidationFailed)
	}
	return nil
}

// GrantPropertyAccessDTO creates or supersedes the access row for the
// (user_id, property_id) pair.
type GrantPropertyAccessDTO struct {
	UserID     int64           `json:"user_id"`
	PropertyID int64           `json:"property_id"`
	AccessType string          `json:"access_type"`
	Flags      CapabilityFlags `json:"flags"`
	Reason     string          `json:"reason,omitempty"`
}

func (d GrantPropertyAccessDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationError("user_id is required", internal.ErrCodeValidationFailed)
	}
	if d.PropertyID <= 0 {
		return internal.NewValidationError("property_id is required", internal.ErrCodeValidationFailed)
	}
	if !AccessType(d.AccessType).Valid() {
		return internal.NewValidationError("access_type must be one of the known access types", internal.ErrCodeInvalidAccess)
	}
	return nil
}

// RevokeDTO carries the optional free-text reason for a revocation. Omission
// is allowed but discouraged, never rejected.
type RevokeDTO struct {
	Reason string `json:"reason,omitempty"`
}

// Bulk update operations and permission kinds.
const (
	BulkOperationGrant  = "grant"
	BulkOperationRevoke = "revoke"

	BulkKindResource = "resource"
	BulkKindProperty = "property"
)

// BulkPermissionDataDTO is the per-item payload of a bulk update. Which
// fields apply depends on the operation and kind: resource grants use the
// grant fields of GrantResourcePermissionDTO, property grants those of
// GrantPropertyAccessDTO, revocations name the row by id.
type BulkPermissionDataDTO struct {
	Kind string `json:"kind"`

	ResourceType string     `json:"resource_type,omitempty"`
	Action       string     `json:"action,omitempty"`
	ObjectID     *int64     `json:"object_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	PropertyID int64           `json:"property_id,omitempty"`
	AccessType string          `json:"access_type,omitempty"`
	Flags      CapabilityFlags `json:"flags,omitempty"`

	PermissionID int64 `json:"permission_id,omitempty"`
	AccessID     int64 `json:"access_id,omitempty"`
}

// BulkUpdateItemDTO is one grant or revoke inside a bulk request.
type BulkUpdateItemDTO struct {
	UserID     int64                 `json:"user_id"`
	Operation  string                `json:"operation"`
	Permission BulkPermissionDataDTO `json:"permission"`
}

// BulkUpdateDTO batches permission changes. Items are applied independently;
// a failing item is reported in its result and does not abort the rest.
type BulkUpdateDTO struct {
	Updates []BulkUpdateItemDTO `json:"updates"`
	Reason  string              `json:"reason,omitempty"`
}

func (d BulkUpdateDTO) Validate() error {
	if len(d.Updates) == 0 {
		return internal.NewValidationError("updates array is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// BulkUpdateResult reports the outcome of one bulk item. ID is the created
// or revoked row id when the item succeeded.
type BulkUpdateResult struct {
	UserID    int64  `json:"user_id"`
	Operation string `json:"operation"`
	Kind      string `json:"kind"`
	Success   bool   `json:"success"`
	ID        int64  `json:"id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BulkUpdateResponse summarizes a bulk update.
type BulkUpdateResponse struct {
	Total      int                 `json:"total"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Results    []*BulkUpdateResult `json:"results"`
}

// AuditLogResponse pages through the audit trail.
type AuditLogResponse struct {
	Entries []*AuditEntry `json:"entries"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}
