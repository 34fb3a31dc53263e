package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guardhq/workforce-management/internal"
)

// Stores bundles the engine's persistence interfaces. A TxRunner hands out a
// Stores bound to one transaction so a grant and its audit entry commit or
// roll back together.
type Stores struct {
	Roles  RoleStore
	Perms  ResourcePermissionStore
	Access PropertyAccessStore
	Audit  AuditStore
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

// UserDirectory resolves principal existence and enumeration; principals are
// owned by the identity layer, the engine only references them.
type UserDirectory interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// PropertyDirectory resolves property existence for access grants.
type PropertyDirectory interface {
	PropertyExists(ctx context.Context, propertyID int64) (bool, error)
}

// Service is the administrative surface over the stores. Every mutating call
// validates its vocabulary, runs inside one transaction and appends exactly
// one audit entry per state change.
type Service struct {
	store      Stores
	tx         TxRunner
	users      UserDirectory
	properties PropertyDirectory
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(store Stores, tx TxRunner, users UserDirectory, properties PropertyDirectory, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		tx:         tx,
		users:      users,
		properties: properties,
		logger:     logger,
		now:        time.Now,
	}
}

// AssignRole supersedes the principal's current role. The previous and new
// role values land in the audit entry's before/after states.
func (s *Service) AssignRole(ctx context.Context, actorID, userID int64, role Role, reason string) error {
	if !role.Valid() {
		return internal.NewValidationError(fmt.Sprintf("invalid role %q", role), internal.ErrCodeInvalidRole)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	err := s.tx.InTx(ctx, func(st Stores) error {
		previous, err := st.Roles.Assign(ctx, userID, role)
		if err != nil {
			return err
		}
		return st.Audit.Append(ctx, &AuditEntry{
			ActorID:        actorID,
			Action:         AuditAssigned,
			TargetUserID:   userID,
			PermissionKind: KindRole,
			BeforeState:    snapshot(map[string]Role{"role": previous}),
			AfterState:     snapshot(map[string]Role{"role": role}),
			Reason:         reason,
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "role assigned",
		"actor_id", actorID, "user_id", userID, "role", string(role))
	return nil
}

// GrantResourcePermission creates a fine-grained grant. A nil objectID makes
// it a wildcard over the resource type.
func (s *Service) GrantResourcePermission(ctx context.Context, actorID, userID int64, resource ResourceType, action Action, objectID *int64, expiresAt *time.Time, reason string) (*ResourcePermission, error) {
	if !resource.Valid() {
		return nil, internal.NewValidationError(fmt.Sprintf("invalid resource type %q", resource), internal.ErrCodeInvalidResource)
	}
	if !action.Valid() {
		return nil, internal.NewValidationError(fmt.Sprintf("invalid action %q", action), internal.ErrCodeInvalidAction)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	perm := &ResourcePermission{
		UserID:       userID,
		ResourceType: resource,
		Action:       action,
		ObjectID:     objectID,
		GrantedBy:    actorID,
		GrantedAt:    s.now(),
		ExpiresAt:    expiresAt,
		Reason:       reason,
	}

	err := s.tx.InTx(ctx, func(st Stores) error {
		if err := st.Perms.Create(ctx, perm); err != nil {
			return err
		}
		return st.Audit.Append(ctx, &AuditEntry{
			ActorID:        actorID,
			Action:         AuditGranted,
			TargetUserID:   userID,
			PermissionKind: KindResourcePermission,
			AfterState:     snapshot(perm),
			Reason:         reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "resource permission granted",
		"actor_id", actorID, "user_id", userID,
		"resource_type", string(resource), "action", string(action))
	return perm, nil
}

// RevokeResourcePermission logically revokes a grant. Revoking an already
// revoked grant changes nothing but still appends an audit entry
// acknowledging the attempt.
func (s *Service) RevokeResourcePermission(ctx context.Context, actorID, permissionID int64, reason string) error {
	return s.tx.InTx(ctx, func(st Stores) error {
		perm, err := st.Perms.GetByID(ctx, permissionID)
		if err != nil {
			return err
		}
		if perm == nil {
			return internal.NewNotFoundError("resource permission not found", internal.ErrCodePermissionNotFound)
		}

		before := snapshot(perm)
		if !perm.Revoked() {
			at := s.now()
			if err := st.Perms.MarkRevoked(ctx, permissionID, at); err != nil {
				return err
			}
			perm.RevokedAt = &at
		}

		return st.Audit.Append(ctx, &AuditEntry{
			ActorID:        actorID,
			Action:         AuditRevoked,
			TargetUserID:   perm.UserID,
			PermissionKind: KindResourcePermission,
			BeforeState:    before,
			AfterState:     snapshot(perm),
			Reason:         reason,
		})
	})
}

// GrantPropertyAccess creates an access row for the (user, property) pair,
// first revoking any active row so at most one ever exists. The supersession
// and the new grant are separate audit entries inside one transaction.
func (s *Service) GrantPropertyAccess(ctx context.Context, actorID, userID, propertyID int64, accessType AccessType, flags CapabilityFlags, reason string) (*PropertyAccess, error) {
	if !accessType.Valid() {
		return nil, internal.NewValidationError(fmt.Sprintf("invalid access type %q", accessType), internal.ErrCodeInvalidAccess)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	exists, err := s.properties.PropertyExists(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, internal.NewNotFoundError("property not found", internal.ErrCodePropertyNotFound)
	}

	access := &PropertyAccess{
		UserID:     userID,
		PropertyID: propertyID,
		AccessType: accessType,
		Flags:      flags,
		GrantedBy:  actorID,
		GrantedAt:  s.now(),
		Reason:     reason,
	}

	err = s.tx.InTx(ctx, func(st Stores) error {
		// The row lock serializes concurrent grants for the same pair.
		existing, err := st.Access.GetActiveForUpdate(ctx, userID, propertyID)
		if err != nil {
			return err
		}
		if existing != nil {
			before := snapshot(existing)
			at := s.now()
			if err := st.Access.MarkRevoked(ctx, existing.ID, at); err != nil {
				return err
			}
			existing.RevokedAt = &at
			if err := st.Audit.Append(ctx, &AuditEntry{
				ActorID:        actorID,
				Action:         AuditSuperseded,
				TargetUserID:   userID,
				PermissionKind: KindPropertyAccess,
				BeforeState:    before,
				AfterState:     snapshot(existing),
				Reason:         reason,
			}); err != nil {
				return err
			}
		}

		if err := st.Access.Create(ctx, access); err != nil {
			return err
		}
		return st.Audit.Append(ctx, &AuditEntry{
			ActorID:        actorID,
			Action:         AuditGranted,
			TargetUserID:   userID,
			PermissionKind: KindPropertyAccess,
			AfterState:     snapshot(access),
			Reason:         reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "property access granted",
		"actor_id", actorID, "user_id", userID,
		"property_id", propertyID, "access_type", string(accessType))
	return access, nil
}

// RevokePropertyAccess logically revokes an access row, with the same
// idempotent-but-audited semantics as resource permission revocation.
func (s *Service) RevokePropertyAccess(ctx context.Context, actorID, accessID int64, reason string) error {
	return s.tx.InTx(ctx, func(st Stores) error {
		access, err := st.Access.GetByID(ctx, accessID)
		if err != nil {
			return err
		}
		if access == nil {
			return internal.NewNotFoundError("property access not found", internal.ErrCodeAccessNotFound)
		}

		before := snapshot(access)
		if !access.Revoked() {
			at := s.now()
			if err := st.Access.MarkRevoked(ctx, accessID, at); err != nil {
				return err
			}
			access.RevokedAt = &at
		}

		return st.Audit.Append(ctx, &AuditEntry{
			ActorID:        actorID,
			Action:         AuditRevoked,
			TargetUserID:   access.UserID,
			PermissionKind: KindPropertyAccess,
			BeforeState:    before,
			AfterState:     snapshot(access),
			Reason:         reason,
		})
	})
}

// AuditLog reads the trail with pagination; zero filter fields are ignored.
// The response carries the effective page and page size after clamping.
func (s *Service) AuditLog(ctx context.Context, filter AuditFilter) (*AuditLogResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 500 {
		filter.PerPage = 100
	}
	entries, total, err := s.store.Audit.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &AuditLogResponse{
		Entries: entries,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}, nil
}

// PermissionSummary describes one principal's full authorization state.
type PermissionSummary struct {
	UserID              int64                 `json:"user_id"`
	Role                Role                  `json:"role"`
	ResourcePermissions []*ResourcePermission `json:"resource_permissions"`
	PropertyAccess      []*PropertyAccess     `json:"property_access"`
}

func (s *Service) UserPermissionSummary(ctx context.Context, userID int64) (*PermissionSummary, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.summaryFor(ctx, userID)
}

// UsersWithPermissions returns the authorization state of every known
// principal, one summary per user.
func (s *Service) UsersWithPermissions(ctx context.Context) ([]*PermissionSummary, error) {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*PermissionSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := s.summaryFor(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Service) summaryFor(ctx context.Context, userID int64) (*PermissionSummary, error) {
	role, err := s.store.Roles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms, err := s.store.Perms.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	access, err := s.store.Access.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &PermissionSummary{
		UserID:              userID,
		Role:                role,
		ResourcePermissions: perms,
		PropertyAccess:      access,
	}, nil
}

// BulkUpdate applies a batch of grants and revocations. Items are dispatched
// to the single-item operations, so each one stays transactional with its
// audit entry; a failing item is reported in its result and the remaining
// items still apply.
func (s *Service) BulkUpdate(ctx context.Context, actorID int64, dto BulkUpdateDTO) (*BulkUpdateResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	resp := &BulkUpdateResponse{
		Total:   len(dto.Updates),
		Results: make([]*BulkUpdateResult, 0, len(dto.Updates)),
	}
	for _, item := range dto.Updates {
		result := s.applyBulkItem(ctx, actorID, item, dto.Reason)
		if result.Success {
			resp.Successful++
		} else {
			resp.Failed++
		}
		resp.Results = append(resp.Results, result)
	}

	s.logger.InfoContext(ctx, "bulk permission update applied",
		"actor_id", actorID, "total", resp.Total,
		"successful", resp.Successful, "failed", resp.Failed)
	return resp, nil
}

func (s *Service) applyBulkItem(ctx context.Context, actorID int64, item BulkUpdateItemDTO, reason string) *BulkUpdateResult {
	result := &BulkUpdateResult{
		UserID:    item.UserID,
		Operation: item.Operation,
		Kind:      item.Permission.Kind,
	}

	fail := func(err error) *BulkUpdateResult {
		result.Error = err.Error()
		return result
	}

	switch item.Operation {
	case BulkOperationGrant:
		switch item.Permission.Kind {
		case BulkKindResource:
			perm, err := s.GrantResourcePermission(ctx, actorID, item.UserID,
				ResourceType(item.Permission.ResourceType), Action(item.Permission.Action),
				item.Permission.ObjectID, item.Permission.ExpiresAt, reason)
			if err != nil {
				return fail(err)
			}
			result.Success = true
			result.ID = perm.ID

		case BulkKindProperty:
			access, err := s.GrantPropertyAccess(ctx, actorID, item.UserID,
				item.Permission.PropertyID, AccessType(item.Permission.AccessType),
				item.Permission.Flags, reason)
			if err != nil {
				return fail(err)
			}
			result.Success = true
			result.ID = access.ID

		default:
			result.Error = `kind must be "resource" or "property"`
		}

	case BulkOperationRevoke:
		switch item.Permission.Kind {
		case BulkKindResource:
			if err := s.RevokeResourcePermission(ctx, actorID, item.Permission.PermissionID, reason); err != nil {
				return fail(err)
			}
			result.Success = true
			result.ID = item.Permission.PermissionID

		case BulkKindProperty:
			if err := s.RevokePropertyAccess(ctx, actorID, item.Permission.AccessID, reason); err != nil {
				return fail(err)
			}
			result.Success = true
			result.ID = item.Permission.AccessID

		default:
			result.Error = `kind must be "resource" or "property"`
		}

	default:
		result.Error = `operation must be "grant" or "revoke"`
	}

	return result
}

// Options enumerates the closed vocabularies for client-side form population.
type Options struct {
	Roles           []Role         `json:"roles"`
	ResourceTypes   []ResourceType `json:"resource_types"`
	Actions         []Action       `json:"actions"`
	AccessTypes     []AccessType   `json:"access_types"`
	CapabilityFlags []string       `json:"capability_flags"`
}

func (s *Service) AvailableOptions() Options {
	return Options{
		Roles:           AllRoles(),
		ResourceTypes:   AllResourceTypes(),
		Actions:         AllActions(),
		AccessTypes:     AllAccessTypes(),
		CapabilityFlags: AllCapabilityFlags(),
	}
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)
	}
	return nil
}
