package authz

import (
	"context"
	"log/slog"
	"time"
)

// PropertyResolver maps protected objects onto the property they belong to and
// answers client-ownership questions. Ownership lives in the entity layer, so
// the engine only sees it through this interface.
type PropertyResolver interface {
	// PropertyForObject resolves the owning property of an object-scoped
	// request. For creates the object id is the target property itself; for
	// existing shifts and expenses the row's property is looked up. ok is
	// false when the object cannot be tied to a property.
	PropertyForObject(ctx context.Context, resource ResourceType, action Action, objectID int64) (propertyID int64, ok bool, err error)
	// OwnsProperty reports whether the principal's client profile owns the
	// property.
	OwnsProperty(ctx context.Context, userID, propertyID int64) (bool, error)
	// OwnedPropertyIDs returns every property the principal's client profile
	// owns.
	OwnedPropertyIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Manager is the decision engine. It combines the role store, the resource
// permission store and the property access store into a single ordered rule
// list; first matching rule wins.
type Manager struct {
	roles    RoleStore
	perms    ResourcePermissionStore
	access   PropertyAccessStore
	resolver PropertyResolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(roles RoleStore, perms ResourcePermissionStore, access PropertyAccessStore, resolver PropertyResolver, logger *slog.Logger) *Manager {
	return &Manager{
		roles:    roles,
		perms:    perms,
		access:   access,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// HasPermission answers whether the principal may perform the action on the
// resource, optionally scoped to one object. Rules, in order:
//
//  1. unknown resource type or action: deny (fail-closed, not an error)
//  2. admin role: allow
//  3. object-scoped request on property-scoped data: client ownership of the
//     resolved property allows everything on it; otherwise an active
//     PropertyAccess row for that property fully decides the request and no
//     later rule is consulted
//  4. an applicable, unexpired, unrevoked ResourcePermission allows
//  5. coarse role defaults allow, except that for object-scoped requests on
//     property-scoped data only the manager role passes this way
//  6. deny
func (m *Manager) HasPermission(ctx context.Context, userID int64, resource ResourceType, action Action, objectID *int64) (bool, error) {
	if !resource.Valid() || !action.Valid() {
		m.logger.WarnContext(ctx, "permission check on unknown vocabulary, denying",
			"user_id", userID, "resource_type", string(resource), "action", string(action))
		return false, nil
	}

	role, err := m.roles.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if role == RoleAdmin {
		return true, nil
	}

	objectScoped := objectID != nil && resource.PropertyScoped()

	if objectScoped {
		propertyID, ok, err := m.resolver.PropertyForObject(ctx, resource, action, *objectID)
		if err != nil {
			return false, err
		}
		if ok {
			owns, err := m.resolver.OwnsProperty(ctx, userID, propertyID)
			if err != nil {
				return false, err
			}
			if owns {
				// Ownership beats any conflicting access row on the same property.
				return true, nil
			}
			rec, err := m.access.GetActive(ctx, userID, propertyID)
			if err != nil {
				return false, err
			}
			if rec != nil {
				allowed := rec.Allows(resource, action)
				if !allowed {
					m.logger.InfoContext(ctx, "property access row denies action",
						"user_id", userID, "property_id", propertyID,
						"resource_type", string(resource), "action", string(action),
						"access_type", string(rec.AccessType))
				}
				return allowed, nil
			}
		}
	}

	perm, err := m.perms.FindApplicable(ctx, userID, resource, action, objectID)
	if err != nil {
		return false, err
	}
	if perm != nil && perm.ValidAt(m.now()) {
		return true, nil
	}

	if objectScoped && role != RoleManager {
		return false, nil
	}
	return roleDefaultAllows(role, resource, action), nil
}

// RoleOf returns the principal's active role, RoleUnassigned when none is set.
func (m *Manager) RoleOf(ctx context.Context, userID int64) (Role, error) {
	return m.roles.Get(ctx, userID)
}

// Filterable is implemented by collection items so the engine can decide
// visibility without knowing the entity types.
type Filterable interface {
	// OwningPropertyID returns the id of the property the item belongs to.
	// Properties return their own id.
	OwningPropertyID() (int64, bool)
	// AssignedGuardID returns the principal id of the guard the item is
	// assigned to or was created by, when the item carries one.
	AssignedGuardID() (int64, bool)
}

// FilterCollection returns the subset of items visible to the principal,
// preserving input order. The input slice is never mutated; an empty or nil
// input yields an empty result.
func (m *Manager) FilterCollection(ctx context.Context, userID int64, resource ResourceType, items []Filterable) ([]Filterable, error) {
	keep, all, err := m.visibility(ctx, userID, resource)
	if err != nil {
		return nil, err
	}

	out := make([]Filterable, 0, len(items))
	for _, item := range items {
		if all || keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Filter is the typed convenience form of Manager.FilterCollection for
// homogeneous slices.
func Filter[T Filterable](ctx context.Context, m *Manager, userID int64, resource ResourceType, items []T) ([]T, error) {
	keep, all, err := m.visibility(ctx, userID, resource)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if all || keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// visibility builds the retention predicate for one (principal, resource)
// pair. admin and manager see everything; guards see their own items plus
// data on properties they can access; clients see data on properties they
// own; everyone else sees data on properties they hold access rows for.
func (m *Manager) visibility(ctx context.Context, userID int64, resource ResourceType) (func(Filterable) bool, bool, error) {
	none := func(Filterable) bool { return false }

	if !resource.Valid() {
		m.logger.WarnContext(ctx, "collection filter on unknown resource type, returning empty",
			"user_id", userID, "resource_type", string(resource))
		return none, false, nil
	}

	role, err := m.roles.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	switch role {
	case RoleAdmin, RoleManager:
		return nil, true, nil

	case RoleGuard:
		accessible, err := m.accessibleSet(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return func(item Filterable) bool {
			if guardID, ok := item.AssignedGuardID(); ok {
				return guardID == userID
			}
			if propertyID, ok := item.OwningPropertyID(); ok {
				return accessible[propertyID]
			}
			return false
		}, false, nil

	case RoleClient:
		ids, err := m.resolver.OwnedPropertyIDs(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		owned := make(map[int64]bool, len(ids))
		for _, id := range ids {
			owned[id] = true
		}
		return func(item Filterable) bool {
			propertyID, ok := item.OwningPropertyID()
			return ok && owned[propertyID]
		}, false, nil

	default:
		accessible, err := m.accessibleSet(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return func(item Filterable) bool {
			propertyID, ok := item.OwningPropertyID()
			return ok && accessible[propertyID]
		}, false, nil
	}
}

func (m *Manager) accessibleSet(ctx context.Context, userID int64) (map[int64]bool, error) {
	ids, err := m.access.ListAccessiblePropertyIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
