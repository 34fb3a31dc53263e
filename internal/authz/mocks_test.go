package authz_test

import (
	"context"
	"sort"
	"time"

	"github.com/guardhq/workforce-management/internal/authz"
)

// In-memory stores backing the engine and service specs.

type mockRoleStore struct {
	roles    map[int64]authz.Role
	getError error
}

func newMockRoleStore() *mockRoleStore {
	return &mockRoleStore{roles: make(map[int64]authz.Role)}
}

func (m *mockRoleStore) Get(_ context.Context, userID int64) (authz.Role, error) {
	if m.getError != nil {
		return authz.RoleUnassigned, m.getError
	}
	role, ok := m.roles[userID]
	if !ok {
		return authz.RoleUnassigned, nil
	}
	return role, nil
}

func (m *mockRoleStore) Assign(_ context.Context, userID int64, role authz.Role) (authz.Role, error) {
	previous, ok := m.roles[userID]
	if !ok {
		previous = authz.RoleUnassigned
	}
	m.roles[userID] = role
	return previous, nil
}

type mockPermStore struct {
	perms       []*authz.ResourcePermission
	nextID      int64
	createError error
}

func newMockPermStore() *mockPermStore {
	return &mockPermStore{nextID: 1}
}

func (m *mockPermStore) Create(_ context.Context, perm *authz.ResourcePermission) error {
	if m.createError != nil {
		return m.createError
	}
	perm.ID = m.nextID
	m.nextID++
	copied := *perm
	m.perms = append(m.perms, &copied)
	return nil
}

func (m *mockPermStore) GetByID(_ context.Context, id int64) (*authz.ResourcePermission, error) {
	for _, p := range m.perms {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockPermStore) MarkRevoked(_ context.Context, id int64, at time.Time) error {
	for _, p := range m.perms {
		if p.ID == id && p.RevokedAt == nil {
			stamped := at
			p.RevokedAt = &stamped
		}
	}
	return nil
}

func (m *mockPermStore) ListActive(_ context.Context, userID int64) ([]*authz.ResourcePermission, error) {
	var out []*authz.ResourcePermission
	now := time.Now()
	for _, p := range m.perms {
		if p.UserID == userID && p.ValidAt(now) {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockPermStore) FindApplicable(_ context.Context, userID int64, resource authz.ResourceType, action authz.Action, objectID *int64) (*authz.ResourcePermission, error) {
	var wildcard *authz.ResourcePermission
	now := time.Now()
	for _, p := range m.perms {
		if p.UserID != userID || p.ResourceType != resource || p.Action != action || !p.ValidAt(now) {
			continue
		}
		if p.ObjectID == nil {
			if wildcard == nil {
				wildcard = p
			}
			continue
		}
		if objectID != nil && *p.ObjectID == *objectID {
			copied := *p
			return &copied, nil
		}
	}
	if wildcard != nil {
		copied := *wildcard
		return &copied, nil
	}
	return nil, nil
}

type mockAccessStore struct {
	access      []*authz.PropertyAccess
	nextID      int64
	createError error
}

func newMockAccessStore() *mockAccessStore {
	return &mockAccessStore{nextID: 1}
}

func (m *mockAccessStore) Create(_ context.Context, access *authz.PropertyAccess) error {
	if m.createError != nil {
		return m.createError
	}
	access.ID = m.nextID
	m.nextID++
	copied := *access
	m.access = append(m.access, &copied)
	return nil
}

func (m *mockAccessStore) GetByID(_ context.Context, id int64) (*authz.PropertyAccess, error) {
	for _, a := range m.access {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockAccessStore) GetActive(_ context.Context, userID, propertyID int64) (*authz.PropertyAccess, error) {
	for _, a := range m.access {
		if a.UserID == userID && a.PropertyID == propertyID && !a.Revoked() {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockAccessStore) GetActiveForUpdate(ctx context.Context, userID, propertyID int64) (*authz.PropertyAccess, error) {
	return m.GetActive(ctx, userID, propertyID)
}

func (m *mockAccessStore) MarkRevoked(_ context.Context, id int64, at time.Time) error {
	for _, a := range m.access {
		if a.ID == id && a.RevokedAt == nil {
			stamped := at
			a.RevokedAt = &stamped
		}
	}
	return nil
}

func (m *mockAccessStore) ListActive(_ context.Context, userID int64) ([]*authz.PropertyAccess, error) {
	var out []*authz.PropertyAccess
	for _, a := range m.access {
		if a.UserID == userID && !a.Revoked() {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockAccessStore) ListAccessiblePropertyIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for _, a := range m.access {
		if a.UserID == userID && !a.Revoked() {
			ids = append(ids, a.PropertyID)
		}
	}
	return ids, nil
}

type mockAuditStore struct {
	entries     []*authz.AuditEntry
	nextID      int64
	appendError error
}

func newMockAuditStore() *mockAuditStore {
	return &mockAuditStore{nextID: 1}
}

func (m *mockAuditStore) Append(_ context.Context, entry *authz.AuditEntry) error {
	if m.appendError != nil {
		return m.appendError
	}
	entry.ID = m.nextID
	m.nextID++
	entry.CreatedAt = time.Now()
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *mockAuditStore) List(_ context.Context, filter authz.AuditFilter) ([]*authz.AuditEntry, int64, error) {
	var out []*authz.AuditEntry
	for _, e := range m.entries {
		if filter.TargetUserID != 0 && e.TargetUserID != filter.TargetUserID {
			continue
		}
		if filter.PermissionKind != "" && e.PermissionKind != filter.PermissionKind {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

// mockTxRunner runs the function against the same stores and rolls the
// in-memory state back when it fails, imitating a database transaction.
type mockTxRunner struct {
	stores authz.Stores
	perms  *mockPermStore
	access *mockAccessStore
	audit  *mockAuditStore
	roles  *mockRoleStore
	calls  int
}

func newMockTxRunner(roles *mockRoleStore, perms *mockPermStore, access *mockAccessStore, audit *mockAuditStore) *mockTxRunner {
	return &mockTxRunner{
		stores: authz.Stores{Roles: roles, Perms: perms, Access: access, Audit: audit},
		perms:  perms,
		access: access,
		audit:  audit,
		roles:  roles,
	}
}

func (m *mockTxRunner) InTx(_ context.Context, fn func(authz.Stores) error) error {
	m.calls++

	permsBefore := snapshotPerms(m.perms.perms)
	accessBefore := snapshotAccess(m.access.access)
	auditBefore := snapshotAudit(m.audit.entries)
	rolesBefore := make(map[int64]authz.Role, len(m.roles.roles))
	for k, v := range m.roles.roles {
		rolesBefore[k] = v
	}

	if err := fn(m.stores); err != nil {
		m.perms.perms = permsBefore
		m.access.access = accessBefore
		m.audit.entries = auditBefore
		m.roles.roles = rolesBefore
		return err
	}
	return nil
}

func snapshotPerms(in []*authz.ResourcePermission) []*authz.ResourcePermission {
	out := make([]*authz.ResourcePermission, len(in))
	for i, p := range in {
		copied := *p
		out[i] = &copied
	}
	return out
}

func snapshotAccess(in []*authz.PropertyAccess) []*authz.PropertyAccess {
	out := make([]*authz.PropertyAccess, len(in))
	for i, a := range in {
		copied := *a
		out[i] = &copied
	}
	return out
}

func snapshotAudit(in []*authz.AuditEntry) []*authz.AuditEntry {
	out := make([]*authz.AuditEntry, len(in))
	for i, e := range in {
		copied := *e
		out[i] = &copied
	}
	return out
}

// mockResolver maps objects to properties and answers ownership from plain
// maps. properties maps property id to owning client id.
type mockResolver struct {
	properties   map[int64]int64
	shiftProps   map[int64]int64
	expenseProps map[int64]int64
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		properties:   make(map[int64]int64),
		shiftProps:   make(map[int64]int64),
		expenseProps: make(map[int64]int64),
	}
}

func (m *mockResolver) PropertyForObject(_ context.Context, resource authz.ResourceType, action authz.Action, objectID int64) (int64, bool, error) {
	switch resource {
	case authz.ResourceProperty:
		_, ok := m.properties[objectID]
		return objectID, ok, nil
	case authz.ResourceShift:
		if action == authz.ActionCreate {
			_, ok := m.properties[objectID]
			return objectID, ok, nil
		}
		id, ok := m.shiftProps[objectID]
		return id, ok, nil
	case authz.ResourceExpense:
		if action == authz.ActionCreate {
			_, ok := m.properties[objectID]
			return objectID, ok, nil
		}
		id, ok := m.expenseProps[objectID]
		return id, ok, nil
	}
	return 0, false, nil
}

func (m *mockResolver) OwnsProperty(_ context.Context, userID, propertyID int64) (bool, error) {
	return m.properties[propertyID] == userID, nil
}

func (m *mockResolver) OwnedPropertyIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for id, owner := range m.properties {
		if owner == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockResolver) PropertyExists(_ context.Context, propertyID int64) (bool, error) {
	_, ok := m.properties[propertyID]
	return ok, nil
}

type mockUserDirectory struct {
	users map[int64]bool
}

func newMockUserDirectory(ids ...int64) *mockUserDirectory {
	users := make(map[int64]bool, len(ids))
	for _, id := range ids {
		users[id] = true
	}
	return &mockUserDirectory{users: users}
}

func (m *mockUserDirectory) UserExists(_ context.Context, userID int64) (bool, error) {
	return m.users[userID], nil
}

func (m *mockUserDirectory) ListUserIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.users))
	for id, present := range m.users {
		if present {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
