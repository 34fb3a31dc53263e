package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/guardhq/workforce-management/internal"
	"github.com/guardhq/workforce-management/internal/authz"
)

// Row models carry the gorm mapping so the domain types stay free of
// persistence tags.

type userRoleRow struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;index;not null"`
	Role      string    `gorm:"column:role;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (userRoleRow) TableName() string { return "user_roles" }

type resourcePermissionRow struct {
	ID           int64      `gorm:"primaryKey"`
	UserID       int64      `gorm:"column:user_id;index:idx_perm_lookup,priority:1;not null"`
	ResourceType string     `gorm:"column:resource_type;index:idx_perm_lookup,priority:2;not null"`
	Action       string     `gorm:"column:action;index:idx_perm_lookup,priority:3;not null"`
	ObjectID     *int64     `gorm:"column:object_id"`
	GrantedBy    int64      `gorm:"column:granted_by;not null"`
	GrantedAt    time.Time  `gorm:"column:granted_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	RevokedAt    *time.Time `gorm:"column:revoked_at"`
	Reason       string     `gorm:"column:reason"`
}

func (resourcePermissionRow) TableName() string { return "resource_permissions" }

type propertyAccessRow struct {
	ID                 int64      `gorm:"primaryKey"`
	UserID             int64      `gorm:"column:user_id;index:idx_access_pair,priority:1;uniqueIndex:idx_access_one_active,priority:1,where:revoked_at IS NULL;not null"`
	PropertyID         int64      `gorm:"column:property_id;index:idx_access_pair,priority:2;uniqueIndex:idx_access_one_active,priority:2,where:revoked_at IS NULL;not null"`
	AccessType         string     `gorm:"column:access_type;not null"`
	CanCreateShifts    bool       `gorm:"column:can_create_shifts;not null;default:false"`
	CanEditShifts      bool       `gorm:"column:can_edit_shifts;not null;default:false"`
	CanCreateExpenses  bool       `gorm:"column:can_create_expenses;not null;default:false"`
	CanEditExpenses    bool       `gorm:"column:can_edit_expenses;not null;default:false"`
	CanApproveExpenses bool       `gorm:"column:can_approve_expenses;not null;default:false"`
	GrantedBy          int64      `gorm:"column:granted_by;not null"`
	GrantedAt          time.Time  `gorm:"column:granted_at"`
	RevokedAt          *time.Time `gorm:"column:revoked_at"`
	Reason             string     `gorm:"column:reason"`
}

func (propertyAccessRow) TableName() string { return "property_accesses" }

type auditLogRow struct {
	ID             int64          `gorm:"primaryKey"`
	ActorID        int64          `gorm:"column:actor_id;index;not null"`
	Action         string         `gorm:"column:action;not null"`
	TargetUserID   int64          `gorm:"column:target_user_id;index;not null"`
	PermissionKind string         `gorm:"column:permission_kind;not null"`
	BeforeState    datatypes.JSON `gorm:"column:before_state"`
	AfterState     datatypes.JSON `gorm:"column:after_state"`
	Reason         string         `gorm:"column:reason"`
	CreatedAt      time.Time      `gorm:"column:created_at;index"`
}

func (auditLogRow) TableName() string { return "permission_audit_logs" }

// Migrate creates the engine's tables; used by sqlite-backed tests. Real
// deployments run the goose migrations instead.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRoleRow{}, &resourcePermissionRow{}, &propertyAccessRow{}, &auditLogRow{})
}

// NewStores binds all four stores to one gorm handle, which may be a
// transaction.
func NewStores(db *gorm.DB) authz.Stores {
	return authz.Stores{
		Roles:  &RoleRepository{db: db},
		Perms:  &ResourcePermissionRepository{db: db},
		Access: &PropertyAccessRepository{db: db},
		Audit:  &AuditRepository{db: db},
	}
}

// TxRunner executes a function against stores bound to a single database
// transaction, so a state change and its audit entry commit together.
type TxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (t *TxRunner) InTx(ctx context.Context, fn func(authz.Stores) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStores(tx))
	})
}

// --- roles ---

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Get(ctx context.Context, userID int64) (authz.Role, error) {
	var row userRoleRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return authz.RoleUnassigned, nil
		}
		return authz.RoleUnassigned, err
	}
	return authz.Role(row.Role), nil
}

func (r *RoleRepository) Assign(ctx context.Context, userID int64, role authz.Role) (authz.Role, error) {
	previous, err := r.Get(ctx, userID)
	if err != nil {
		return authz.RoleUnassigned, err
	}

	err = r.db.WithContext(ctx).Model(&userRoleRow{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error
	if err != nil {
		return authz.RoleUnassigned, err
	}

	row := userRoleRow{
		UserID:   userID,
		Role:     string(role),
		IsActive: true,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return authz.RoleUnassigned, err
	}
	return previous, nil
}

// --- resource permissions ---

type ResourcePermissionRepository struct {
	db *gorm.DB
}

func NewResourcePermissionRepository(db *gorm.DB) *ResourcePermissionRepository {
	return &ResourcePermissionRepository{db: db}
}

func (r *ResourcePermissionRepository) Create(ctx context.Context, perm *authz.ResourcePermission) error {
	row := permToRow(perm)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	perm.ID = row.ID
	return nil
}

func (r *ResourcePermissionRepository) GetByID(ctx context.Context, id int64) (*authz.ResourcePermission, error) {
	var row resourcePermissionRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return permFromRow(&row), nil
}

func (r *ResourcePermissionRepository) MarkRevoked(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&resourcePermissionRow{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
}

func (r *ResourcePermissionRepository) ListActive(ctx context.Context, userID int64) ([]*authz.ResourcePermission, error) {
	var rows []resourcePermissionRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Order("granted_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	perms := make([]*authz.ResourcePermission, len(rows))
	for i := range rows {
		perms[i] = permFromRow(&rows[i])
	}
	return perms, nil
}

func (r *ResourcePermissionRepository) FindApplicable(ctx context.Context, userID int64, resource authz.ResourceType, action authz.Action, objectID *int64) (*authz.ResourcePermission, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND resource_type = ? AND action = ? AND revoked_at IS NULL",
			userID, string(resource), string(action)).
		Where("expires_at IS NULL OR expires_at > ?", time.Now())

	if objectID != nil {
		q = q.Where("object_id = ? OR object_id IS NULL", *objectID)
	} else {
		q = q.Where("object_id IS NULL")
	}

	var rows []resourcePermissionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// An object-scoped grant beats a wildcard when both match.
	var wildcard *resourcePermissionRow
	for i := range rows {
		if rows[i].ObjectID != nil {
			return permFromRow(&rows[i]), nil
		}
		if wildcard == nil {
			wildcard = &rows[i]
		}
	}
	return permFromRow(wildcard), nil
}

func permToRow(p *authz.ResourcePermission) *resourcePermissionRow {
	return &resourcePermissionRow{
		ID:           p.ID,
		UserID:       p.UserID,
		ResourceType: string(p.ResourceType),
		Action:       string(p.Action),
		ObjectID:     p.ObjectID,
		GrantedBy:    p.GrantedBy,
		GrantedAt:    p.GrantedAt,
		ExpiresAt:    p.ExpiresAt,
		RevokedAt:    p.RevokedAt,
		Reason:       p.Reason,
	}
}

func permFromRow(row *resourcePermissionRow) *authz.ResourcePermission {
	return &authz.ResourcePermission{
		ID:           row.ID,
		UserID:       row.UserID,
		ResourceType: authz.ResourceType(row.ResourceType),
		Action:       authz.Action(row.Action),
		ObjectID:     row.ObjectID,
		GrantedBy:    row.GrantedBy,
		GrantedAt:    row.GrantedAt,
		ExpiresAt:    row.ExpiresAt,
		RevokedAt:    row.RevokedAt,
		Reason:       row.Reason,
	}
}

// --- property access ---

type PropertyAccessRepository struct {
	db *gorm.DB
}

func NewPropertyAccessRepository(db *gorm.DB) *PropertyAccessRepository {
	return &PropertyAccessRepository{db: db}
}

func (r *PropertyAccessRepository) Create(ctx context.Context, access *authz.PropertyAccess) error {
	row := accessToRow(access)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		// A concurrent grant that slipped past the row lock trips the
		// one-active-row unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.NewConflictError("an active property access already exists for this user and property", internal.ErrCodeDuplicateAccess)
		}
		return err
	}
	access.ID = row.ID
	return nil
}

func (r *PropertyAccessRepository) GetByID(ctx context.Context, id int64) (*authz.PropertyAccess, error) {
	var row propertyAccessRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return accessFromRow(&row), nil
}

func (r *PropertyAccessRepository) GetActive(ctx context.Context, userID, propertyID int64) (*authz.PropertyAccess, error) {
	return r.getActive(r.db.WithContext(ctx), userID, propertyID)
}

func (r *PropertyAccessRepository) GetActiveForUpdate(ctx context.Context, userID, propertyID int64) (*authz.PropertyAccess, error) {
	locked := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.getActive(locked, userID, propertyID)
}

func (r *PropertyAccessRepository) getActive(db *gorm.DB, userID, propertyID int64) (*authz.PropertyAccess, error) {
	var row propertyAccessRow
	err := db.Where("user_id = ? AND property_id = ? AND revoked_at IS NULL", userID, propertyID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return accessFromRow(&row), nil
}

func (r *PropertyAccessRepository) MarkRevoked(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&propertyAccessRow{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
}

func (r *PropertyAccessRepository) ListActive(ctx context.Context, userID int64) ([]*authz.PropertyAccess, error) {
	var rows []propertyAccessRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Order("granted_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	access := make([]*authz.PropertyAccess, len(rows))
	for i := range rows {
		access[i] = accessFromRow(&rows[i])
	}
	return access, nil
}

func (r *PropertyAccessRepository) ListAccessiblePropertyIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&propertyAccessRow{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Pluck("property_id", &ids).Error
	return ids, err
}

func accessToRow(a *authz.PropertyAccess) *propertyAccessRow {
	return &propertyAccessRow{
		ID:                 a.ID,
		UserID:             a.UserID,
		PropertyID:         a.PropertyID,
		AccessType:         string(a.AccessType),
		CanCreateShifts:    a.Flags.CanCreateShifts,
		CanEditShifts:      a.Flags.CanEditShifts,
		CanCreateExpenses:  a.Flags.CanCreateExpenses,
		CanEditExpenses:    a.Flags.CanEditExpenses,
		CanApproveExpenses: a.Flags.CanApproveExpenses,
		GrantedBy:          a.GrantedBy,
		GrantedAt:          a.GrantedAt,
		RevokedAt:          a.RevokedAt,
		Reason:             a.Reason,
	}
}

func accessFromRow(row *propertyAccessRow) *authz.PropertyAccess {
	return &authz.PropertyAccess{
		ID:         row.ID,
		UserID:     row.UserID,
		PropertyID: row.PropertyID,
		AccessType: authz.AccessType(row.AccessType),
		Flags: authz.CapabilityFlags{
			CanCreateShifts:    row.CanCreateShifts,
			CanEditShifts:      row.CanEditShifts,
			CanCreateExpenses:  row.CanCreateExpenses,
			CanEditExpenses:    row.CanEditExpenses,
			CanApproveExpenses: row.CanApproveExpenses,
		},
		GrantedBy: row.GrantedBy,
		GrantedAt: row.GrantedAt,
		RevokedAt: row.RevokedAt,
		Reason:    row.Reason,
	}
}

// --- audit log ---

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *authz.AuditEntry) error {
	row := auditLogRow{
		ActorID:        entry.ActorID,
		Action:         string(entry.Action),
		TargetUserID:   entry.TargetUserID,
		PermissionKind: string(entry.PermissionKind),
		BeforeState:    entry.BeforeState,
		AfterState:     entry.AfterState,
		Reason:         entry.Reason,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt
	return nil
}

func (r *AuditRepository) List(ctx context.Context, filter authz.AuditFilter) ([]*authz.AuditEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&auditLogRow{})
	if filter.TargetUserID != 0 {
		q = q.Where("target_user_id = ?", filter.TargetUserID)
	}
	if filter.PermissionKind != "" {
		q = q.Where("permission_kind = ?", string(filter.PermissionKind))
	}
	if filter.Action != "" {
		q = q.Where("action = ?", string(filter.Action))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 100
	}

	var rows []auditLogRow
	err := q.Order("created_at DESC, id DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]*authz.AuditEntry, len(rows))
	for i := range rows {
		entries[i] = &authz.AuditEntry{
			ID:             rows[i].ID,
			ActorID:        rows[i].ActorID,
			Action:         authz.AuditAction(rows[i].Action),
			TargetUserID:   rows[i].TargetUserID,
			PermissionKind: authz.PermissionKind(rows[i].PermissionKind),
			BeforeState:    rows[i].BeforeState,
			AfterState:     rows[i].AfterState,
			Reason:         rows[i].Reason,
			CreatedAt:      rows[i].CreatedAt,
		}
	}
	return entries, total, nil
}
