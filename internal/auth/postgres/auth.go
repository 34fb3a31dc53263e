package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/guardhq/workforce-management/internal/auth"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetCredentialsByEmail(ctx context.Context, email string) (int64, string, bool, error) {
	var row struct {
		ID           int64
		PasswordHash string
		IsActive     bool
	}
	err := r.db.WithContext(ctx).
		Table("users").
		Select("id, password_hash, is_active").
		Where("email = ?", email).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, "", false, auth.ErrInvalidCredentials
	}
	if err != nil {
		return 0, "", false, err
	}
	return row.ID, row.PasswordHash, row.IsActive, nil
}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*auth.User, error) {
	var user auth.User
	err := r.db.WithContext(ctx).
		Table("users").
		Select("id, email, name, is_active").
		Where("id = ?", userID).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserExists reports whether an active user with the given id exists. It
// backs grant-target validation in the permission service.
func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("users").
		Where("id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUserIDs returns the ids of all active users, ordered for stable
// listings. It backs the per-user permission overview.
func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Table("users").
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
