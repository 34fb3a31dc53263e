package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/guardhq/workforce-management/internal/property"
)

type propertyRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) property.Repository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("properties").
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *propertyRepository) OwnerOf(ctx context.Context, id int64) (int64, bool, error) {
	var row struct {
		OwnerID int64
	}
	err := r.db.WithContext(ctx).
		Table("properties").
		Select("owner_id").
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.OwnerID, true, nil
}

func (r *propertyRepository) IDsOwnedBy(ctx context.Context, ownerID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Table("properties").
		Where("owner_id = ?", ownerID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *propertyRepository) PropertyIDOfShift(ctx context.Context, shiftID int64) (int64, bool, error) {
	return r.propertyIDOf(ctx, "shifts", shiftID)
}

func (r *propertyRepository) PropertyIDOfExpense(ctx context.Context, expenseID int64) (int64, bool, error) {
	return r.propertyIDOf(ctx, "expenses", expenseID)
}

func (r *propertyRepository) propertyIDOf(ctx context.Context, table string, id int64) (int64, bool, error) {
	var row struct {
		PropertyID int64
	}
	err := r.db.WithContext(ctx).
		Table(table).
		Select("property_id").
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.PropertyID, true, nil
}
