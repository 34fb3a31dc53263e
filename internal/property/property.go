package property

import (
	"context"
	"log/slog"

	"github.com/guardhq/workforce-management/internal/authz"
)

// Repository is the entity-layer lookup surface the resolver needs. Full
// property CRUD lives outside this service.
type Repository interface {
	Exists(ctx context.Context, id int64) (bool, error)
	OwnerOf(ctx context.Context, id int64) (ownerID int64, found bool, err error)
	IDsOwnedBy(ctx context.Context, ownerID int64) ([]int64, error)
	PropertyIDOfShift(ctx context.Context, shiftID int64) (propertyID int64, found bool, err error)
	PropertyIDOfExpense(ctx context.Context, expenseID int64) (propertyID int64, found bool, err error)
}

// Resolver ties protected objects back to the property they belong to. It is
// the authorization engine's window into the entity layer: authz.Manager uses
// it to route object-scoped checks through property access, and authz.Service
// uses it to validate grant targets.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// PropertyForObject maps (resource, action, objectID) to the owning property.
// Creates target the property directly, so the object id is taken as a
// property id; for existing shifts and expenses the row is looked up.
func (r *Resolver) PropertyForObject(ctx context.Context, resource authz.ResourceType, action authz.Action, objectID int64) (int64, bool, error) {
	switch resource {
	case authz.ResourceProperty:
		exists, err := r.repo.Exists(ctx, objectID)
		if err != nil || !exists {
			return 0, false, err
		}
		return objectID, true, nil

	case authz.ResourceShift:
		if action == authz.ActionCreate {
			return r.propertyIfExists(ctx, objectID)
		}
		id, found, err := r.repo.PropertyIDOfShift(ctx, objectID)
		return id, found, err

	case authz.ResourceExpense:
		if action == authz.ActionCreate {
			return r.propertyIfExists(ctx, objectID)
		}
		id, found, err := r.repo.PropertyIDOfExpense(ctx, objectID)
		return id, found, err
	}

	return 0, false, nil
}

func (r *Resolver) propertyIfExists(ctx context.Context, propertyID int64) (int64, bool, error) {
	exists, err := r.repo.Exists(ctx, propertyID)
	if err != nil || !exists {
		return 0, false, err
	}
	return propertyID, true, nil
}

// OwnsProperty reports whether the principal owns the property through the
// client ownership relation.
func (r *Resolver) OwnsProperty(ctx context.Context, userID, propertyID int64) (bool, error) {
	ownerID, found, err := r.repo.OwnerOf(ctx, propertyID)
	if err != nil || !found {
		return false, err
	}
	return ownerID == userID, nil
}

// OwnedPropertyIDs returns every property the principal owns.
func (r *Resolver) OwnedPropertyIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.repo.IDsOwnedBy(ctx, userID)
}

// PropertyExists satisfies the grant-target validation contract.
func (r *Resolver) PropertyExists(ctx context.Context, propertyID int64) (bool, error) {
	return r.repo.Exists(ctx, propertyID)
}
