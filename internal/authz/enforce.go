package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/guardhq/workforce-management/internal"
)

// ErrPermissionDenied is the expected, common-path rejection: a failed check
// is a plain outcome, not an exceptional condition.
var ErrPermissionDenied = errors.New("permission denied")

// ObjectIDExtractor pulls the object id a protected operation targets out of
// the request. A nil extractor means the operation is not object-scoped.
type ObjectIDExtractor func(r *http.Request) (*int64, error)

// PathID extracts an int64 object id from a chi URL parameter.
func PathID(param string) ObjectIDExtractor {
	return func(r *http.Request) (*int64, error) {
		raw := chi.URLParam(r, param)
		if raw == "" {
			return nil, nil
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, internal.NewValidationError("invalid object id", internal.ErrCodeValidationFailed)
		}
		return &id, nil
	}
}

// Enforcer wraps protected operations with a strict pre-condition check: the
// wrapped handler never runs, and so never has side effects, unless the
// permission check passed first.
type Enforcer struct {
	manager *Manager
	logger  *slog.Logger
}

func NewEnforcer(manager *Manager, logger *slog.Logger) *Enforcer {
	return &Enforcer{manager: manager, logger: logger}
}

// Authorize is the non-HTTP form of the pre-condition: it returns
// ErrPermissionDenied on a failed check so call sites can decide how to
// surface the rejection.
func (e *Enforcer) Authorize(ctx context.Context, principalID int64, resource ResourceType, action Action, objectID *int64) error {
	allowed, err := e.manager.HasPermission(ctx, principalID, resource, action, objectID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}
	return nil
}

// Require builds middleware that authorizes (resource, action) for the
// request's principal before the wrapped handler runs. extract may be nil for
// operations that are not object-scoped.
func (e *Enforcer) Require(resource ResourceType, action Action, extract ObjectIDExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok || principal == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var objectID *int64
			if extract != nil {
				var err error
				objectID, err = extract(r)
				if err != nil {
					http.Error(w, "invalid object id", http.StatusBadRequest)
					return
				}
			}

			err := e.Authorize(r.Context(), principal.ID, resource, action, objectID)
			if errors.Is(err, ErrPermissionDenied) {
				e.logger.WarnContext(r.Context(), "access denied",
					"user_id", principal.ID,
					"resource_type", string(resource),
					"action", string(action))
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			if err != nil {
				e.logger.ErrorContext(r.Context(), "authorization check failed", "error", err,
					"user_id", principal.ID,
					"resource_type", string(resource),
					"action", string(action))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole builds middleware that admits only principals holding one of
// the given roles. Used for the admin surface, where the role itself is the
// authorization.
func (e *Enforcer) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok || principal == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			role, err := e.manager.RoleOf(r.Context(), principal.ID)
			if err != nil {
				e.logger.ErrorContext(r.Context(), "role lookup failed", "error", err, "user_id", principal.ID)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			e.logger.WarnContext(r.Context(), "access denied: role not permitted",
				"user_id", principal.ID, "role", string(role))
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		})
	}
}

// RequireAdmin guards administrator-only surfaces.
func (e *Enforcer) RequireAdmin() func(http.Handler) http.Handler {
	return e.RequireRole(RoleAdmin)
}
