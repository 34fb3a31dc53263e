package authz

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/guardhq/workforce-management/internal"
	"github.com/guardhq/workforce-management/internal/transport"
)

// Handler exposes the administrative permission-management surface. Routes
// are mounted behind Enforcer.RequireAdmin, so every request here already
// carries an admin principal.
type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(nil),
		Service:     svc,
	}
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var dto AssignRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.Service.AssignRole(r.Context(), actor.ID, dto.UserID, Role(dto.Role), dto.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": dto.UserID,
		"role":    dto.Role,
	})
}

func (h *Handler) GrantResourcePermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var dto GrantResourcePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.writeServiceError(w, err)
		return
	}

	perm, err := h.Service.GrantResourcePermission(r.Context(), actor.ID, dto.UserID,
		ResourceType(dto.ResourceType), Action(dto.Action), dto.ObjectID, dto.ExpiresAt, dto.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, perm)
}

func (h *Handler) RevokeResourcePermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid permission id")
		return
	}

	var dto RevokeDTO
	if r.Body != nil {
		// The reason is optional; an empty or absent body is fine.
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	if err := h.Service.RevokeResourcePermission(r.Context(), actor.ID, id, dto.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GrantPropertyAccess(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var dto GrantPropertyAccessDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.writeServiceError(w, err)
		return
	}

	access, err := h.Service.GrantPropertyAccess(r.Context(), actor.ID, dto.UserID,
		dto.PropertyID, AccessType(dto.AccessType), dto.Flags, dto.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, access)
}

func (h *Handler) RevokePropertyAccess(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid access id")
		return
	}

	var dto RevokeDTO
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	if err := h.Service.RevokePropertyAccess(r.Context(), actor.ID, id, dto.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := AuditFilter{
		PermissionKind: PermissionKind(q.Get("kind")),
		Action:         AuditAction(q.Get("action")),
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid user_id filter")
			return
		}
		filter.TargetUserID = id
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	page, err := h.Service.AuditLog(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var dto BulkUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.BulkUpdate(r.Context(), actor.ID, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) UsersWithPermissions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Service.UsersWithPermissions(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summaries)
}

func (h *Handler) AvailableOptions(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.AvailableOptions())
}

func (h *Handler) UserPermissionSummary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	summary, err := h.Service.UserPermissionSummary(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

// RegisterRoutes mounts the admin surface on the router, guarded by the
// enforcer so only admin principals reach the handlers.
func (h *Handler) RegisterRoutes(r chi.Router, enforcer *Enforcer) {
	r.Group(func(ar chi.Router) {
		ar.Use(enforcer.RequireAdmin())

		ar.Post("/roles", h.AssignRole)
		ar.Post("/resource-permissions", h.GrantResourcePermission)
		ar.Post("/resource-permissions/{id}/revoke", h.RevokeResourcePermission)
		ar.Post("/property-access", h.GrantPropertyAccess)
		ar.Post("/property-access/{id}/revoke", h.RevokePropertyAccess)
		ar.Post("/bulk", h.BulkUpdate)
		ar.Get("/audit-log", h.AuditLog)
		ar.Get("/options", h.AvailableOptions)
		ar.Get("/users", h.UsersWithPermissions)
		ar.Get("/users/{id}/summary", h.UserPermissionSummary)
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	h.Logger.Error("admin permission operation failed", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
