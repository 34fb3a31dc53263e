package authz_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/guardhq/workforce-management/internal"
	"github.com/guardhq/workforce-management/internal/authz"
)

var _ = Describe("Enforcer", func() {
	var (
		roles    *mockRoleStore
		access   *mockAccessStore
		resolver *mockResolver
		enforcer *authz.Enforcer
		handled  bool
	)

	principal := func(id int64) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := internal.ContextWithPrincipal(r.Context(), &internal.Principal{ID: id, Email: "user@guardhq.dev"})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		}
	}

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
		w.WriteHeader(http.StatusOK)
	})

	BeforeEach(func() {
		handled = false
		roles = newMockRoleStore()
		access = newMockAccessStore()
		resolver = newMockResolver()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		manager := authz.NewManager(roles, newMockPermStore(), access, resolver, logger)
		enforcer = authz.NewEnforcer(manager, logger)
	})

	Describe("Require", func() {
		It("rejects requests without a principal", func() {
			router := chi.NewRouter()
			router.With(enforcer.Require(authz.ResourceShift, authz.ActionRead, nil)).
				Get("/shifts", okHandler)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shifts", nil))

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(handled).To(BeFalse())
		})

		It("rejects a denied principal with 403 before the handler runs", func() {
			roles.roles[4] = authz.RoleGuard

			router := chi.NewRouter()
			router.Use(principal(4))
			router.With(enforcer.Require(authz.ResourceExpense, authz.ActionApprove, nil)).
				Post("/expenses/approve", okHandler)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses/approve", nil))

			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(handled).To(BeFalse())
		})

		It("admits an allowed principal", func() {
			roles.roles[2] = authz.RoleManager

			router := chi.NewRouter()
			router.Use(principal(2))
			router.With(enforcer.Require(authz.ResourceExpense, authz.ActionApprove, nil)).
				Post("/expenses/approve", okHandler)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses/approve", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(handled).To(BeTrue())
		})

		It("extracts object ids from the path and scopes the check", func() {
			roles.roles[4] = authz.RoleGuard
			resolver.properties[7] = 30
			resolver.shiftProps[55] = 7
			access.access = append(access.access, &authz.PropertyAccess{
				ID: 1, UserID: 4, PropertyID: 7, AccessType: authz.AccessAssignedGuard,
				Flags:     authz.CapabilityFlags{CanEditShifts: true},
				GrantedBy: 1, GrantedAt: time.Now(),
			})

			router := chi.NewRouter()
			router.Use(principal(4))
			router.With(enforcer.Require(authz.ResourceShift, authz.ActionUpdate, authz.PathID("id"))).
				Patch("/shifts/{id}", okHandler)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/shifts/55", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("rejects malformed object ids with 400", func() {
			roles.roles[4] = authz.RoleGuard

			router := chi.NewRouter()
			router.Use(principal(4))
			router.With(enforcer.Require(authz.ResourceShift, authz.ActionUpdate, authz.PathID("id"))).
				Patch("/shifts/{id}", okHandler)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/shifts/not-a-number", nil))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(handled).To(BeFalse())
		})
	})

	Describe("RequireAdmin", func() {
		It("admits admins and rejects everyone else", func() {
			roles.roles[1] = authz.RoleAdmin
			roles.roles[2] = authz.RoleManager

			build := func(id int64) *httptest.ResponseRecorder {
				router := chi.NewRouter()
				router.Use(principal(id))
				router.With(enforcer.RequireAdmin()).Get("/admin", okHandler)
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
				return rec
			}

			Expect(build(1).Code).To(Equal(http.StatusOK))
			Expect(build(2).Code).To(Equal(http.StatusForbidden))
			Expect(build(99).Code).To(Equal(http.StatusForbidden))
		})
	})
})
