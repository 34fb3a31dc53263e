package authz_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/guardhq/workforce-management/internal"
	"github.com/guardhq/workforce-management/internal/authz"
)

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		roles    *mockRoleStore
		perms    *mockPermStore
		access   *mockAccessStore
		audit    *mockAuditStore
		tx       *mockTxRunner
		users    *mockUserDirectory
		resolver *mockResolver
		service  *authz.Service
	)

	const (
		adminID = int64(1)
		userID  = int64(4)
	)

	BeforeEach(func() {
		ctx = context.Background()
		roles = newMockRoleStore()
		perms = newMockPermStore()
		access = newMockAccessStore()
		audit = newMockAuditStore()
		tx = newMockTxRunner(roles, perms, access, audit)
		users = newMockUserDirectory(adminID, userID)
		resolver = newMockResolver()
		resolver.properties[7] = 30
		users.users[30] = true

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		stores := authz.Stores{Roles: roles, Perms: perms, Access: access, Audit: audit}
		service = authz.NewService(stores, tx, users, resolver, logger)
	})

	Describe("AssignRole", func() {
		It("stores the role and audits the previous one", func() {
			roles.roles[userID] = authz.RoleGuard

			err := service.AssignRole(ctx, adminID, userID, authz.RoleSupervisor, "promotion")

			Expect(err).ToNot(HaveOccurred())
			Expect(roles.roles[userID]).To(Equal(authz.RoleSupervisor))
			Expect(audit.entries).To(HaveLen(1))
			entry := audit.entries[0]
			Expect(entry.Action).To(Equal(authz.AuditAssigned))
			Expect(entry.PermissionKind).To(Equal(authz.KindRole))
			Expect(entry.ActorID).To(Equal(adminID))
			Expect(entry.TargetUserID).To(Equal(userID))
			Expect(string(entry.BeforeState)).To(ContainSubstring("guard"))
			Expect(string(entry.AfterState)).To(ContainSubstring("supervisor"))
		})

		It("rejects an unknown role", func() {
			err := service.AssignRole(ctx, adminID, userID, authz.Role("superuser"), "")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidRole))
			Expect(audit.entries).To(BeEmpty())
		})

		It("rejects an unknown user", func() {
			err := service.AssignRole(ctx, adminID, 999, authz.RoleGuard, "")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeUserNotFound))
		})
	})

	Describe("GrantResourcePermission", func() {
		It("creates the grant and one audit entry in the same transaction", func() {
			perm, err := service.GrantResourcePermission(ctx, adminID, userID, authz.ResourceShift, authz.ActionApprove, nil, nil, "covering leave")

			Expect(err).ToNot(HaveOccurred())
			Expect(perm.ID).To(BeNumerically(">", 0))
			Expect(perm.Wildcard()).To(BeTrue())
			Expect(tx.calls).To(Equal(1))
			Expect(audit.entries).To(HaveLen(1))
			Expect(audit.entries[0].Action).To(Equal(authz.AuditGranted))
			Expect(audit.entries[0].PermissionKind).To(Equal(authz.KindResourcePermission))
		})

		It("rolls the grant back when the audit append fails", func() {
			audit.appendError = errors.New("audit table unavailable")

			_, err := service.GrantResourcePermission(ctx, adminID, userID, authz.ResourceShift, authz.ActionApprove, nil, nil, "")

			Expect(err).To(HaveOccurred())
			Expect(perms.perms).To(BeEmpty())
			Expect(audit.entries).To(BeEmpty())
		})

		It("rejects unknown vocabulary", func() {
			_, err := service.GrantResourcePermission(ctx, adminID, userID, authz.ResourceType("spaceship"), authz.ActionRead, nil, nil, "")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidResource))

			_, err = service.GrantResourcePermission(ctx, adminID, userID, authz.ResourceShift, authz.Action("teleport"), nil, nil, "")
			appErr, ok = internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidAction))
		})
	})

	Describe("RevokeResourcePermission", func() {
		var permID int64

		BeforeEach(func() {
			perm, err := service.GrantResourcePermission(ctx, adminID, userID, authz.ResourceShift, authz.ActionApprove, nil, nil, "")
			Expect(err).ToNot(HaveOccurred())
			permID = perm.ID
		})

		It("marks the grant revoked and audits it", func() {
			err := service.RevokeResourcePermission(ctx, adminID, permID, "no longer needed")

			Expect(err).ToNot(HaveOccurred())
			stored, _ := perms.GetByID(ctx, permID)
			Expect(stored.Revoked()).To(BeTrue())
			Expect(audit.entries).To(HaveLen(2)) // grant + revoke
			Expect(audit.entries[1].Action).To(Equal(authz.AuditRevoked))
		})

		It("is idempotent but still audits the second attempt", func() {
			Expect(service.RevokeResourcePermission(ctx, adminID, permID, "first")).To(Succeed())
			stored, _ := perms.GetByID(ctx, permID)
			firstRevokedAt := *stored.RevokedAt

			Expect(service.RevokeResourcePermission(ctx, adminID, permID, "second")).To(Succeed())

			stored, _ = perms.GetByID(ctx, permID)
			Expect(*stored.RevokedAt).To(Equal(firstRevokedAt))
			Expect(audit.entries).To(HaveLen(3)) // grant + two revokes
			last := audit.entries[2]
			Expect(last.Action).To(Equal(authz.AuditRevoked))
			Expect(string(last.BeforeState)).To(Equal(string(last.AfterState)))
		})

		It("returns not found for an unknown id", func() {
			err := service.RevokeResourcePermission(ctx, adminID, 999, "")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePermissionNotFound))
		})
	})

	Describe("GrantPropertyAccess", func() {
		It("creates the access row and audits the grant", func() {
			grant, err := service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessAssignedGuard,
				authz.CapabilityFlags{CanCreateShifts: true}, "new posting")

			Expect(err).ToNot(HaveOccurred())
			Expect(grant.ID).To(BeNumerically(">", 0))
			Expect(audit.entries).To(HaveLen(1))
			Expect(audit.entries[0].Action).To(Equal(authz.AuditGranted))
			Expect(audit.entries[0].PermissionKind).To(Equal(authz.KindPropertyAccess))
		})

		It("supersedes the active row, leaving exactly one active", func() {
			first, err := service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessAssignedGuard,
				authz.CapabilityFlags{CanCreateShifts: true}, "")
			Expect(err).ToNot(HaveOccurred())

			second, err := service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessSupervisor,
				authz.CapabilityFlags{CanApproveExpenses: true}, "promotion")
			Expect(err).ToNot(HaveOccurred())

			stored, _ := access.GetByID(ctx, first.ID)
			Expect(stored.Revoked()).To(BeTrue())

			active, _ := access.GetActive(ctx, userID, 7)
			Expect(active).ToNot(BeNil())
			Expect(active.ID).To(Equal(second.ID))
			Expect(active.AccessType).To(Equal(authz.AccessSupervisor))

			// grant, superseded, grant
			Expect(audit.entries).To(HaveLen(3))
			Expect(audit.entries[1].Action).To(Equal(authz.AuditSuperseded))
			Expect(audit.entries[2].Action).To(Equal(authz.AuditGranted))
		})

		It("rejects an unknown access type", func() {
			_, err := service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessType("janitor"), authz.CapabilityFlags{}, "")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidAccess))
		})

		It("rejects an unknown property", func() {
			_, err := service.GrantPropertyAccess(ctx, adminID, userID, 999, authz.AccessViewer, authz.CapabilityFlags{}, "")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePropertyNotFound))
		})

		It("rolls everything back when the audit append fails mid-supersession", func() {
			first, err := service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessAssignedGuard, authz.CapabilityFlags{}, "")
			Expect(err).ToNot(HaveOccurred())
			audit.appendError = errors.New("audit table unavailable")

			_, err = service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessSupervisor, authz.CapabilityFlags{}, "")

			Expect(err).To(HaveOccurred())
			active, _ := access.GetActive(ctx, userID, 7)
			Expect(active).ToNot(BeNil())
			Expect(active.ID).To(Equal(first.ID))
			Expect(audit.entries).To(HaveLen(1))
		})
	})

	Describe("RevokePropertyAccess", func() {
		It("revokes idempotently with one audit entry per attempt", func() {
			grant, err := service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessViewer, authz.CapabilityFlags{}, "")
			Expect(err).ToNot(HaveOccurred())

			Expect(service.RevokePropertyAccess(ctx, adminID, grant.ID, "done")).To(Succeed())
			Expect(service.RevokePropertyAccess(ctx, adminID, grant.ID, "again")).To(Succeed())

			stored, _ := access.GetByID(ctx, grant.ID)
			Expect(stored.Revoked()).To(BeTrue())
			Expect(audit.entries).To(HaveLen(3)) // grant + two revokes
		})

		It("returns not found for an unknown id", func() {
			err := service.RevokePropertyAccess(ctx, adminID, 999, "")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeAccessNotFound))
		})
	})

	Describe("AuditLog", func() {
		It("returns the effective page values after clamping", func() {
			err := service.AssignRole(ctx, adminID, userID, authz.RoleGuard, "")
			Expect(err).ToNot(HaveOccurred())

			page, err := service.AuditLog(ctx, authz.AuditFilter{Page: 0, PerPage: 9999})

			Expect(err).ToNot(HaveOccurred())
			Expect(page.Page).To(Equal(1))
			Expect(page.PerPage).To(Equal(100))
			Expect(page.Entries).To(HaveLen(1))
			Expect(page.Total).To(Equal(int64(1)))
		})
	})

	Describe("UserPermissionSummary", func() {
		It("collects the role and active grants", func() {
			roles.roles[userID] = authz.RoleGuard
			_, err := service.GrantResourcePermission(ctx, adminID, userID, authz.ResourceShift, authz.ActionApprove, nil, nil, "")
			Expect(err).ToNot(HaveOccurred())
			_, err = service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessAssignedGuard, authz.CapabilityFlags{}, "")
			Expect(err).ToNot(HaveOccurred())

			summary, err := service.UserPermissionSummary(ctx, userID)

			Expect(err).ToNot(HaveOccurred())
			Expect(summary.Role).To(Equal(authz.RoleGuard))
			Expect(summary.ResourcePermissions).To(HaveLen(1))
			Expect(summary.PropertyAccess).To(HaveLen(1))
		})
	})

	Describe("UsersWithPermissions", func() {
		It("returns one summary per known user", func() {
			roles.roles[userID] = authz.RoleGuard
			_, err := service.GrantPropertyAccess(ctx, adminID, userID, 7, authz.AccessViewer, authz.CapabilityFlags{}, "")
			Expect(err).ToNot(HaveOccurred())

			summaries, err := service.UsersWithPermissions(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(summaries).To(HaveLen(3))

			byID := map[int64]*authz.PermissionSummary{}
			for _, s := range summaries {
				byID[s.UserID] = s
			}
			Expect(byID[userID].Role).To(Equal(authz.RoleGuard))
			Expect(byID[userID].PropertyAccess).To(HaveLen(1))
			Expect(byID[adminID].Role).To(Equal(authz.RoleUnassigned))
		})
	})

	Describe("BulkUpdate", func() {
		It("applies grants and revokes independently, reporting per-item results", func() {
			existing, err := service.GrantResourcePermission(ctx, adminID, userID, authz.ResourceClient, authz.ActionRead, nil, nil, "")
			Expect(err).ToNot(HaveOccurred())

			resp, err := service.BulkUpdate(ctx, adminID, authz.BulkUpdateDTO{
				Reason: "quarterly review",
				Updates: []authz.BulkUpdateItemDTO{
					{
						UserID:    userID,
						Operation: authz.BulkOperationGrant,
						Permission: authz.BulkPermissionDataDTO{
							Kind:         authz.BulkKindResource,
							ResourceType: "expense",
							Action:       "approve",
						},
					},
					{
						UserID:    userID,
						Operation: authz.BulkOperationGrant,
						Permission: authz.BulkPermissionDataDTO{
							Kind:       authz.BulkKindProperty,
							PropertyID: 7,
							AccessType: "assigned_guard",
							Flags:      authz.CapabilityFlags{CanCreateShifts: true},
						},
					},
					{
						UserID:    userID,
						Operation: authz.BulkOperationRevoke,
						Permission: authz.BulkPermissionDataDTO{
							Kind:         authz.BulkKindResource,
							PermissionID: existing.ID,
						},
					},
					{
						UserID:    999,
						Operation: authz.BulkOperationGrant,
						Permission: authz.BulkPermissionDataDTO{
							Kind:         authz.BulkKindResource,
							ResourceType: "shift",
							Action:       "read",
						},
					},
				},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Total).To(Equal(4))
			Expect(resp.Successful).To(Equal(3))
			Expect(resp.Failed).To(Equal(1))
			Expect(resp.Results).To(HaveLen(4))

			Expect(resp.Results[0].Success).To(BeTrue())
			Expect(resp.Results[0].ID).ToNot(BeZero())
			Expect(resp.Results[1].Success).To(BeTrue())
			Expect(resp.Results[2].Success).To(BeTrue())
			Expect(resp.Results[2].ID).To(Equal(existing.ID))
			Expect(resp.Results[3].Success).To(BeFalse())
			Expect(resp.Results[3].Error).To(ContainSubstring("user not found"))

			Expect(perms.perms).To(HaveLen(2))
			Expect(perms.perms[0].RevokedAt).ToNot(BeNil())
			Expect(access.access).To(HaveLen(1))
			// grant + grant + grant + revoke each audit once
			Expect(audit.entries).To(HaveLen(4))
		})

		It("rejects an unknown operation without touching the stores", func() {
			resp, err := service.BulkUpdate(ctx, adminID, authz.BulkUpdateDTO{
				Updates: []authz.BulkUpdateItemDTO{
					{UserID: userID, Operation: "toggle"},
				},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Failed).To(Equal(1))
			Expect(resp.Results[0].Error).To(ContainSubstring("grant"))
			Expect(perms.perms).To(BeEmpty())
			Expect(audit.entries).To(BeEmpty())
		})

		It("rejects an unknown kind", func() {
			resp, err := service.BulkUpdate(ctx, adminID, authz.BulkUpdateDTO{
				Updates: []authz.BulkUpdateItemDTO{
					{
						UserID:     userID,
						Operation:  authz.BulkOperationRevoke,
						Permission: authz.BulkPermissionDataDTO{Kind: "role"},
					},
				},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Failed).To(Equal(1))
			Expect(resp.Results[0].Error).To(ContainSubstring("resource"))
		})

		It("rejects an empty batch", func() {
			_, err := service.BulkUpdate(ctx, adminID, authz.BulkUpdateDTO{})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
		})
	})

	Describe("AvailableOptions", func() {
		It("enumerates the closed vocabularies", func() {
			opts := service.AvailableOptions()

			Expect(opts.Roles).To(ConsistOf(authz.RoleAdmin, authz.RoleManager, authz.RoleClient, authz.RoleGuard, authz.RoleSupervisor))
			Expect(opts.ResourceTypes).To(HaveLen(5))
			Expect(opts.Actions).To(HaveLen(6))
			Expect(opts.AccessTypes).To(HaveLen(4))
			Expect(opts.CapabilityFlags).To(ContainElement("can_approve_expenses"))
		})
	})

	Describe("AssignRole followed by permission checks", func() {
		It("applies the new role immediately", func() {
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			manager := authz.NewManager(roles, perms, access, resolver, logger)

			Expect(service.AssignRole(ctx, adminID, userID, authz.RoleManager, "")).To(Succeed())
			allowed, err := manager.HasPermission(ctx, userID, authz.ResourceExpense, authz.ActionApprove, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())

			Expect(service.AssignRole(ctx, adminID, userID, authz.RoleGuard, "")).To(Succeed())
			allowed, err = manager.HasPermission(ctx, userID, authz.ResourceExpense, authz.ActionApprove, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})
	})
})
