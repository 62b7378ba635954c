package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/helmgate/authz/internal/persist/mem"
	"github.com/helmgate/authz/internal/resolver"
	"github.com/helmgate/authz/types"
)

func TestResolver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "resolver test suit")
}

var _ = Describe("standard resolver", func() {
	var (
		ctx         = context.Background()
		assignments *mem.AssignmentStore
		overrides   *mem.OverrideStore
		r           *resolver.Resolver
	)

	acme := types.Scope{Type: "org", ID: "acme"}
	betaco := types.Scope{Type: "org", ID: "betaco"}
	roles := types.RolePermissions{
		"admin":  {"documents:*", "settings:read"},
		"viewer": {"documents:read"},
	}

	BeforeEach(func() {
		assignments = mem.NewAssignmentStore()
		overrides = mem.NewOverrideStore()
		r = resolver.New(assignments, overrides, time.Now, logr.Discard())
	})

	Describe("role checks", func() {
		BeforeEach(func() {
			Expect(assignments.Insert(ctx, types.RoleAssignment{UserID: "alice", Role: "admin", Scope: acme})).To(Succeed())
		})

		It("grants within the assigned scope", func() {
			d, e := r.CheckPermission(ctx, "alice", "documents:write", acme, roles)
			Expect(e).To(Succeed())
			Expect(d.Allowed).To(BeTrue())
			Expect(d.MatchedRole).To(Equal("admin"))
		})

		It("denies outside the assigned scope", func() {
			d, e := r.CheckPermission(ctx, "alice", "documents:write", betaco, roles)
			Expect(e).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal("no role or override grants this permission"))
		})

		It("denies a global check for a scoped assignment", func() {
			d, e := r.CheckPermission(ctx, "alice", "documents:write", types.Scope{}, roles)
			Expect(e).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
		})

		It("lets a global assignment satisfy any scope", func() {
			Expect(assignments.Insert(ctx, types.RoleAssignment{UserID: "bob", Role: "viewer"})).To(Succeed())

			for _, scope := range []types.Scope{{}, acme, betaco} {
				d, e := r.CheckPermission(ctx, "bob", "documents:read", scope, roles)
				Expect(e).To(Succeed())
				Expect(d.Allowed).To(BeTrue(), "scope %s", scope)
			}
		})

		It("answers HasRole with scope generality", func() {
			Expect(r.HasRole(ctx, "alice", "admin", acme)).To(BeTrue())
			Expect(r.HasRole(ctx, "alice", "admin", types.Scope{})).To(BeFalse())
			Expect(r.HasRole(ctx, "alice", "admin", betaco)).To(BeFalse())
		})

		It("ignores expired assignments", func() {
			past := time.Now().Add(-time.Hour)
			Expect(assignments.Insert(ctx, types.RoleAssignment{UserID: "eve", Role: "admin", ExpiresAt: &past})).To(Succeed())

			d, e := r.CheckPermission(ctx, "eve", "documents:read", types.Scope{}, roles)
			Expect(e).To(Succeed())
			Expect(d.Allowed).To(BeFalse())

			live, e := r.UserRoles(ctx, "eve")
			Expect(e).To(Succeed())
			Expect(live).To(BeEmpty())
		})
	})

	Describe("override precedence", func() {
		BeforeEach(func() {
			Expect(assignments.Insert(ctx, types.RoleAssignment{UserID: "alice", Role: "admin"})).To(Succeed())
		})

		It("lets a deny override beat a role grant", func() {
			_, e := overrides.Upsert(ctx, types.PermissionOverride{
				ID: "ov-1", UserID: "alice", Permission: "documents:write", Effect: types.Deny,
			})
			Expect(e).To(Succeed())

			d, err := r.CheckPermission(ctx, "alice", "documents:write", types.Scope{}, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.MatchedOverride).To(Equal("ov-1"))
		})

		It("lets deny beat allow on the same permission", func() {
			_, e := overrides.Upsert(ctx, types.PermissionOverride{
				ID: "ov-allow", UserID: "carol", Permission: "reports:view", Effect: types.Allow,
			})
			Expect(e).To(Succeed())
			_, e = overrides.Upsert(ctx, types.PermissionOverride{
				ID: "ov-deny", UserID: "carol", Permission: "reports:view", Effect: types.Deny, Scope: types.Scope{},
			})
			Expect(e).To(Succeed())

			d, err := r.CheckPermission(ctx, "carol", "reports:view", types.Scope{}, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
		})

		It("lets an allow override grant without any role", func() {
			_, e := overrides.Upsert(ctx, types.PermissionOverride{
				ID: "ov-2", UserID: "dave", Permission: "reports:view", Effect: types.Allow,
			})
			Expect(e).To(Succeed())

			d, err := r.CheckPermission(ctx, "dave", "reports:view", types.Scope{}, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeTrue())
			Expect(d.MatchedOverride).To(Equal("ov-2"))
		})
	})

	Describe("effective permissions", func() {
		It("unions role patterns and applies overrides", func() {
			Expect(assignments.Insert(ctx, types.RoleAssignment{UserID: "alice", Role: "admin"})).To(Succeed())
			Expect(assignments.Insert(ctx, types.RoleAssignment{UserID: "alice", Role: "viewer"})).To(Succeed())

			_, e := overrides.Upsert(ctx, types.PermissionOverride{
				ID: "ov-3", UserID: "alice", Permission: "reports:view", Effect: types.Allow,
			})
			Expect(e).To(Succeed())
			_, e = overrides.Upsert(ctx, types.PermissionOverride{
				ID: "ov-4", UserID: "alice", Permission: "settings:read", Effect: types.Deny,
			})
			Expect(e).To(Succeed())

			summary, err := r.EffectivePermissions(ctx, "alice", types.Scope{}, roles)
			Expect(err).To(Succeed())
			Expect(summary.Roles).To(Equal([]string{"admin", "viewer"}))
			Expect(summary.Permissions).To(Equal([]string{"documents:*", "documents:read", "reports:view"}))
			Expect(summary.DeniedPermissions).To(Equal([]string{"settings:read"}))
		})
	})
})
