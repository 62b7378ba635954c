package authz_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/helmgate/authz"
	"github.com/helmgate/authz/internal/relation"
	"github.com/helmgate/authz/types"
)

func TestAuthz(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "authz test suit")
}

var roles = types.RolePermissions{
	"admin":  {"documents:*", "settings:read"},
	"editor": {"documents:read", "documents:write"},
	"viewer": {"documents:read"},
}

var _ = Describe("authorization engine", func() {
	var (
		ctx = context.Background()
		e   types.Engine
		now time.Time
	)

	global := types.Scope{}
	acme := types.Scope{Type: "org", ID: "acme"}
	betaco := types.Scope{Type: "org", ID: "betaco"}

	clock := func() time.Time { return now }

	newEngine := func(opts ...authz.Option) types.Engine {
		opts = append([]authz.Option{authz.WithLogger(logr.Discard()), authz.WithClock(clock)}, opts...)
		return authz.New(opts...)
	}

	BeforeEach(func() {
		now = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
		e = newEngine()
	})

	Describe("standard strategy", func() {
		It("resolves role grants within their scope", func() {
			Expect(e.AssignRole(ctx, types.RoleAssignment{UserID: "alice", Role: "admin", Scope: acme})).To(Succeed())

			d, err := e.CheckPermission(ctx, "alice", "documents:delete", acme, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeTrue())
			Expect(d.MatchedRole).To(Equal("admin"))

			By("the scoped role holding nowhere else")
			d, err = e.CheckPermission(ctx, "alice", "documents:delete", betaco, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())

			d, err = e.CheckPermission(ctx, "alice", "documents:delete", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
		})

		It("rejects a duplicate live assignment", func() {
			a := types.RoleAssignment{UserID: "alice", Role: "viewer"}
			Expect(e.AssignRole(ctx, a)).To(Succeed())
			Expect(e.AssignRole(ctx, a)).To(MatchError(types.ErrAlreadyExists))
		})

		It("lets a deny override defeat a role grant", func() {
			Expect(e.AssignRole(ctx, types.RoleAssignment{UserID: "alice", Role: "admin"})).To(Succeed())
			_, err := e.DenyPermission(ctx, types.PermissionOverride{
				UserID: "alice", Permission: "documents:delete", Reason: "under investigation",
			})
			Expect(err).To(Succeed())

			d, err := e.CheckPermission(ctx, "alice", "documents:delete", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.MatchedOverride).NotTo(BeEmpty())

			By("sibling permissions staying granted")
			d, err = e.CheckPermission(ctx, "alice", "documents:read", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeTrue())
		})

		It("expires temporary elevated access", func() {
			exp := now.Add(time.Hour)
			Expect(e.AssignRole(ctx, types.RoleAssignment{
				UserID: "bob", Role: "admin", ExpiresAt: &exp,
			})).To(Succeed())

			d, err := e.CheckPermission(ctx, "bob", "settings:read", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeTrue())

			now = now.Add(2 * time.Hour)
			d, err = e.CheckPermission(ctx, "bob", "settings:read", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
		})

		It("summarizes effective permissions", func() {
			Expect(e.AssignRole(ctx, types.RoleAssignment{UserID: "alice", Role: "editor"})).To(Succeed())
			_, err := e.DenyPermission(ctx, types.PermissionOverride{UserID: "alice", Permission: "documents:write"})
			Expect(err).To(Succeed())

			s, err := e.EffectivePermissions(ctx, "alice", global, roles)
			Expect(err).To(Succeed())
			Expect(s.Roles).To(Equal([]string{"editor"}))
			Expect(s.Permissions).To(Equal([]string{"documents:read"}))
			Expect(s.DeniedPermissions).To(Equal([]string{"documents:write"}))
		})
	})

	Describe("attribute policies", func() {
		policies := types.PolicySet{
			"documents:delete": {
				Effect:  types.Deny,
				Message: "deletes require clearance",
				Condition: func(p types.PolicyContext) bool {
					return p.Attributes["clearance"] == "high"
				},
			},
			"reports:view": {
				Effect: types.Allow,
				Condition: func(p types.PolicyContext) bool {
					return p.IP == "10.0.0.1"
				},
			},
		}

		BeforeEach(func() {
			e = newEngine(authz.WithPolicies(policies))
		})

		It("denies on a failing condition despite a role grant", func() {
			Expect(e.AssignRole(ctx, types.RoleAssignment{UserID: "alice", Role: "admin"})).To(Succeed())

			d, err := e.CheckPermission(ctx, "alice", "documents:delete", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal("deletes require clearance"))

			By("the attribute flipping the outcome")
			Expect(e.SetAttribute(ctx, "alice", "clearance", "high")).To(Succeed())
			d, err = e.CheckPermission(ctx, "alice", "documents:delete", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeTrue())
		})

		It("grants from request metadata without any role", func() {
			d, err := e.CheckPermission(ctx, "carol", "reports:view", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeFalse())

			rctx := types.WithRequestMeta(ctx, types.RequestMeta{IP: "10.0.0.1"})
			d, err = e.CheckPermission(rctx, "carol", "reports:view", global, roles)
			Expect(err).To(Succeed())
			Expect(d.Allowed).To(BeTrue())
			Expect(d.MatchedPolicy).To(Equal("reports:view"))
		})
	})

	Describe("indexed strategy", func() {
		It("serves point checks after indexed assignment", func() {
			Expect(e.AssignRoleIndexed(ctx, types.RoleAssignment{UserID: "alice", Role: "editor", Scope: acme}, roles["editor"])).To(Succeed())

			Expect(e.CheckPermissionFast(ctx, "alice", "documents:write", acme)).To(BeTrue())
			Expect(e.CheckPermissionFast(ctx, "alice", "documents:write", betaco)).To(BeFalse())
			Expect(e.HasRoleFast(ctx, "alice", "editor", acme)).To(BeTrue())

			By("both views agreeing")
			Expect(e.HasRole(ctx, "alice", "editor", acme)).To(BeTrue())
		})

		It("unwinds an indexed revocation", func() {
			Expect(e.AssignRoleIndexed(ctx, types.RoleAssignment{UserID: "alice", Role: "editor"}, roles["editor"])).To(Succeed())
			Expect(e.RevokeRoleIndexed(ctx, "alice", "editor", global, roles["editor"])).To(Succeed())

			Expect(e.CheckPermissionFast(ctx, "alice", "documents:read", global)).To(BeFalse())
			Expect(e.UserPermissionsFast(ctx, "alice")).To(BeEmpty())
			Expect(e.UserRoles(ctx, "alice")).To(BeEmpty())
		})

		It("lets a direct deny defeat indexed role grants", func() {
			Expect(e.AssignRoleIndexed(ctx, types.RoleAssignment{UserID: "alice", Role: "editor"}, roles["editor"])).To(Succeed())
			Expect(e.DenyDirect(ctx, types.PermissionOverride{UserID: "alice", Permission: "documents:write"})).To(Succeed())

			Expect(e.CheckPermissionFast(ctx, "alice", "documents:write", global)).To(BeFalse())
			Expect(e.CheckPermissionFast(ctx, "alice", "documents:read", global)).To(BeTrue())
		})

		It("recovers from desynced bookkeeping via rebuild", func() {
			Expect(e.AssignRoleIndexed(ctx, types.RoleAssignment{UserID: "alice", Role: "editor"}, roles["editor"])).To(Succeed())

			By("revoking with a mismatched permission list, stranding a row")
			Expect(e.RevokeRoleIndexed(ctx, "alice", "editor", global, []string{"documents:read"})).To(Succeed())
			Expect(e.CheckPermissionFast(ctx, "alice", "documents:write", global)).To(BeTrue())

			Expect(e.RebuildIndex(ctx, "alice", roles)).To(Succeed())
			Expect(e.CheckPermissionFast(ctx, "alice", "documents:write", global)).To(BeFalse())
		})
	})

	Describe("relationships", func() {
		member := types.RelationshipTuple{
			SubjectType: "user", SubjectID: "alice",
			Relation:   "member",
			ObjectType: "team", ObjectID: "eng",
		}
		owner := types.RelationshipTuple{
			SubjectType: "team", SubjectID: "eng",
			Relation:   "owner",
			ObjectType: "project", ObjectID: "alpha",
		}
		rules := map[string][]types.TraversalRule{
			relation.RuleKey("project", "viewer"): {{Through: "team", Via: "owner", Inherit: "member"}},
		}

		It("derives access through team membership on read", func() {
			Expect(e.AddRelation(ctx, member)).To(Succeed())
			Expect(e.AddRelation(ctx, owner)).To(Succeed())

			Expect(e.HasDirectRelation(ctx, "user", "alice", "viewer", "project", "alpha")).To(BeFalse())

			res, err := e.CheckRelation(ctx, "user", "alice", "viewer", "project", "alpha", rules, 0)
			Expect(err).To(Succeed())
			Expect(res.Allowed).To(BeTrue())
			Expect(res.Path).To(HaveLen(2))
		})

		It("materializes derived rows when indexed", func() {
			inherit := []types.InheritRule{{Relation: "viewer", FromObjectType: "project", FromRelation: "owner"}}

			Expect(e.AddRelation(ctx, owner)).To(Succeed())
			Expect(e.AddRelationIndexed(ctx, member, inherit)).To(Succeed())

			Expect(e.HasRelationFast(ctx, "user", "alice", "member", "team", "eng")).To(BeTrue())
			Expect(e.HasRelationFast(ctx, "user", "alice", "viewer", "project", "alpha")).To(BeTrue())

			By("removal cascading into derived rows")
			Expect(e.RemoveRelationIndexed(ctx, member)).To(Succeed())
			Expect(e.HasRelationFast(ctx, "user", "alice", "viewer", "project", "alpha")).To(BeFalse())
		})
	})

	Describe("audit log", func() {
		It("records mutations newest first", func() {
			Expect(e.AssignRole(ctx, types.RoleAssignment{UserID: "alice", Role: "viewer", AssignedBy: "root"})).To(Succeed())
			now = now.Add(time.Minute)
			Expect(e.RevokeRole(ctx, "alice", "viewer", global)).To(Succeed())

			entries, err := e.AuditLog(ctx, types.AuditFilter{UserID: "alice"}, 0)
			Expect(err).To(Succeed())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Action).To(Equal("role.revoked"))
			Expect(entries[1].Action).To(Equal("role.assigned"))
			Expect(entries[1].ActorID).To(Equal("root"))
			Expect(entries[1].Details).To(HaveKeyWithValue("role", "viewer"))
		})

		It("filters by action and time window", func() {
			Expect(e.AssignRole(ctx, types.RoleAssignment{UserID: "alice", Role: "viewer"})).To(Succeed())
			cut := now.Add(30 * time.Second)
			now = now.Add(time.Minute)
			Expect(e.SetAttribute(ctx, "alice", "clearance", "low")).To(Succeed())

			entries, err := e.AuditLog(ctx, types.AuditFilter{Action: "attribute.set"}, 0)
			Expect(err).To(Succeed())
			Expect(entries).To(HaveLen(1))

			entries, err = e.AuditLog(ctx, types.AuditFilter{Since: cut}, 0)
			Expect(err).To(Succeed())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Action).To(Equal("attribute.set"))
		})
	})

	Describe("expiry sweep", func() {
		It("reports what it removed", func() {
			exp := now.Add(time.Hour)
			Expect(e.AssignRole(ctx, types.RoleAssignment{UserID: "bob", Role: "admin", ExpiresAt: &exp})).To(Succeed())
			Expect(e.AssignRoleIndexed(ctx, types.RoleAssignment{UserID: "carol", Role: "viewer", ExpiresAt: &exp}, roles["viewer"])).To(Succeed())
			_, err := e.GrantPermission(ctx, types.PermissionOverride{UserID: "bob", Permission: "reports:view", ExpiresAt: &exp})
			Expect(err).To(Succeed())

			now = now.Add(2 * time.Hour)
			report, err := e.CleanupExpired(ctx)
			Expect(err).To(Succeed())
			Expect(report.RoleAssignments).To(Equal(2))
			Expect(report.Overrides).To(Equal(1))
			Expect(report.EffectiveRoles).To(Equal(1))
			Expect(report.EffectivePermissions).To(Equal(1))

			Expect(e.UserRoles(ctx, "bob")).To(BeEmpty())
			Expect(e.UserPermissionsFast(ctx, "carol")).To(BeEmpty())
		})
	})
})
