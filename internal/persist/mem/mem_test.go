package mem_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/helmgate/authz/internal/persist/mem"
	"github.com/helmgate/authz/types"
)

func TestMemStores(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "mem stores test suit")
}

var _ = Describe("mem stores", func() {
	ctx := context.Background()

	Describe("assignments", func() {
		It("lets a fresh assignment take over an expired row", func() {
			s := mem.NewAssignmentStore()
			past := time.Now().Add(-time.Hour)

			Expect(s.Insert(ctx, types.RoleAssignment{UserID: "alice", Role: "tmp", ExpiresAt: &past})).To(Succeed())
			Expect(s.Insert(ctx, types.RoleAssignment{UserID: "alice", Role: "tmp"})).To(Succeed())

			got, e := s.ListByUser(ctx, "alice")
			Expect(e).To(Succeed())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ExpiresAt).To(BeNil())
		})

		It("rejects a duplicate of a live row", func() {
			s := mem.NewAssignmentStore()
			a := types.RoleAssignment{UserID: "alice", Role: "viewer", Scope: types.Scope{Type: "org", ID: "acme"}}

			Expect(s.Insert(ctx, a)).To(Succeed())
			Expect(s.Insert(ctx, a)).To(MatchError(types.ErrAlreadyExists))

			By("a different scope being a different row")
			a.Scope = types.Scope{}
			Expect(s.Insert(ctx, a)).To(Succeed())
		})

		It("counts swept rows", func() {
			s := mem.NewAssignmentStore()
			past := time.Now().Add(-time.Hour)
			future := time.Now().Add(time.Hour)

			Expect(s.Insert(ctx, types.RoleAssignment{UserID: "alice", Role: "a", ExpiresAt: &past})).To(Succeed())
			Expect(s.Insert(ctx, types.RoleAssignment{UserID: "bob", Role: "b", ExpiresAt: &past})).To(Succeed())
			Expect(s.Insert(ctx, types.RoleAssignment{UserID: "bob", Role: "c", ExpiresAt: &future})).To(Succeed())

			n, e := s.DeleteExpired(ctx, time.Now())
			Expect(e).To(Succeed())
			Expect(n).To(Equal(2))

			got, e := s.ListByUser(ctx, "bob")
			Expect(e).To(Succeed())
			Expect(got).To(HaveLen(1))
		})
	})

	Describe("overrides", func() {
		It("keeps row identity across upserts", func() {
			s := mem.NewOverrideStore()
			o := types.PermissionOverride{
				ID: "o-1", UserID: "alice", Permission: "documents:read",
				Effect: types.Allow, CreatedAt: time.Now(),
			}

			first, e := s.Upsert(ctx, o)
			Expect(e).To(Succeed())

			o.ID = "o-2"
			o.Effect = types.Deny
			second, e := s.Upsert(ctx, o)
			Expect(e).To(Succeed())
			Expect(second.ID).To(Equal("o-1"))
			Expect(second.Effect).To(Equal(types.Deny))
			Expect(second.CreatedAt).To(Equal(first.CreatedAt))

			got, e := s.ListByUser(ctx, "alice")
			Expect(e).To(Succeed())
			Expect(got).To(HaveLen(1))
		})
	})

	Describe("attributes", func() {
		It("upserts and deletes by key", func() {
			s := mem.NewAttributeStore()

			Expect(s.Upsert(ctx, types.UserAttribute{UserID: "alice", Key: "clearance", Value: "low"})).To(Succeed())
			Expect(s.Upsert(ctx, types.UserAttribute{UserID: "alice", Key: "clearance", Value: "high"})).To(Succeed())

			got, e := s.ListByUser(ctx, "alice")
			Expect(e).To(Succeed())
			Expect(got).To(HaveLen(1))
			Expect(got[0].Value).To(Equal("high"))

			Expect(s.Delete(ctx, "alice", "clearance")).To(Succeed())
			Expect(s.Delete(ctx, "alice", "clearance")).To(MatchError(types.ErrNotFound))
		})
	})

	Describe("index relationships", func() {
		It("cascades by parent id", func() {
			s := mem.NewIndexStore()
			direct := types.EffectiveRelationship{ID: "r-1", SubjectKey: "user:alice", Relation: "member", ObjectKey: "team:eng", IsDirect: true}
			d1 := types.EffectiveRelationship{ID: "r-2", SubjectKey: "user:alice", Relation: "viewer", ObjectKey: "project:alpha", InheritedFrom: "r-1"}
			d2 := types.EffectiveRelationship{ID: "r-3", SubjectKey: "user:alice", Relation: "viewer", ObjectKey: "project:beta", InheritedFrom: "r-1"}

			Expect(s.InsertRelationship(ctx, direct)).To(Succeed())
			Expect(s.InsertRelationship(ctx, d1)).To(Succeed())
			Expect(s.InsertRelationship(ctx, d2)).To(Succeed())
			Expect(s.InsertRelationship(ctx, direct)).To(MatchError(types.ErrAlreadyExists))

			n, e := s.DeleteRelationshipsInheritedFrom(ctx, "r-1")
			Expect(e).To(Succeed())
			Expect(n).To(Equal(2))

			_, e = s.GetRelationship(ctx, "user:alice", "viewer", "project:alpha")
			Expect(e).To(MatchError(types.ErrNotFound))
			_, e = s.GetRelationship(ctx, "user:alice", "member", "team:eng")
			Expect(e).To(Succeed())
		})
	})
})
