package policy_test

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/helmgate/authz/internal/policy"
	"github.com/helmgate/authz/types"
)

func TestPolicy(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "policy test suit")
}

var (
	allowed = types.Decision{Allowed: true, Reason: "granted by role editor", MatchedRole: "editor"}
	denied  = types.Decision{Allowed: false, Reason: "no role or override grants this permission"}
)

func businessHours(pctx types.PolicyContext) bool {
	h := pctx.Timestamp.Hour()
	return h >= 9 && h < 17
}

func at(hour int) types.PolicyContext {
	return types.PolicyContext{
		UserID:    "alice",
		Timestamp: time.Date(2024, 6, 3, hour, 0, 0, 0, time.UTC),
	}
}

var _ = Describe("policy evaluator", func() {
	newEval := func(set types.PolicySet) *policy.Evaluator {
		return policy.New(set, logr.Discard())
	}

	It("reports emptiness", func() {
		Expect(newEval(nil).Empty()).To(BeTrue())
		Expect(newEval(types.PolicySet{"a:b": {}}).Empty()).To(BeFalse())
	})

	It("passes the base through when nothing matches", func() {
		e := newEval(types.PolicySet{"reports:export": {Effect: types.Deny, Condition: businessHours}})
		Expect(e.Apply(allowed, "documents:read", at(3))).To(Equal(allowed))
	})

	Describe("deny policies", func() {
		e := newEval(types.PolicySet{
			"documents:delete": {
				Effect:    types.Deny,
				Condition: businessHours,
				Message:   "deletes are restricted to business hours",
			},
		})

		It("converts an allowed base when the condition fails", func() {
			d := e.Apply(allowed, "documents:delete", at(3))
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal("deletes are restricted to business hours"))
			Expect(d.MatchedPolicy).To(Equal("documents:delete"))
		})

		It("keeps an allowed base when the condition holds", func() {
			d := e.Apply(allowed, "documents:delete", at(10))
			Expect(d.Allowed).To(BeTrue())
			Expect(d.MatchedPolicy).To(Equal("documents:delete"))
		})

		It("leaves a denied base alone", func() {
			Expect(e.Apply(denied, "documents:delete", at(10))).To(Equal(denied))
		})
	})

	Describe("allow policies", func() {
		e := newEval(types.PolicySet{
			"reports:view": {Effect: types.Allow, Condition: businessHours},
		})

		It("grants a denied base when the condition holds", func() {
			d := e.Apply(denied, "reports:view", at(10))
			Expect(d.Allowed).To(BeTrue())
			Expect(d.MatchedPolicy).To(Equal("reports:view"))
		})

		It("keeps a denied base when the condition fails", func() {
			d := e.Apply(denied, "reports:view", at(3))
			Expect(d.Allowed).To(BeFalse())
		})

		It("never overturns an explicit deny override", func() {
			overridden := types.Decision{Allowed: false, Reason: "denied by override", MatchedOverride: "o-1"}
			Expect(e.Apply(overridden, "reports:view", at(10))).To(Equal(overridden))
		})

		It("leaves an allowed base alone", func() {
			Expect(e.Apply(allowed, "reports:view", at(10))).To(Equal(allowed))
		})
	})

	Describe("selection specificity", func() {
		trace := func(key string) types.Policy {
			return types.Policy{Effect: types.Deny, Condition: func(types.PolicyContext) bool { return false }, Message: key}
		}

		It("prefers an exact key over patterns", func() {
			e := newEval(types.PolicySet{
				"documents:read": trace("documents:read"),
				"documents:*":    trace("documents:*"),
				"*:*":            trace("*:*"),
			})
			Expect(e.Apply(allowed, "documents:read", at(10)).MatchedPolicy).To(Equal("documents:read"))
		})

		It("prefers a concrete resource over a concrete action", func() {
			e := newEval(types.PolicySet{
				"documents:*": trace("documents:*"),
				"*:read":      trace("*:read"),
			})
			Expect(e.Apply(allowed, "documents:read", at(10)).MatchedPolicy).To(Equal("documents:*"))
		})

		It("falls back to the full wildcard", func() {
			e := newEval(types.PolicySet{"*:*": trace("*:*")})
			Expect(e.Apply(allowed, "anything:at-all", at(10)).MatchedPolicy).To(Equal("*:*"))
		})
	})
})
