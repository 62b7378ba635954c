// Package authz is a hybrid authorization engine: role-based, attribute-
// based, and relationship-based access control behind one permission-check
// API, with two interchangeable evaluation strategies. The standard
// strategy computes every check from the source-of-truth stores; the
// indexed strategy pays on write to keep derived caches that make checks
// O(1) lookups.
package authz

import (
	"log"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/helmgate/authz/internal/engine"
	"github.com/helmgate/authz/internal/persist/mem"
	"github.com/helmgate/authz/types"
)

// New creates an authorization Engine. Without options it runs entirely on
// in-memory stores; production deployments inject durable backends, e.g.
// persist/pg for the source-of-truth view and persist/redis for the
// derived-index view.
func New(opts ...Option) types.Engine {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.log.GetSink() == nil {
		cfg.log = stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile))
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.assignments == nil {
		cfg.assignments = mem.NewAssignmentStore()
	}
	if cfg.overrides == nil {
		cfg.overrides = mem.NewOverrideStore()
	}
	if cfg.attributes == nil {
		cfg.attributes = mem.NewAttributeStore()
	}
	if cfg.tuples == nil {
		cfg.tuples = mem.NewTupleStore()
	}
	if cfg.index == nil {
		cfg.index = mem.NewIndexStore()
	}
	if cfg.audit == nil {
		cfg.audit = mem.NewAuditStore()
	}

	return engine.New(engine.Config{
		Assignments: cfg.assignments,
		Overrides:   cfg.overrides,
		Attributes:  cfg.attributes,
		Tuples:      cfg.tuples,
		Index:       cfg.index,
		Audit:       cfg.audit,
		Policies:    cfg.policies,
		Now:         cfg.now,
		Log:         cfg.log,
	})
}

// WithAssignmentStore sets the backend for role assignments.
func WithAssignmentStore(s types.AssignmentStore) Option {
	return func(cfg *Config) {
		cfg.assignments = s
	}
}

// WithOverrideStore sets the backend for permission overrides.
func WithOverrideStore(s types.OverrideStore) Option {
	return func(cfg *Config) {
		cfg.overrides = s
	}
}

// WithAttributeStore sets the backend for user attributes.
func WithAttributeStore(s types.AttributeStore) Option {
	return func(cfg *Config) {
		cfg.attributes = s
	}
}

// WithTupleStore sets the backend for relationship tuples.
func WithTupleStore(s types.TupleStore) Option {
	return func(cfg *Config) {
		cfg.tuples = s
	}
}

// WithIndexStore sets the backend for the derived caches.
// could be a remote cache: reads there are point lookups by natural key
func WithIndexStore(s types.IndexStore) Option {
	return func(cfg *Config) {
		cfg.index = s
	}
}

// WithAuditStore sets the backend for the append-only audit log.
func WithAuditStore(s types.AuditStore) Option {
	return func(cfg *Config) {
		cfg.audit = s
	}
}

// WithPolicies configures ABAC policies applied on top of permission
// checks.
func WithPolicies(p types.PolicySet) Option {
	return func(cfg *Config) {
		cfg.policies = p
	}
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(cfg *Config) {
		cfg.now = now
	}
}

// WithLogger sets the logger for all engine components.
func WithLogger(l logr.Logger) Option {
	return func(cfg *Config) {
		cfg.log = l
	}
}

// Config works together with Option to control the initialization of the
// engine.
type Config struct {
	assignments types.AssignmentStore
	overrides   types.OverrideStore
	attributes  types.AttributeStore
	tuples      types.TupleStore
	index       types.IndexStore
	audit       types.AuditStore
	policies    types.PolicySet
	now         func() time.Time
	log         logr.Logger
}

// Option controls how to init an engine.
type Option func(*Config)
