package types

import "context"

// RequestMeta carries per-request environment for policy conditions:
// attributes of the resource being checked and the caller's address. It
// travels on the context so the check API stays unchanged when policies
// are not in play.
type RequestMeta struct {
	Resource map[string]any
	IP       string
}

type requestMetaKey struct{}

// WithRequestMeta attaches request metadata to the context.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFrom extracts request metadata, zero if absent.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}
