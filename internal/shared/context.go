package shared

import "context"

type sessionContextKey struct{}

type requestContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// RequestContext carries the identity and brand visibility of the current
// request. It is passed explicitly into every repository call that touches
// brand-owning rows rather than read from ambient session state.
type RequestContext struct {
	Actor         string
	Role          string
	AllowedBrands []string
}

// Admin reports whether brand filtering should be skipped entirely.
func (rc RequestContext) Admin() bool {
	return rc.Role == "admin"
}

// BrandFilter returns the brand list to apply, or nil when the actor may see
// every brand.
func (rc RequestContext) BrandFilter() []string {
	if rc.Admin() {
		return nil
	}
	return rc.AllowedBrands
}

// ContextWithRequest stores the request context.
func ContextWithRequest(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestFromContext extracts the request context; the zero value means an
// unauthenticated system actor with no brand restrictions applied by callers
// that opt in to it (background jobs).
func RequestFromContext(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	return rc
}
