// Package auth carries the per-request caller identity supplied by the
// fronting authentication layer.
package auth

import (
	"context"
	"net/http"
)

// Role is the caller's gateway role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "proxy_admin"
)

// CallerIdentity identifies the caller for the lifetime of one request.
// TeamID may be empty for callers not scoped to a team.
type CallerIdentity struct {
	UserID string
	TeamID string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c CallerIdentity) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type callerKey struct{}

// WithCaller returns a context carrying the caller identity.
func WithCaller(ctx context.Context, caller CallerIdentity) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller identity stored in the context, if any.
func CallerFromContext(ctx context.Context) (CallerIdentity, bool) {
	if ctx == nil {
		return CallerIdentity{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(CallerIdentity)
	return caller, ok
}

// Middleware extracts the caller identity from the trusted gateway headers
// and attaches it to the request context. Transport-level authentication is
// the fronting layer's job; these headers are assumed verified.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := CallerIdentity{
			UserID: r.Header.Get("X-User-ID"),
			TeamID: r.Header.Get("X-Team-ID"),
			Role:   RoleUser,
		}
		if caller.UserID == "" {
			caller.UserID = "anon"
		}
		if role := r.Header.Get("X-User-Role"); role == string(RoleAdmin) {
			caller.Role = RoleAdmin
		}

		ctx := WithCaller(r.Context(), caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
