// Package auth carries the opaque authenticated principal through request
// contexts and answers ownership questions about projects.
package auth

import (
	"context"
	"net/http"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context represents the authentication context for a request. Identity and
// session management live upstream; the only thing this service sees is an
// opaque principal id injected by the gateway.
type Context struct {
	// PrincipalID is the opaque user id (from the X-User-ID header).
	PrincipalID string

	// Authenticated indicates whether the request carries a principal.
	Authenticated bool
}

// HeaderUserID is the header containing the authenticated principal's id.
const HeaderUserID = "X-User-ID"

// =============================================================================
// Context Extraction
// =============================================================================

// ExtractFromRequest extracts the auth context from HTTP request headers.
// If X-User-ID is not present, returns an unauthenticated context.
func ExtractFromRequest(r *http.Request) Context {
	principal := r.Header.Get(HeaderUserID)
	if principal == "" {
		return Context{Authenticated: false}
	}
	return Context{PrincipalID: principal, Authenticated: true}
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}
