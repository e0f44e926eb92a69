package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// OwnerContextKey is the key for storing the requesting owner in context
	OwnerContextKey ContextKey = "owner"

	// OwnerHeader carries the caller-declared owner identity
	OwnerHeader = "X-Owner-ID"

	// AnonymousOwner is used when no owner header is sent
	AnonymousOwner = "anonymous"

	maxOwnerLength = 128
)

// Owner resolves the owner identity of each request from the X-Owner-ID header
func Owner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				owner = AnonymousOwner
			}
			if len(owner) > maxOwnerLength || strings.ContainsAny(owner, "/\\") {
				http.Error(w, `{"success": false, "message": "invalid owner id"}`, http.StatusBadRequest)
				return
			}

			ctx := context.WithValue(r.Context(), OwnerContextKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromContext returns the request owner, or AnonymousOwner if unset
func OwnerFromContext(ctx context.Context) string {
	owner, ok := ctx.Value(OwnerContextKey).(string)
	if !ok || owner == "" {
		return AnonymousOwner
	}
	return owner
}
