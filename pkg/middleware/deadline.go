package middleware

import (
	"context"
	"net/http"
)

// DeriveContext bounds a request context, e.g. PostgreSQLAdapter.BatchQueryContext
type DeriveContext func(parent context.Context) (context.Context, context.CancelFunc)

// Deadline runs each request on the context returned by derive
func Deadline(derive DeriveContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := derive(r.Context())
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
