package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/logloader"
)

type ctxKey string

const logLoaderKey ctxKey = "logLoader"

// LogLoaderMiddleware attaches a per-request audit log loader to the request context
func LogLoaderMiddleware(store datasource.LogStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := logloader.NewLogLoader(store)
			ctx := context.WithValue(r.Context(), logLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LogLoaderFromContext retrieves the loader from context
func LogLoaderFromContext(ctx context.Context) *logloader.LogLoader {
	if l, ok := ctx.Value(logLoaderKey).(*logloader.LogLoader); ok {
		return l
	}
	return nil
}
