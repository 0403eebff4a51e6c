package middleware

import (
	"net/http"
	"time"

	"github.com/rpattn/orderdesk/internal/auth"

	"go.uber.org/zap"
)

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration of every request
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			}
			if operator, ok := auth.OperatorFromContext(r.Context()); ok {
				fields = append(fields, zap.String("operator", operator))
			}
			logger.Info("http request", fields...)
		})
	}
}

// OperatorMiddleware stores the operator named by the X-Operator header in the request context
func OperatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if operator := r.Header.Get(auth.OperatorHeader); operator != "" {
			r = r.WithContext(auth.ContextWithOperator(r.Context(), operator))
		}
		next.ServeHTTP(w, r)
	})
}
