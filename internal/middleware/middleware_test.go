package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpattn/orderdesk/internal/auth"
	"github.com/rpattn/orderdesk/internal/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type emptyStore struct{}

func (emptyStore) ReadLog(context.Context, domain.RecordRef) (string, error) { return "", nil }
func (emptyStore) ReadLogs(_ context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error) {
	return map[domain.RecordRef]string{}, nil
}
func (emptyStore) WriteLog(context.Context, domain.RecordRef, string) error { return nil }

func TestLogLoaderMiddlewareAttachesLoader(t *testing.T) {
	var found bool
	handler := LogLoaderMiddleware(emptyStore{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		found = LogLoaderFromContext(r.Context()) != nil
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !found {
		t.Fatalf("expected loader in request context")
	}
	if LogLoaderFromContext(context.Background()) != nil {
		t.Fatalf("expected no loader outside middleware")
	}
}

func TestLoggingMiddlewareRecordsStatusAndOperator(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := OperatorMiddleware(LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if op, _ := auth.OperatorFromContext(r.Context()); op != "dana" {
			t.Errorf("unexpected operator %q", op)
		}
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set(auth.OperatorHeader, "dana")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) || fields["path"] != "/api/orders" || fields["operator"] != "dana" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
