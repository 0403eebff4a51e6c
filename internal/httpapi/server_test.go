package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/dispatch"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/metrics"
	"github.com/rpattn/orderdesk/internal/notify"
	"github.com/rpattn/orderdesk/internal/orders"
	"github.com/rpattn/orderdesk/internal/routing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryBackend is an in-memory table with audit logs keyed by row number.
type memoryBackend struct {
	mu      sync.Mutex
	rows    [][]string
	logs    map[int]string
	loadErr error
}

var headers = []string{"order_number", "sku", "customer_name", "phone", "tracking_number", "order_date"}

func (m *memoryBackend) LoadRows(context.Context) (datasource.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return datasource.Table{}, m.loadErr
	}
	table := datasource.Table{Name: "Sheet1", Headers: headers}
	for i, cells := range m.rows {
		table.Rows = append(table.Rows, domain.RawRow{Cells: cells, Headers: headers, RowNumber: i + 2, Table: "Sheet1"})
	}
	return table, nil
}

func (m *memoryBackend) ReadLog(ctx context.Context, ref domain.RecordRef) (string, error) {
	logs, err := m.ReadLogs(ctx, []domain.RecordRef{ref})
	return logs[ref], err
}

func (m *memoryBackend) ReadLogs(_ context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.RecordRef]string, len(refs))
	for _, ref := range refs {
		if ref.Source.Row < 2 || ref.Source.Row-2 >= len(m.rows) {
			return nil, datasource.ErrRecordNotFound
		}
		out[ref] = m.logs[ref.Source.Row]
	}
	return out, nil
}

func (m *memoryBackend) WriteLog(_ context.Context, ref domain.RecordRef, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[ref.Source.Row] = value
	return nil
}

func (m *memoryBackend) Close() error { return nil }

type recordingChat struct {
	mu   sync.Mutex
	sent int
}

func (c *recordingChat) SendChat(context.Context, string, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	return nil
}

func newBackend(n int) *memoryBackend {
	backend := &memoryBackend{logs: make(map[int]string)}
	backend.rows = append(backend.rows,
		[]string{"123-456", "SOFA", "Dana Levi", "052-1234567", "none", "05/03/2024"},
		[]string{"999-123", "CHAIR", "Avi Cohen", "054-7654321", "LP00999", "04/03/2024"},
	)
	for i := 0; i < n; i++ {
		backend.rows = append(backend.rows, []string{"BULK-" + strconv.Itoa(i), "X", "Bulk Buyer", "050-0000000", "", ""})
	}
	return backend
}

func newTestServer(t *testing.T, backend *memoryBackend, chat *recordingChat) http.Handler {
	t.Helper()
	reg := metrics.NewRegistry()
	cache := orders.NewCache(backend, orders.NamedMapping(nil), 0, zap.NewNop(), reg)
	templates, err := notify.NewTemplates(nil)
	require.NoError(t, err)
	router, err := routing.NewRouter([]routing.Rule{
		{Kind: routing.RuleDigits, Pattern: "9", Length: 6, Supplier: routing.Supplier{Name: "Nine", Email: "nine@example.test"}},
	})
	require.NoError(t, err)
	dispatcher, err := dispatch.NewService(dispatch.Config{TimeZone: "UTC"}, dispatch.Deps{
		Templates: templates,
		Chat:      chat,
		Router:    router,
		Logs:      backend,
		Metrics:   reg,
	})
	require.NoError(t, err)

	return New(Deps{
		Cache:      cache,
		Dispatcher: dispatcher,
		Router:     router,
		Templates:  templates,
		Logs:       backend,
		Metrics:    reg,
	}).Handler([]string{"http://localhost:3000"})
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("X-Operator", "dana")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	h := newTestServer(t, newBackend(0), &recordingChat{})

	rec := do(t, h, http.MethodGet, "/api/orders?q=123", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int `json:"count"`
		Records []struct {
			OrderNumber  string `json:"orderNumber"`
			PhoneDisplay string `json:"phoneDisplay"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	// ascending by order date
	require.Equal(t, "999-123", resp.Records[0].OrderNumber)
	require.Equal(t, "0521234567", resp.Records[1].PhoneDisplay)
}

func TestSearchEndpointLoadFailure(t *testing.T) {
	backend := newBackend(0)
	backend.loadErr = errors.New("sheet unreachable")
	h := newTestServer(t, backend, &recordingChat{})

	rec := do(t, h, http.MethodGet, "/api/orders?q=123", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNotifyRefusesUnsafeBulk(t *testing.T) {
	chat := &recordingChat{}
	h := newTestServer(t, newBackend(15), chat)

	rec := do(t, h, http.MethodGet, "/api/orders?q=BULK", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"unsafeBulk":true`)

	rec = do(t, h, http.MethodPost, "/api/notifications", map[string]any{"query": "BULK", "template": "shipment_status"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Zero(t, chat.sent)
}

func TestNotifyWritesAuditLog(t *testing.T) {
	chat := &recordingChat{}
	backend := newBackend(0)
	h := newTestServer(t, backend, chat)

	rec := do(t, h, http.MethodPost, "/api/notifications", map[string]any{
		"query":    "123-456",
		"channel":  "chat",
		"template": "shipment_status",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report dispatch.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 1, report.Sent)
	require.Equal(t, 1, chat.sent)

	ref := domain.RecordRef{
		Key:    domain.RecordKey{OrderNumber: "123-456", SKU: "SOFA"},
		Source: domain.SourceRef{Table: "Sheet1", Row: 2},
	}
	rec = do(t, h, http.MethodPost, "/api/audit-logs", map[string]any{"refs": []domain.RecordRef{ref}})
	require.Equal(t, http.StatusOK, rec.Code)

	var logs []struct {
		Log     string   `json:"log"`
		Entries []string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	require.Contains(t, logs[0].Log, "shipment status sent")
	require.Len(t, logs[0].Entries, 1)
}

func TestNotifyRejectsChannelMismatch(t *testing.T) {
	h := newTestServer(t, newBackend(0), &recordingChat{})

	rec := do(t, h, http.MethodPost, "/api/notifications", map[string]any{
		"query":    "123-456",
		"channel":  "email",
		"template": "shipment_status",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectionEndpoint(t *testing.T) {
	h := newTestServer(t, newBackend(15), &recordingChat{})

	rec := do(t, h, http.MethodPost, "/api/selection", map[string]any{
		"query": "BULK",
		"selected": []domain.RecordRef{{
			Key:    domain.RecordKey{OrderNumber: "BULK-3", SKU: "X"},
			Source: domain.SourceRef{Table: "Sheet1", Row: 7},
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count       int  `json:"count"`
		ImplicitAll bool `json:"implicitAll"`
		UnsafeBulk  bool `json:"unsafeBulk"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.False(t, resp.ImplicitAll)
	require.False(t, resp.UnsafeBulk)
}

func TestSupplierEndpoint(t *testing.T) {
	h := newTestServer(t, newBackend(0), &recordingChat{})

	rec := do(t, h, http.MethodGet, "/api/suppliers/912345", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "nine@example.test")

	rec = do(t, h, http.MethodGet, "/api/suppliers/123-456", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"manual":true`)
}

func TestReloadAndHealth(t *testing.T) {
	h := newTestServer(t, newBackend(0), &recordingChat{})

	rec := do(t, h, http.MethodPost, "/api/orders/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":2`)

	rec = do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "orderdesk_loads_total")
}
