// Package httpapi exposes order search, selection, notification and audit log endpoints as JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rpattn/orderdesk/internal/auditlog"
	"github.com/rpattn/orderdesk/internal/auth"
	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/dispatch"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/metrics"
	"github.com/rpattn/orderdesk/internal/middleware"
	"github.com/rpattn/orderdesk/internal/notify"
	"github.com/rpattn/orderdesk/internal/orders"
	"github.com/rpattn/orderdesk/internal/routing"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators of a Server.
type Deps struct {
	Cache          *orders.Cache
	Dispatcher     *dispatch.Service
	Router         *routing.Router
	Templates      *notify.Templates
	Logs           datasource.LogStore
	Metrics        *metrics.Registry
	Logger         *zap.Logger
	SortDescending bool
}

type Server struct {
	deps   Deps
	logger *zap.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, logger: logger}
}

// Handler returns the full API with logging, operator, audit log loader and CORS middleware.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", s.handleSearch)
	mux.HandleFunc("POST /api/orders/reload", s.handleReload)
	mux.HandleFunc("POST /api/selection", s.handleSelection)
	mux.HandleFunc("POST /api/notifications", s.handleNotify)
	mux.HandleFunc("POST /api/audit-logs", s.handleAuditLogs)
	mux.HandleFunc("GET /api/suppliers/{orderNumber}", s.handleSupplier)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	var handler http.Handler = mux
	handler = middleware.LogLoaderMiddleware(s.deps.Logs)(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.OperatorMiddleware(handler)
	return corsHandler.Handler(handler)
}

type recordView struct {
	domain.OrderRecord
	PhoneDisplay string `json:"phoneDisplay"`
	ClipboardRow string `json:"clipboardRow"`
	Summary      string `json:"summary"`
}

func views(records []domain.OrderRecord) []recordView {
	out := make([]recordView, len(records))
	for i, r := range records {
		out[i] = recordView{
			OrderRecord:  r,
			PhoneDisplay: r.PhoneDisplay(),
			ClipboardRow: r.ClipboardRow(),
			Summary:      r.Summary(),
		}
	}
	return out
}

type searchResponse struct {
	Query      string       `json:"query"`
	Count      int          `json:"count"`
	UnsafeBulk bool         `json:"unsafeBulk"`
	LoadedAt   time.Time    `json:"loadedAt"`
	Records    []recordView `json:"records"`
}

type selectionRequest struct {
	Query    string             `json:"query"`
	Selected []domain.RecordRef `json:"selected"`
}

type selectionResponse struct {
	Count       int          `json:"count"`
	ImplicitAll bool         `json:"implicitAll"`
	UnsafeBulk  bool         `json:"unsafeBulk"`
	Records     []recordView `json:"records"`
}

type notifyRequest struct {
	Query    string             `json:"query"`
	Selected []domain.RecordRef `json:"selected"`
	Channel  notify.Channel     `json:"channel,omitempty"`
	Template string             `json:"template"`
}

type auditLogsRequest struct {
	Refs []domain.RecordRef `json:"refs"`
}

type auditLogEntry struct {
	Ref     domain.RecordRef `json:"ref"`
	Log     string           `json:"log"`
	Entries []string         `json:"entries"`
}

type reloadResponse struct {
	Table    string            `json:"table"`
	Count    int               `json:"count"`
	Issues   []orders.RowIssue `json:"issues"`
	LoadedAt time.Time         `json:"loadedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	matched, snapshot, ok := s.search(w, r, query)
	if !ok {
		return
	}
	selection := orders.ResolveSelection(matched, nil, s.threshold())
	writeJSON(w, http.StatusOK, searchResponse{
		Query:      query,
		Count:      len(matched),
		UnsafeBulk: selection.UnsafeBulk,
		LoadedAt:   snapshot.LoadedAt,
		Records:    views(matched),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deps.Cache.Reload(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{
		Table:    snapshot.Table,
		Count:    snapshot.Count(),
		Issues:   snapshot.Issues,
		LoadedAt: snapshot.LoadedAt,
	})
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decode(w, r, &req) {
		return
	}
	matched, _, ok := s.search(w, r, req.Query)
	if !ok {
		return
	}
	selection := orders.ResolveSelection(matched, req.Selected, s.threshold())
	writeJSON(w, http.StatusOK, selectionResponse{
		Count:       len(selection.Records),
		ImplicitAll: selection.ImplicitAll,
		UnsafeBulk:  selection.UnsafeBulk,
		Records:     views(selection.Records),
	})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Channel != "" && s.deps.Templates != nil {
		if tmpl, ok := s.deps.Templates.Lookup(req.Template); ok && tmpl.Channel != req.Channel {
			s.writeError(w, http.StatusBadRequest, errors.New("template "+req.Template+" sends over "+string(tmpl.Channel)))
			return
		}
	}

	matched, _, ok := s.search(w, r, req.Query)
	if !ok {
		return
	}
	operator, _ := auth.OperatorFromContext(r.Context())

	report, err := s.deps.Dispatcher.Send(r.Context(), dispatch.Request{
		Matched:  matched,
		Selected: req.Selected,
		Template: req.Template,
		Operator: operator,
	})
	switch {
	case errors.Is(err, dispatch.ErrUnsafeBulk):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, notify.ErrUnknownTemplate), errors.Is(err, dispatch.ErrEmptySelection):
		s.writeError(w, http.StatusBadRequest, err)
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	var req auditLogsRequest
	if !decode(w, r, &req) {
		return
	}
	loader := middleware.LogLoaderFromContext(r.Context())
	if loader == nil {
		s.writeError(w, http.StatusInternalServerError, errors.New("audit log loader unavailable"))
		return
	}

	logs, err := loader.LoadMany(r.Context(), req.Refs)
	switch {
	case errors.Is(err, datasource.ErrRecordNotFound):
		s.writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, datasource.ErrAmbiguousRecord):
		s.writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	out := make([]auditLogEntry, 0, len(req.Refs))
	for _, ref := range req.Refs {
		log := logs[ref]
		out = append(out, auditLogEntry{Ref: ref, Log: log, Entries: auditlog.Entries(log)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSupplier(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("orderNumber")
	supplier, err := s.deps.Router.Route(orderNumber)
	if errors.Is(err, routing.ErrNoSupplier) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error(), "manual": true})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	out := []notify.TemplateConfig{}
	if s.deps.Templates != nil {
		for _, name := range s.deps.Templates.Names() {
			tmpl, _ := s.deps.Templates.Lookup(name)
			out = append(out, tmpl)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, query string) ([]domain.OrderRecord, *orders.Snapshot, bool) {
	snapshot, err := s.deps.Cache.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return nil, nil, false
	}
	matched := orders.Search(snapshot.Records, query)
	matched = orders.SortByDate(matched, s.deps.SortDescending)
	if s.deps.Metrics != nil {
		s.deps.Metrics.Searches.Inc()
		s.deps.Metrics.SearchMatches.Observe(float64(len(matched)))
	}
	return matched, snapshot, true
}

func (s *Server) threshold() int {
	if s.deps.Dispatcher != nil {
		return s.deps.Dispatcher.BulkThreshold()
	}
	return orders.DefaultBulkThreshold
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
