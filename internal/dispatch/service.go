// Package dispatch sends notifications for a resolved selection and appends the audit trail
// of every line that was actually notified.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/orderdesk/internal/auditlog"
	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/metrics"
	"github.com/rpattn/orderdesk/internal/notify"
	"github.com/rpattn/orderdesk/internal/orders"
	"github.com/rpattn/orderdesk/internal/phone"
	"github.com/rpattn/orderdesk/internal/routing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnsafeBulk is returned, before anything is sent, when an implicit selection exceeds the
// bulk threshold.
var ErrUnsafeBulk = errors.New("implicit selection exceeds bulk threshold; select rows explicitly")

// ErrEmptySelection is returned when the selection resolves to no records.
var ErrEmptySelection = errors.New("no records selected")

// Config tunes dispatch behavior.
type Config struct {
	BulkThreshold  int    `mapstructure:"bulk_threshold"`
	TimeZone       string `mapstructure:"time_zone"`
	CourierEmail   string `mapstructure:"courier_email"`
	InstallerEmail string `mapstructure:"installer_email"`
}

// Deps are the collaborators of a Service. Mailer and Chat default to notify.Disabled.
type Deps struct {
	Templates *notify.Templates
	Mailer    notify.Mailer
	Chat      notify.ChatSender
	Router    *routing.Router
	Logs      datasource.LogStore
	Logger    *zap.Logger
	Metrics   *metrics.Registry
}

// Request asks for one template to be sent to the selected subset of matched records.
type Request struct {
	Matched  []domain.OrderRecord
	Selected []domain.RecordRef
	Template string
	Operator string
}

// Outcome reports what happened to one order line.
type Outcome struct {
	Key       domain.RecordKey `json:"key"`
	Source    domain.SourceRef `json:"source"`
	Channel   notify.Channel   `json:"channel"`
	Recipient string           `json:"recipient,omitempty"`
	Sent      bool             `json:"sent"`
	Error     string           `json:"error,omitempty"`
	AuditLog  string           `json:"auditLog,omitempty"`
	LogError  string           `json:"logError,omitempty"`
}

// Report summarizes one dispatch.
type Report struct {
	BatchID     string    `json:"batchId"`
	Template    string    `json:"template"`
	ImplicitAll bool      `json:"implicitAll"`
	Outcomes    []Outcome `json:"outcomes"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	LogFailures int       `json:"logFailures"`
}

// Service renders, sends and records notifications.
type Service struct {
	cfg       Config
	loc       *time.Location
	now       func() time.Time
	templates *notify.Templates
	mailer    notify.Mailer
	chat      notify.ChatSender
	router    *routing.Router
	logs      datasource.LogStore
	logger    *zap.Logger
	metrics   *metrics.Registry
}

// NewService validates cfg and wires deps.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Templates == nil {
		return nil, errors.New("dispatch: templates are required")
	}
	if deps.Logs == nil {
		return nil, errors.New("dispatch: log store is required")
	}
	if cfg.BulkThreshold <= 0 {
		cfg.BulkThreshold = orders.DefaultBulkThreshold
	}
	loc := time.Local
	if cfg.TimeZone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.TimeZone); err != nil {
			return nil, fmt.Errorf("dispatch: invalid time zone %q: %w", cfg.TimeZone, err)
		}
	}
	if deps.Mailer == nil {
		deps.Mailer = notify.Disabled{}
	}
	if deps.Chat == nil {
		deps.Chat = notify.Disabled{}
	}
	if deps.Router == nil {
		deps.Router, _ = routing.NewRouter(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		loc:       loc,
		now:       time.Now,
		templates: deps.Templates,
		mailer:    deps.Mailer,
		chat:      deps.Chat,
		router:    deps.Router,
		logs:      deps.Logs,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}, nil
}

// BulkThreshold is the largest implicit selection Send accepts.
func (s *Service) BulkThreshold() int {
	return s.cfg.BulkThreshold
}

// Send resolves the selection and notifies each record in order. A failed send is reported
// and leaves that line's log untouched; a failed log write is reported without undoing the
// send.
func (s *Service) Send(ctx context.Context, req Request) (Report, error) {
	if _, ok := s.templates.Lookup(req.Template); !ok {
		return Report{}, fmt.Errorf("%w: %s", notify.ErrUnknownTemplate, req.Template)
	}

	selection := orders.ResolveSelection(req.Matched, req.Selected, s.cfg.BulkThreshold)
	if selection.UnsafeBulk {
		if s.metrics != nil {
			s.metrics.UnsafeBulkRefused.Inc()
		}
		s.logger.Warn("refused unsafe bulk notification",
			zap.Int("records", len(selection.Records)),
			zap.Int("threshold", s.cfg.BulkThreshold),
			zap.String("template", req.Template),
		)
		return Report{}, fmt.Errorf("%w (%d > %d)", ErrUnsafeBulk, len(selection.Records), s.cfg.BulkThreshold)
	}
	if len(selection.Records) == 0 {
		return Report{}, ErrEmptySelection
	}

	report := Report{
		BatchID:     uuid.NewString(),
		Template:    req.Template,
		ImplicitAll: selection.ImplicitAll,
		Outcomes:    make([]Outcome, 0, len(selection.Records)),
	}
	logger := s.logger.With(zap.String("batch", report.BatchID), zap.String("template", req.Template), zap.String("operator", req.Operator))

	for _, record := range selection.Records {
		outcome := s.sendOne(ctx, record, req, logger)
		switch {
		case !outcome.Sent:
			report.Failed++
		case outcome.LogError != "":
			report.Sent++
			report.LogFailures++
		default:
			report.Sent++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	logger.Info("dispatch finished",
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("log_failures", report.LogFailures),
	)
	return report, nil
}

func (s *Service) sendOne(ctx context.Context, record domain.OrderRecord, req Request, logger *zap.Logger) Outcome {
	outcome := Outcome{Key: record.Key(), Source: record.Source}
	logger = logger.With(zap.Stringer("record", record.Ref()))

	supplier, routeErr := s.router.Route(record.OrderNumber)
	rendered, err := s.templates.Render(req.Template, notify.TemplateData{Order: record, Supplier: supplier, Operator: req.Operator})
	if err != nil {
		return s.fail(outcome, err, logger)
	}
	outcome.Channel = rendered.Channel

	if err := s.deliver(ctx, record, rendered, supplier, routeErr, &outcome); err != nil {
		return s.fail(outcome, err, logger)
	}
	outcome.Sent = true
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(string(rendered.Channel)).Inc()
	}

	// The stored log may be newer than the loaded snapshot.
	existing, err := s.logs.ReadLog(ctx, record.Ref())
	if err != nil {
		return s.failLog(outcome, err, logger)
	}
	updated := auditlog.AppendEntry(existing, rendered.LogMessage, s.now().In(s.loc))
	if err := s.logs.WriteLog(ctx, record.Ref(), updated); err != nil {
		return s.failLog(outcome, err, logger)
	}
	outcome.AuditLog = updated
	if s.metrics != nil {
		s.metrics.AuditWrites.Inc()
	}
	logger.Info("notification sent", zap.String("channel", string(rendered.Channel)), zap.String("recipient", outcome.Recipient))
	return outcome
}

func (s *Service) deliver(ctx context.Context, record domain.OrderRecord, rendered notify.Rendered, supplier routing.Supplier, routeErr error, outcome *Outcome) error {
	switch rendered.Channel {
	case notify.ChannelChat:
		dialing, ok := phone.DialingNumber(record.RawPhone)
		if !ok {
			return notify.ErrNoRecipient
		}
		outcome.Recipient = dialing
		return s.chat.SendChat(ctx, dialing, rendered.Body)

	case notify.ChannelEmail:
		to, err := s.emailRecipient(record, rendered.Recipient, supplier, routeErr)
		if err != nil {
			return err
		}
		outcome.Recipient = to
		return s.mailer.SendEmail(ctx, notify.Email{To: []string{to}, Subject: rendered.Subject, Body: rendered.Body})

	default:
		return fmt.Errorf("%w: %s", notify.ErrUnknownChannel, rendered.Channel)
	}
}

func (s *Service) emailRecipient(record domain.OrderRecord, recipient notify.Recipient, supplier routing.Supplier, routeErr error) (string, error) {
	var to string
	switch recipient {
	case notify.RecipientSupplier:
		if routeErr != nil {
			return "", routeErr
		}
		to = supplier.Email
	case notify.RecipientShipping:
		to = s.cfg.InstallerEmail
		if record.HasShipment() {
			to = s.cfg.CourierEmail
		}
	default:
		return "", fmt.Errorf("email templates cannot address %q", recipient)
	}
	if to == "" {
		return "", notify.ErrNoRecipient
	}
	return to, nil
}

func (s *Service) fail(outcome Outcome, err error, logger *zap.Logger) Outcome {
	outcome.Error = err.Error()
	if s.metrics != nil {
		s.metrics.NotificationErrors.WithLabelValues(string(outcome.Channel)).Inc()
	}
	logger.Warn("notification failed", zap.Error(err))
	return outcome
}

func (s *Service) failLog(outcome Outcome, err error, logger *zap.Logger) Outcome {
	outcome.LogError = err.Error()
	if s.metrics != nil {
		s.metrics.AuditWriteFailures.Inc()
	}
	logger.Error("audit log write failed after send", zap.Error(err))
	return outcome
}
