package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/routing"
)

func TestWebhookChatPostsMessage(t *testing.T) {
	var got chatMessage
	var auth, requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	chat := NewWebhookChat(WebhookConfig{URL: server.URL, Token: "secret"})
	if err := chat.SendChat(context.Background(), "972521234567", "hello"); err != nil {
		t.Fatalf("send chat: %v", err)
	}

	if got.Phone != "972521234567" || got.Message != "hello" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if requestID == "" {
		t.Fatalf("expected request id header")
	}
}

func TestWebhookChatReportsGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	chat := NewWebhookChat(WebhookConfig{URL: server.URL, Timeout: time.Second})
	err := chat.SendChat(context.Background(), "972521234567", "hello")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestWebhookChatRequiresConfiguration(t *testing.T) {
	chat := NewWebhookChat(WebhookConfig{})
	if err := chat.SendChat(context.Background(), "972521234567", "hello"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}

	chat = NewWebhookChat(WebhookConfig{URL: "http://127.0.0.1:1"})
	if err := chat.SendChat(context.Background(), "", "hello"); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected no recipient, got %v", err)
	}
}

func TestSMTPMailerValidatesBeforeDialing(t *testing.T) {
	if err := NewSMTPMailer(SMTPConfig{}).SendEmail(context.Background(), Email{To: []string{"a@b.c"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}

	mailer := NewSMTPMailer(SMTPConfig{Host: "mail.example.com"})
	mailer.dial = nil
	if err := mailer.SendEmail(context.Background(), Email{To: []string{" ", ""}}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected no recipient, got %v", err)
	}
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 22, 0, 0, time.UTC)
	msg := string(buildMessage("desk@example.com", []string{"a@example.com", "b@example.com"}, Email{
		Subject: "בדיקה",
		Body:    "line one\nline two",
	}, now))

	for _, want := range []string{
		"From: desk@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: =?utf-8?q?",
		"Date: Tue, 05 Mar 2024 14:22:00 +0000\r\n",
		"Content-Type: text/plain; charset=\"utf-8\"\r\n",
		"\r\n\r\nline one\r\nline two\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestDefaultTemplatesRender(t *testing.T) {
	templates, err := NewTemplates(nil)
	if err != nil {
		t.Fatalf("new templates: %v", err)
	}
	order := domain.OrderRecord{
		OrderNumber:      "123-456",
		SKU:              "SOFA-1",
		FirstName:        "Dana",
		CustomerName:     "Dana Levi",
		TrackingLabel:    "install",
		DeliveryEstimate: "7-14 business days",
	}

	rendered, err := templates.Render("shipment_status", TemplateData{Order: order})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rendered.Channel != ChannelChat || rendered.Recipient != RecipientCustomer {
		t.Fatalf("unexpected routing %+v", rendered)
	}
	if !strings.Contains(rendered.Body, "Hi Dana") || !strings.Contains(rendered.Body, "123-456") {
		t.Fatalf("unexpected body %q", rendered.Body)
	}
	if rendered.LogMessage != "💬 shipment status sent" {
		t.Fatalf("unexpected log message %q", rendered.LogMessage)
	}

	rendered, err = templates.Render("return_request", TemplateData{Order: order, Supplier: routing.Supplier{Name: "Acme"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rendered.Subject != "Return request for order 123-456" || !strings.HasPrefix(rendered.Body, "Hello Acme") {
		t.Fatalf("unexpected email %+v", rendered)
	}

	if _, err := templates.Render("missing", TemplateData{}); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected unknown template, got %v", err)
	}
}

func TestNewTemplatesValidates(t *testing.T) {
	cases := []struct {
		name string
		defs []TemplateConfig
	}{
		{name: "missing name", defs: []TemplateConfig{{Channel: ChannelChat, Body: "x"}}},
		{name: "unknown channel", defs: []TemplateConfig{{Name: "a", Channel: "fax", Body: "x"}}},
		{name: "duplicate", defs: []TemplateConfig{{Name: "a", Channel: ChannelChat}, {Name: "a", Channel: ChannelChat}}},
		{name: "chat to supplier", defs: []TemplateConfig{{Name: "a", Channel: ChannelChat, Recipient: RecipientSupplier}}},
		{name: "bad syntax", defs: []TemplateConfig{{Name: "a", Channel: ChannelChat, Body: "{{.Order"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTemplates(tc.defs); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTemplateDefaults(t *testing.T) {
	templates, err := NewTemplates([]TemplateConfig{{Name: "ping", Channel: ChannelEmail, Body: "x"}})
	if err != nil {
		t.Fatalf("new templates: %v", err)
	}
	cfg, ok := templates.Lookup("ping")
	if !ok {
		t.Fatalf("template not registered")
	}
	if cfg.Recipient != RecipientShipping || cfg.LogMessage != "ping" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if names := templates.Names(); len(names) != 1 || names[0] != "ping" {
		t.Fatalf("unexpected names %v", names)
	}
}
