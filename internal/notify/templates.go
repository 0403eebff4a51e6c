package notify

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/routing"
)

// Recipient selects who a template is addressed to.
type Recipient string

const (
	// RecipientCustomer is the order's customer, reached by chat on their phone.
	RecipientCustomer Recipient = "customer"
	// RecipientSupplier is the supplier the router picks for the order number.
	RecipientSupplier Recipient = "supplier"
	// RecipientShipping is the courier when the line has a real tracking number, else the installer.
	RecipientShipping Recipient = "shipping"
)

// ErrUnknownTemplate is returned when rendering a template name that was never registered.
var ErrUnknownTemplate = errors.New("unknown template")

// TemplateConfig defines one message template. Subject, Body and LogMessage are text/template
// sources rendered against TemplateData.
type TemplateConfig struct {
	Name       string    `mapstructure:"name" json:"name"`
	Channel    Channel   `mapstructure:"channel" json:"channel"`
	Recipient  Recipient `mapstructure:"recipient" json:"recipient"`
	Subject    string    `mapstructure:"subject" json:"subject,omitempty"`
	Body       string    `mapstructure:"body" json:"body"`
	LogMessage string    `mapstructure:"log_message" json:"logMessage"`
}

// TemplateData is the value templates execute against.
type TemplateData struct {
	Order    domain.OrderRecord
	Supplier routing.Supplier
	Operator string
}

// Rendered is a template executed for one order line.
type Rendered struct {
	Name       string
	Channel    Channel
	Recipient  Recipient
	Subject    string
	Body       string
	LogMessage string
}

type compiledTemplate struct {
	cfg        TemplateConfig
	subject    *template.Template
	body       *template.Template
	logMessage *template.Template
}

// Templates is a set of compiled message templates keyed by name.
type Templates struct {
	byName map[string]compiledTemplate
}

// DefaultTemplates are used when configuration defines none.
func DefaultTemplates() []TemplateConfig {
	return []TemplateConfig{
		{
			Name:       "shipment_status",
			Channel:    ChannelChat,
			Recipient:  RecipientCustomer,
			Body:       "Hi {{.Order.FirstName}}, this is an update on order {{.Order.OrderNumber}} ({{.Order.SKU}}). Shipment: {{.Order.TrackingLabel}}. Expected delivery: {{.Order.DeliveryEstimate}}.",
			LogMessage: "💬 shipment status sent",
		},
		{
			Name:       "delivery_estimate",
			Channel:    ChannelChat,
			Recipient:  RecipientCustomer,
			Body:       "Hi {{.Order.FirstName}}, order {{.Order.OrderNumber}} is expected in {{.Order.DeliveryEstimate}}.",
			LogMessage: "💬 delivery estimate sent",
		},
		{
			Name:       "check",
			Channel:    ChannelEmail,
			Recipient:  RecipientShipping,
			Subject:    "Status check for order {{.Order.OrderNumber}}",
			Body:       "Please check the status of this order line:\n{{.Order.Summary}}\n",
			LogMessage: "📧 sent check",
		},
		{
			Name:       "return_request",
			Channel:    ChannelEmail,
			Recipient:  RecipientSupplier,
			Subject:    "Return request for order {{.Order.OrderNumber}}",
			Body:       "Hello {{.Supplier.Name}},\nthe customer asked to return this order line:\n{{.Order.Summary}}\n",
			LogMessage: "↩️ return request",
		},
	}
}

// NewTemplates compiles defs. Names must be unique and channels known.
func NewTemplates(defs []TemplateConfig) (*Templates, error) {
	if len(defs) == 0 {
		defs = DefaultTemplates()
	}
	out := &Templates{byName: make(map[string]compiledTemplate, len(defs))}
	for i, def := range defs {
		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" {
			return nil, fmt.Errorf("template %d: name is required", i)
		}
		if _, dup := out.byName[def.Name]; dup {
			return nil, fmt.Errorf("template %q defined twice", def.Name)
		}
		switch def.Channel {
		case ChannelEmail, ChannelChat:
		default:
			return nil, fmt.Errorf("template %q: %w %q", def.Name, ErrUnknownChannel, def.Channel)
		}
		if def.Recipient == "" {
			def.Recipient = RecipientCustomer
			if def.Channel == ChannelEmail {
				def.Recipient = RecipientShipping
			}
		}
		if def.Channel == ChannelChat && def.Recipient != RecipientCustomer {
			return nil, fmt.Errorf("template %q: chat templates can only address the customer", def.Name)
		}
		if def.LogMessage == "" {
			def.LogMessage = def.Name
		}

		compiled := compiledTemplate{cfg: def}
		var err error
		if compiled.subject, err = parse(def.Name+".subject", def.Subject); err != nil {
			return nil, err
		}
		if compiled.body, err = parse(def.Name+".body", def.Body); err != nil {
			return nil, err
		}
		if compiled.logMessage, err = parse(def.Name+".log", def.LogMessage); err != nil {
			return nil, err
		}
		out.byName[def.Name] = compiled
	}
	return out, nil
}

func parse(name, src string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return t, nil
}

// Lookup returns the configuration of a template.
func (t *Templates) Lookup(name string) (TemplateConfig, bool) {
	c, ok := t.byName[name]
	return c.cfg, ok
}

// Names lists the registered template names in sorted order.
func (t *Templates) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template for one order line.
func (t *Templates) Render(name string, data TemplateData) (Rendered, error) {
	c, ok := t.byName[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	out := Rendered{Name: name, Channel: c.cfg.Channel, Recipient: c.cfg.Recipient}
	var err error
	if out.Subject, err = execute(c.subject, data); err != nil {
		return Rendered{}, err
	}
	if out.Body, err = execute(c.body, data); err != nil {
		return Rendered{}, err
	}
	if out.LogMessage, err = execute(c.logMessage, data); err != nil {
		return Rendered{}, err
	}
	return out, nil
}

func execute(t *template.Template, data TemplateData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
