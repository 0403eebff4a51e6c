// Package notify delivers rendered order notifications over email and chat.
package notify

import (
	"context"
	"errors"
)

// Channel names a notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

var (
	ErrNoRecipient    = errors.New("notification has no recipient")
	ErrNotConfigured  = errors.New("transport not configured")
	ErrUnknownChannel = errors.New("unknown notification channel")
)

// Email is one outbound message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// Mailer sends email. Failures are returned, never panicked.
type Mailer interface {
	SendEmail(ctx context.Context, email Email) error
}

// ChatSender sends a chat message to an international dialing number.
type ChatSender interface {
	SendChat(ctx context.Context, dialing, body string) error
}

// Disabled is a transport for deployments without email or chat configured.
type Disabled struct{}

func (Disabled) SendEmail(context.Context, Email) error        { return ErrNotConfigured }
func (Disabled) SendChat(context.Context, string, string) error { return ErrNotConfigured }
