// Package mailer defines the outbound send boundary. The engine only
// assembles message content and recipients; actual transport is an
// external collaborator behind the Sender interface.
package mailer

import (
	"context"
	"log/slog"
)

// Attachment is one file attached to an outbound message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a fully assembled outbound notification.
type Message struct {
	From        string
	ReplyTo     string
	To          []string
	Cc          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Result is the collaborator's send outcome. A failed send gives no
// guarantee that nothing was delivered, so the queue tracks state and
// retries instead of blindly resending.
type Result struct {
	Success   bool
	MessageID string
	Error     string
}

// Sender delivers assembled messages. Implementations must respect the
// context deadline; the queue bounds each call with a timeout.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
}

// LogSender is the default collaborator when no transport is configured.
// It records the message and reports success, which keeps the queue
// draining in development setups.
type LogSender struct{}

// Send logs the message envelope.
func (LogSender) Send(_ context.Context, msg Message) Result {
	slog.Info("mail send (log only)",
		"to", msg.To, "cc", msg.Cc, "subject", msg.Subject)
	return Result{Success: true}
}
