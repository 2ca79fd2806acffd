package mail

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Log is a Mail implementation that writes messages to the structured log
// instead of delivering them. It keeps the last sent messages for inspection.
type Log struct {
	mu   sync.Mutex
	sent []Message
}

// NewLog returns a logging mailer.
func NewLog() *Log {
	return &Log{}
}

// Send records msg and logs its envelope and text body.
func (l *Log) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.Recipients()) == 0 {
		return ErrSMTPNoRecipients
	}

	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()

	slog.InfoContext(ctx, "mail sent to log",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}

// Sent returns a copy of every message sent so far.
func (l *Log) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}

// Close implements io.Closer.
func (l *Log) Close() error {
	return nil
}
