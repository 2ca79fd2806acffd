package mail

import (
	"context"
	"io"
	"slices"
)

// Message is a rendered email ready to hand to a provider.
type Message struct {
	// From overrides the provider's configured sender when set.
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	// HTMLBody is sent as an alternative part next to TextBody when set.
	HTMLBody string
}

// Recipients returns every envelope recipient: To, then Cc, then Bcc.
func (m Message) Recipients() []string {
	return slices.Concat(m.To, m.Cc, m.Bcc)
}

type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
