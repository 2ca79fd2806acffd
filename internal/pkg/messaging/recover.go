package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/stacktrace"
)

// guard runs the handler and turns a panic into an error so the delivery is
// settled like any other failure.
func (d dispatcher) guard(ctx context.Context, msg Message) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}
		slog.ErrorContext(ctx, "messaging handler panicked",
			"driver", d.kind,
			"message_id", msg.ID(),
			"panic", rvr,
			"stack", stacktrace.Frames(debug.Stack()),
		)
		err = fmt.Errorf("messaging: %s handler panic: %v", d.kind, rvr)
	}()

	return d.handler(ctx, msg)
}
