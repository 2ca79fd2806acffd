package event

import (
	"context"
	"maps"
	"slices"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
)

// OutgoingHeaders carries the correlation id and the active trace of ctx
// onto a published message.
func OutgoingHeaders(ctx context.Context) []messaging.Header {
	var headers []messaging.Header
	if cID := instrument.GetCorrelationID(ctx); cID != "" {
		headers = append(headers, messaging.Header{Key: HeaderCorrelationID, Value: []byte(cID)})
	}

	trace := instrument.InjectTrace(ctx)
	for _, k := range slices.Sorted(maps.Keys(trace)) {
		headers = append(headers, messaging.Header{Key: k, Value: []byte(trace[k])})
	}
	return headers
}

// IncomingContext restores what OutgoingHeaders wrote. A message without a
// correlation id gets a fresh one from gen.
func IncomingContext(ctx context.Context, headers []messaging.Header, gen uid.StringID) context.Context {
	var cID string
	carrier := make(map[string]string, len(headers))
	for _, h := range headers {
		if len(h.Value) == 0 {
			continue
		}
		if h.Key == HeaderCorrelationID {
			cID = string(h.Value)
			continue
		}
		carrier[h.Key] = string(h.Value)
	}

	if cID == "" && gen != nil {
		cID = gen.Generate()
	}
	return instrument.SetCorrelationID(instrument.ExtractTrace(ctx, carrier), cID)
}
