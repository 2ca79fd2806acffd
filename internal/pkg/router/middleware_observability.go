package router

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// bodyLogLimit caps how much of each request and response body is logged.
const bodyLogLimit = 32 << 10

// snippet keeps the first bodyLogLimit bytes written to it.
type snippet struct {
	buf       bytes.Buffer
	truncated bool
}

func (s *snippet) keep(p []byte) {
	if s.truncated {
		return
	}
	room := bodyLogLimit - s.buf.Len()
	if len(p) > room {
		p = p[:room]
		s.truncated = true
	}
	s.buf.Write(p)
}

func (s *snippet) String() string {
	b := s.buf.Bytes()
	switch {
	case len(b) == 0:
		return ""
	case !utf8.Valid(b):
		return "<binary body omitted>"
	case s.truncated:
		return string(b) + "...(truncated)"
	}
	return string(b)
}

// responseCapture records the status, size and a body snippet of the response
// along with the error the endpoint returned, if any.
type responseCapture struct {
	http.ResponseWriter
	status  int
	written int
	body    snippet
	err     error
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.keep(p)
	n, err := c.ResponseWriter.Write(p)
	c.written += n
	return n, err
}

func (c *responseCapture) SetError(err error) { c.err = err }

func (c *responseCapture) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (c *responseCapture) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// peekBody copies up to bodyLogLimit bytes of the request body for logging and
// restores the body so the endpoint still reads all of it.
func peekBody(r *http.Request) string {
	var s snippet
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	head, _ := io.ReadAll(io.LimitReader(r.Body, bodyLogLimit+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	s.keep(head)
	return s.String()
}

func headerFields(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

func routeOf(r *http.Request) string {
	if p := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); p != "" {
		return p
	}
	return r.URL.Path
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(m metric.Meter) httpMetrics {
	var hm httpMetrics
	var err error

	hm.requests, err = m.Int64Counter("http.server.requests",
		metric.WithDescription("Number of HTTP requests received"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	hm.duration, err = m.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration in milliseconds"), metric.WithUnit("ms"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return hm
}

func (hm httpMetrics) record(r *http.Request, elapsed time.Duration, attrs []attribute.KeyValue) {
	set := metric.WithAttributes(attrs...)
	if hm.requests != nil {
		hm.requests.Add(r.Context(), 1, set)
	}
	if hm.duration != nil {
		hm.duration.Record(r.Context(), float64(elapsed.Microseconds())/1000, set)
	}
}

// middlewareObservability opens a server span per request, logs the request
// and response and records request metrics.
func middlewareObservability(ins instrument.Instrumentation) Middleware {
	tracer := ins.Tracer("http.server")
	metrics := newHTTPMetrics(ins.Meter("http.server"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeOf(r)
			base := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
			}

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(base...),
			)
			defer span.End()
			r = r.WithContext(ctx)

			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"uri", r.RequestURI,
				"headers", headerFields(r.Header),
				"body", peekBody(r),
			)

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.code()
			elapsed := time.Since(start)
			attrs := append(base, semconv.HTTPResponseStatusCodeKey.Int(status))

			span.SetAttributes(attrs...)
			span.SetAttributes(
				semconv.ServerAddressKey.String(r.Host),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.Int("http.response_content_length", capture.written),
			)
			if capture.err != nil {
				span.RecordError(capture.err)
			}
			switch {
			case status < http.StatusInternalServerError:
				span.SetStatus(codes.Ok, "")
			case capture.err != nil:
				span.SetStatus(codes.Error, capture.err.Error())
			default:
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			metrics.record(r, elapsed, attrs)

			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"status", status,
				"bytes", capture.written,
				"latency_ms", elapsed.Milliseconds(),
				"body", capture.body.String(),
			)
		})
	}
}
