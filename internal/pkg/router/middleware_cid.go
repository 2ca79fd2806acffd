package router

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
)

const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"

	maxCorrelationIDLen = 128
)

// incomingCIDHeaders are checked in order; the first usable value wins.
var incomingCIDHeaders = []string{HeaderCorrelationID, HeaderRequestID}

// normalizeCID returns "" for values that would be unsafe to echo back in a
// header or a log line.
func normalizeCID(v string) string {
	if strings.IndexFunc(v, unicode.IsControl) >= 0 {
		return ""
	}
	v = strings.TrimSpace(v)
	if len(v) > maxCorrelationIDLen {
		v = v[:maxCorrelationIDLen]
	}
	return v
}

// middlewareCorrelationID makes sure every request context carries a
// correlation ID. It is copied onto published events so a registration can be
// followed from the HTTP call to the mailed code.
func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cid string
			for _, h := range incomingCIDHeaders {
				if cid = normalizeCID(r.Header.Get(h)); cid != "" {
					break
				}
			}
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}

			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cid))
			}
			next.ServeHTTP(w, r)
		})
	}
}
