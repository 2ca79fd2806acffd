package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
)

const maxBodyBytes = 64 << 10

// Request is what endpoints receive in place of *http.Request.
type Request struct {
	*http.Request
}

// GetParam returns the named path segment matched by the router.
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

// DecodeBody reads exactly one JSON object into dst. Unknown fields, a body
// over 64KiB and trailing data all yield an invalid format error.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if dec.Decode(dst) != nil {
		return goerror.NewInvalidFormat()
	}
	if !errors.Is(dec.Decode(new(json.RawMessage)), io.EOF) {
		return goerror.NewInvalidFormat()
	}
	return nil
}
