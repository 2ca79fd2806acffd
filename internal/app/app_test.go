package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/config"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineConfig = `
app:
  server:
    max_goroutine: 32
    http:
      address: 127.0.0.1:0
modules:
  registration:
    enabled: true
  notification:
    enabled: true
registration:
  code_secret: test-secret
database:
  driver: memory
mail:
  driver: log
messaging:
  driver: memory
  registry: redis
  handler_timeout: 5s
  dead_letter:
    max_deliveries: 3
notification:
  company_name: Acme
  dedup_ttl: 1h
`

var reCode = regexp.MustCompile(`(?m)^ {4}(\S+)$`)

type pipeline struct {
	t      *testing.T
	app    *App
	srv    *httptest.Server
	mailer *mail.Log
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr()+"/0")

	cfg, err := config.NewViperFromBytes("yaml", []byte(pipelineConfig))
	require.NoError(t, err)

	a := newApp(cfg)
	srv := httptest.NewServer(a.httpServer.Handler)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	})

	mailer, ok := a.mail.(*mail.Log)
	require.True(t, ok)

	return &pipeline{t: t, app: a, srv: srv, mailer: mailer}
}

func (p *pipeline) do(method, path string, body any) (int, []byte) {
	p.t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(p.t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, p.srv.URL+path, rd)
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.srv.Client().Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	return resp.StatusCode, out
}

// awaitCode waits until n mails went out and returns the code of the last one.
func (p *pipeline) awaitCode(n int) string {
	p.t.Helper()

	require.Eventually(p.t, func() bool {
		return len(p.mailer.Sent()) >= n
	}, 5*time.Second, 10*time.Millisecond)

	sent := p.mailer.Sent()
	m := reCode.FindStringSubmatch(sent[len(sent)-1].TextBody)
	require.Len(p.t, m, 2)
	return m[1]
}

func TestPipeline_RegisterWithMailedCode(t *testing.T) {
	p := newPipeline(t)

	code, _ := p.do(http.MethodPost, "/request-registration", map[string]string{"email": "Test@Example.com"})
	require.Equal(t, http.StatusNoContent, code)

	confirmation := p.awaitCode(1)
	assert.Equal(t, []string{"test@example.com"}, p.mailer.Sent()[0].To)

	code, body := p.do(http.MethodPost, "/register", map[string]string{"email": "test@example.com", "confirmation_code": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"message":"invalid confirmation code"}`, string(body))

	code, _ = p.do(http.MethodPost, "/register", map[string]string{"email": "test@example.com", "confirmation_code": confirmation})
	assert.Equal(t, http.StatusNoContent, code)

	// same code again is still a success
	code, _ = p.do(http.MethodPost, "/register", map[string]string{"email": "test@example.com", "confirmation_code": confirmation})
	assert.Equal(t, http.StatusNoContent, code)

	code, body = p.do(http.MethodGet, "/registrations/test@example.com", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"request processed successfully","data":{"email":"test@example.com","registered":true}}`, string(body))
}

func TestPipeline_ResubmissionReplacesCode(t *testing.T) {
	p := newPipeline(t)

	code, _ := p.do(http.MethodPost, "/request-registration", map[string]string{"email": "test@example.com"})
	require.Equal(t, http.StatusNoContent, code)
	first := p.awaitCode(1)

	code, _ = p.do(http.MethodPost, "/request-registration", map[string]string{"email": "test@example.com"})
	require.Equal(t, http.StatusNoContent, code)
	second := p.awaitCode(2)
	require.NotEqual(t, first, second)

	code, _ = p.do(http.MethodPost, "/register", map[string]string{"email": "test@example.com", "confirmation_code": first})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = p.do(http.MethodPost, "/register", map[string]string{"email": "test@example.com", "confirmation_code": second})
	assert.Equal(t, http.StatusNoContent, code)
}

func TestPipeline_UnknownEmailIsRejected(t *testing.T) {
	p := newPipeline(t)

	code, _ := p.do(http.MethodPost, "/register", map[string]string{"email": "unknown@example.com", "confirmation_code": "0000"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = p.do(http.MethodPost, "/request-registration", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestPipeline_InfoAndHealth(t *testing.T) {
	p := newPipeline(t)

	code, _ := p.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body := p.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"disabled","redis":"ok"}}`, string(body))
}
