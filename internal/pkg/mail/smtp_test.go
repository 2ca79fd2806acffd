package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTP_Validation(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{Host: "mail"})
	assert.ErrorIs(t, err, ErrSMTPHostPortRequired)

	s, err := NewSMTP(SMTPConfig{Host: "mail", Port: 25})
	require.NoError(t, err)
	assert.Equal(t, "mail:25", s.addr)

	err = s.Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrSMTPNoRecipients)

	err = s.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, ErrSMTPNoSender)
}

func TestBuildBody(t *testing.T) {
	body, ct, err := buildBody(Message{TextBody: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", string(body))
	assert.Equal(t, "text/plain; charset=UTF-8", ct)

	body, ct, err = buildBody(Message{HTMLBody: "<b>x</b>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", string(body))
	assert.Equal(t, "text/html; charset=UTF-8", ct)

	body, ct, err = buildBody(Message{TextBody: "plain", HTMLBody: "<b>x</b>"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "multipart/alternative; boundary="))
	assert.Contains(t, string(body), "plain")
	assert.Contains(t, string(body), "<b>x</b>")
}

func TestCompose_OmitsBcc(t *testing.T) {
	raw, err := compose("noreply@example.com", Message{
		To:       []string{"a@example.com"},
		Cc:       []string{"c@example.com"},
		Bcc:      []string{"hidden@example.com"},
		Subject:  "Confirme seu cadastro",
		TextBody: "code",
	})
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "From: noreply@example.com\r\n")
	assert.Contains(t, s, "To: a@example.com\r\n")
	assert.Contains(t, s, "Cc: c@example.com\r\n")
	assert.NotContains(t, s, "hidden@example.com")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\ncode"))
}

func TestLog(t *testing.T) {
	l := NewLog()
	require.NoError(t, l.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s", TextBody: "b"}))
	assert.ErrorIs(t, l.Send(context.Background(), Message{}), ErrSMTPNoRecipients)

	sent := l.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "s", sent[0].Subject)
	require.NoError(t, l.Close())
}
