package mail

import (
	"bytes"
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSMTPHostPortRequired = errors.New("smtp host and port are required")
	ErrSMTPNoRecipients     = errors.New("no recipients provided")
	ErrSMTPNoSender         = errors.New("no sender provided")
)

const defaultSMTPTimeout = 10 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is used when Message.From is empty.
	From string
	// Timeout bounds one delivery including dial.
	Timeout time.Duration
}

// SMTP sends each message over its own connection, upgrading with STARTTLS
// when the server offers it.
type SMTP struct {
	cfg  SMTPConfig
	addr string
	auth smtp.Auth
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}
	cfg.Timeout = cmp.Or(cfg.Timeout, defaultSMTPTimeout)

	s := &SMTP{cfg: cfg, addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))}
	if cfg.Username != "" && cfg.Password != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return ErrSMTPNoRecipients
	}
	from := cmp.Or(msg.From, s.cfg.From)
	if from == "" {
		return ErrSMTPNoSender
	}

	raw, err := compose(from, msg)
	if err != nil {
		return fmt.Errorf("smtp compose: %w", err)
	}
	return s.deliver(ctx, from, rcpts, raw)
}

func (s *SMTP) Close() error { return nil }

func (s *SMTP) deliver(ctx context.Context, from string, rcpts []string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.auth != nil {
		if err := c.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, r := range rcpts {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", r, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

// compose renders the RFC 5322 message. Bcc recipients are left out of the
// headers. A message with both bodies becomes multipart/alternative.
func compose(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer

	head := []string{
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
	}
	if len(msg.Cc) > 0 {
		head = append(head, "Cc: "+strings.Join(msg.Cc, ", "))
	}
	head = append(head,
		"Subject: "+mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
	)

	body, contentType, err := buildBody(msg)
	if err != nil {
		return nil, err
	}
	head = append(head, "Content-Type: "+contentType)

	buf.WriteString(strings.Join(head, "\r\n"))
	buf.WriteString("\r\n\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

func buildBody(msg Message) ([]byte, string, error) {
	const (
		textType = "text/plain; charset=UTF-8"
		htmlType = "text/html; charset=UTF-8"
	)

	switch {
	case msg.HTMLBody == "":
		return []byte(msg.TextBody), textType, nil
	case msg.TextBody == "":
		return []byte(msg.HTMLBody), htmlType, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, part := range []struct{ ctype, body string }{
		{textType, msg.TextBody},
		{htmlType, msg.HTMLBody},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write([]byte(part.body)); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": mw.Boundary()}), nil
}
