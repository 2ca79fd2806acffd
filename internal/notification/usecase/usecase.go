package usecase

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"

	"github.com/pedrosfaria2/email-verifier/internal/notification/entity"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/clock"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/config"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/idempotency"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/mail"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

type Usecase struct {
	cfg         config.Config
	clock       clock.Clocker
	validator   validator.Validator
	repoMail    repoMail
	idempotency idempotency.Idempotency
	ins         instrument.Instrumentation
	deliveries  metric.Int64Counter
}

type Dependency struct {
	Config    config.Config
	Clock     clock.Clocker
	Validator validator.Validator
	RepoMail  repoMail
	// Idempotency is optional. Without it every delivery sends a mail.
	Idempotency idempotency.Idempotency
	Instrument  instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	uc := &Usecase{
		cfg:         dep.Config,
		clock:       dep.Clock,
		validator:   dep.Validator,
		repoMail:    dep.RepoMail,
		idempotency: dep.Idempotency,
		ins:         dep.Instrument,
	}

	counter, err := dep.Instrument.Meter("notification.usecase").Int64Counter(
		"notification.deliveries",
		metric.WithDescription("Notification deliveries by trigger and result"),
	)
	if err != nil {
		slog.Error("failed to create notification deliveries counter", "error", err)
	}
	uc.deliveries = counter

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

func (s *Usecase) renderTemplate(name, tpl string, data map[string]any) (string, error) {
	t, err := htmltemplate.New(name).Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Usecase) renderText(name, tpl string, data map[string]any) (string, error) {
	t, err := texttemplate.New(name).Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Usecase) baseEmailTemplateData() map[string]any {
	company := s.cfg.GetString("notification.company_name")
	if company == "" {
		company = "Email Verifier"
	}

	return map[string]any{
		"support_email": s.cfg.GetString("notification.support_email"),
		"company_name":  company,
		"year":          s.clock.Now().Format("2006"),
	}
}

func (s *Usecase) render(tk entity.TriggerKey, data map[string]any) (mail.Message, error) {
	tpl := templates[tk]

	subject, err := s.renderText("subject", tpl.Subject, data)
	if err != nil {
		return mail.Message{}, err
	}
	text, err := s.renderText("text", tpl.TextBody, data)
	if err != nil {
		return mail.Message{}, err
	}
	html, err := s.renderTemplate("html", tpl.HTMLBody, data)
	if err != nil {
		return mail.Message{}, err
	}

	return mail.Message{Subject: subject, TextBody: text, HTMLBody: html}, nil
}
