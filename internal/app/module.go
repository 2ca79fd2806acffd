package app

import (
	"log/slog"
	"os"

	"github.com/pedrosfaria2/email-verifier/internal/notification"
	"github.com/pedrosfaria2/email-verifier/internal/registration"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.registration.enabled") {
		if err := registration.New(registration.Dependency{
			Ctx:        a.ctx,
			DBConn:     a.dbConn,
			Exchange:   a.exchange,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Code:       a.code,
			HMAC:       a.hmac,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Router:     a.router,
		}); err != nil {
			slog.Error("failed to init module registration", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:         a.ctx,
			Exchange:    a.exchange,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.uuid,
			Clock:       a.clock,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
			Mail:        a.mail,
			Idempotency: a.idemp,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
