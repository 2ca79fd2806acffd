package inbound

import (
	"context"

	"github.com/pedrosfaria2/email-verifier/internal/registration/usecase"
)

type ucConsumer interface {
	GenerateCodeAndPublish(ctx context.Context, in usecase.GenerateCodeInput) error
}

type ucJob interface {
	PurgeConfirmed(ctx context.Context, in usecase.PurgeConfirmedInput) (int64, error)
}

type uc interface {
	ucConsumer
	ucJob

	RequestRegistration(ctx context.Context, in usecase.RequestRegistrationInput) error
	Confirm(ctx context.Context, in usecase.ConfirmInput) (*usecase.ConfirmOutput, error)
	RegistrationStatus(ctx context.Context, in usecase.RegistrationStatusInput) (*usecase.RegistrationStatusOutput, error)
}
