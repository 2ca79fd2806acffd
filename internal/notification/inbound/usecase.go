package inbound

import (
	"context"

	"github.com/pedrosfaria2/email-verifier/internal/notification/usecase"
)

type uc interface {
	SendRegistrationCode(ctx context.Context, in usecase.SendRegistrationCodeInput) error
}
