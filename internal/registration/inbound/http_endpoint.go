package inbound

import (
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/router"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
	"github.com/pedrosfaria2/email-verifier/internal/registration/usecase"
)

// HTTPEndpoint exposes the registration submission and confirmation handlers.
type HTTPEndpoint struct {
	uc uc
}

// RequestRegistration accepts an email and answers 204 once the submission
// is on the request topic.
func (h *HTTPEndpoint) RequestRegistration(r *router.Request) (any, error) {
	var req RequestRegistrationRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.RequestRegistration(r.Context(), usecase.RequestRegistrationInput{
		Email: req.Email,
	}); err != nil {
		return nil, err
	}

	return nil, nil
}

// Register confirms an email with its code. A rejected code answers 401.
func (h *HTTPEndpoint) Register(r *router.Request) (any, error) {
	var req RegisterRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Confirm(r.Context(), usecase.ConfirmInput{
		Email: req.Email,
		Code:  req.ConfirmationCode,
	})
	if err != nil {
		return nil, err
	}

	if out.Result != entity.ConfirmConfirmed {
		return nil, goerror.NewBusiness("invalid confirmation code", goerror.CodeUnauthorized)
	}

	return nil, nil
}

func (h *HTTPEndpoint) RegistrationStatus(r *router.Request) (any, error) {
	out, err := h.uc.RegistrationStatus(r.Context(), usecase.RegistrationStatusInput{
		Email: r.GetParam("email"),
	})
	if err != nil {
		return nil, err
	}

	return RegistrationStatusResponse{
		Email:      out.Email,
		Registered: out.Registered,
	}, nil
}
