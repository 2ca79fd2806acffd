package inbound

import (
	"github.com/pedrosfaria2/email-verifier/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/request-registration", end.RequestRegistration)
	r.POST("/register", end.Register)
	r.GET("/registrations/:email", end.RegistrationStatus)
}
