package inbound

type RequestRegistrationRequest struct {
	Email string `json:"email"`
}

type RegisterRequest struct {
	Email            string `json:"email"`
	ConfirmationCode string `json:"confirmation_code"`
}

type RegistrationStatusResponse struct {
	Email      string `json:"email"`
	Registered bool   `json:"registered"`
}
