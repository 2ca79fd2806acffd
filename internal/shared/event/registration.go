package event

// Registration request topology. The queue and weight defaults apply when
// configuration does not override them.
const (
	RegistrationRequestTopic         string = "registration-request-consistent-hash-exchange"
	RegistrationRequestDefaultQueue  string = "registration-request"
	RegistrationRequestDefaultWeight string = "42"
)

// Registration notification topology.
const (
	RegistrationNotificationTopic      string = "registration-notification-exchange"
	RegistrationNotificationQueue      string = "registration-notification"
	RegistrationNotificationRoutingKey string = "42"
)

// HeaderCorrelationID carries the correlation id across the broker.
const HeaderCorrelationID string = "cID"

// RegistrationNotificationMessage tells the mailer which code to send.
type RegistrationNotificationMessage struct {
	Email            string `json:"email"`
	ConfirmationCode string `json:"confirmation_code"`
}
