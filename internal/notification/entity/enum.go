package entity

type Channel int16

const (
	ChannelUnknown Channel = 0
	ChannelEmail   Channel = 1
)

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	default:
		return "unknown"
	}
}

type TriggerKey string

const (
	TriggerKeyRegistrationCode TriggerKey = "registration_code"
)

func (tk TriggerKey) String() string {
	return string(tk)
}

// DeliveryResult describes what happened to one notification message.
type DeliveryResult int16

const (
	DeliveryResultUnknown DeliveryResult = 0
	DeliveryResultSent    DeliveryResult = 1
	// DeliveryResultDuplicate means the same code was already mailed.
	DeliveryResultDuplicate DeliveryResult = 2
	DeliveryResultFailed    DeliveryResult = 3
)

func (r DeliveryResult) String() string {
	switch r {
	case DeliveryResultSent:
		return "sent"
	case DeliveryResultDuplicate:
		return "duplicate"
	case DeliveryResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}
