package entity

// ConfirmResult is the outcome of a confirmation attempt.
type ConfirmResult int

const (
	ConfirmRejected ConfirmResult = iota
	ConfirmConfirmed
)

var confirmResultNames = map[ConfirmResult]string{
	ConfirmRejected:  "rejected",
	ConfirmConfirmed: "confirmed",
}

func (r ConfirmResult) String() string {
	if s, ok := confirmResultNames[r]; ok {
		return s
	}
	return "unknown"
}
