package entity

type Template struct {
	TriggerKey TriggerKey
	Channel    Channel
	Subject    string
	TextBody   string
	HTMLBody   string
}
