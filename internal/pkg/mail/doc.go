// Package mail defines the contracts for sending email messages.
//
// Use cases depend on the Mail interface and the Message payload. SMTP
// delivers over the network; Log writes the message to the structured log
// and is meant for local runs.
package mail
