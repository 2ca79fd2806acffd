// Package validator checks inbound payloads and event bodies. The V10
// implementation registers the confirmation_code tag and reports failures
// keyed by the JSON field name.
package validator
