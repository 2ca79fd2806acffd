// Package clock is the time source for expiry and purge decisions. Use cases
// take a Clocker so tests can pin "now" with NewFixed.
package clock
