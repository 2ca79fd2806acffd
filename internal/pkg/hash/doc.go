// Package hash provides keyed hashing for short-lived secrets.
//
// Confirmation codes are stored as an HMAC of the plaintext, so a leaked
// table does not reveal codes that can be submitted. Verification compares in
// constant time.
package hash
