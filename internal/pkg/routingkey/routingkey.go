// Package routingkey derives partition routing keys from message values.
//
// The key must be identical on every process of the fleet, so it depends on
// nothing but the input bytes.
package routingkey

import (
	"crypto/md5" //nolint:gosec // used for partition selection, not security
	"encoding/hex"
)

// Size is the length of a routing key in characters.
const Size = md5.Size * 2

// Hash returns the lowercase hex MD5 digest of message.
func Hash(message string) string {
	sum := md5.Sum([]byte(message)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}
