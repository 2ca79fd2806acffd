package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrMissingKey is returned by Require when a mandatory key has no value.
var ErrMissingKey = errors.New("config: missing required key")

// Config exposes typed access to configuration values. Missing keys return
// the zero value of the requested type.
type Config interface {
	io.Closer

	// GetString returns the value for key as a string.
	GetString(key string) string

	// GetInt returns the value for key as an int.
	GetInt(key string) int

	// GetBool returns the value for key as a bool.
	GetBool(key string) bool

	// GetSecond reads an integer number of seconds.
	GetSecond(key string) time.Duration

	// GetDuration reads a Go duration string such as "1500ms" or "24h".
	GetDuration(key string) time.Duration

	// GetBinary decodes a base64 value.
	GetBinary(key string) []byte

	// GetArray splits a value of the form <element1>,<element2>,...
	GetArray(key string) []string

	// GetMap parses a value of the form <key1>:<value1>,<key2>:<value2>,...
	GetMap(key string) map[string]string
}

// Require reports every key in keys that resolves to an empty string.
func Require(cfg Config, keys ...string) error {
	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(cfg.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}
	return nil
}
