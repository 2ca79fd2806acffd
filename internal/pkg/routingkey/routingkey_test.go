package routingkey

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "d41d8cd98f00b204e9800998ecf8427e"},
		{name: "email", input: "a@example.com", want: Hash("a@example.com")},
		{name: "known vector", input: "The quick brown fox jumps over the lazy dog", want: "9e107d9d372bb6826bd81d3542a419d6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hash(tt.input))
		})
	}
}

func TestHash_DeterministicAndDistinct(t *testing.T) {
	a1 := Hash("a@example.com")
	a2 := Hash("a@example.com")
	b := Hash("b@example.com")

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
}

func TestHash_FixedWidthLowerHex(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{32}$`)
	for _, in := range []string{"", "x", "Test@Example.COM", "ünïcødé@例え.jp"} {
		got := Hash(in)
		assert.Len(t, got, Size)
		assert.Regexp(t, re, got)
	}
}
