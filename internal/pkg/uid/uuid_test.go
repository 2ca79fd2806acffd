package uid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerators(t *testing.T) {
	tests := []struct {
		name    string
		gen     StringID
		version uuid.Version
	}{
		{"v7", NewUUID(), 7},
		{"v4", NewRandomUUID(), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := map[string]struct{}{}
			for range 100 {
				s := tt.gen.Generate()
				id, err := uuid.Parse(s)
				require.NoError(t, err)
				assert.Equal(t, tt.version, id.Version())
				seen[s] = struct{}{}
			}
			assert.Len(t, seen, 100)
		})
	}
}
