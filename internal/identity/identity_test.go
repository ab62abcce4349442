package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice", Normalize("Alice"))
	assert.Equal(t, "alice", Normalize("  ALICE  "))
	assert.Equal(t, "", Normalize("   "))
}

func TestValid(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"alice", true},
		{"a.l-i_ce9", true},
		{"ab", false},
		{"", false},
		{"Alice", false},
		{"al ice", false},
		{"alice!", false},
		{"толстой", false},
		{"thisusernameiswaytoolongtobeallowedanywhere", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.username, 3, 32), "username %q", tt.username)
	}
}
