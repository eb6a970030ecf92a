package strength

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{"empty", "", 0},
		{"short lowercase", "aaa", 0},
		{"length only", "aaaaaaaa", 1},
		{"long lowercase", "aaaaaaaaaaaa", 2},
		{"mixed case short", "aB", 1},
		{"digits and case", "Hunter2A!", 4},
		{"all criteria capped", "Correct-Horse-Battery-Staple-9", 4},
		{"digits only long", "123456789012", 3},
		{"symbol no digit", "abcdefgh!", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.secret))
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	assert.Equal(t, Score("Passw0rd!"), Score("Passw0rd!"))
}
