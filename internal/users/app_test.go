package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNicknamePattern(t *testing.T) {
	for _, ok := range []string{"abc", "Player_One", "x-2-y", "a1234567890123456789"} {
		assert.True(t, nicknamePattern.MatchString(ok), ok)
	}
	for _, bad := range []string{"", "ab", "way-too-long-nickname-here", "пример", "with space", "semi;colon"} {
		assert.False(t, nicknamePattern.MatchString(bad), bad)
	}
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 1500, round(1499.5))
	assert.Equal(t, 1464, round(1464.05))
}
