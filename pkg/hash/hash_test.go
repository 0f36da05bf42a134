package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_CheckPassword(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("Secret1!x")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret1!x", h)
	assert.True(t, CheckPassword(h, "Secret1!x"))
	assert.False(t, CheckPassword(h, "secret1!x"))
	assert.False(t, CheckPassword("not-a-hash", "Secret1!x"))
}

func TestHashPassword_TooLong(t *testing.T) {
	t.Parallel()

	_, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
