package cli

import (
	"testing"
	"time"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		args []string
		mode string
		rest []string
	}{
		{[]string{"--mode=chat-service", "--store=memory"}, ModeChat, []string{"--store=memory"}},
		{[]string{"chat", "--max-concurrent=5"}, ModeChat, []string{"--max-concurrent=5"}},
		{[]string{"--prefetch=4", "n"}, ModeNotify, []string{"--prefetch=4"}},
		{[]string{"--mode=notify"}, ModeNotify, nil},
	}
	for _, tc := range cases {
		mode, rest, err := ParseMode(tc.args)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.mode, mode)
		assert.Equal(t, tc.rest, rest)
	}

	_, _, err := ParseMode([]string{"--store=memory"})
	assert.Error(t, err)
	_, _, err = ParseMode([]string{"--mode=ride-service"})
	assert.Error(t, err)
}

func TestGenerateUserToken(t *testing.T) {
	token, claims, err := GenerateUserToken("dev-secret", "550e8400-e29b-41d4-a716-446655440002", "shipper", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, user.RoleShipper, claims.Role)

	parsed, err := jwt.NewManager("dev-secret", time.Hour).ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440002", parsed.Subject)

	_, _, err = GenerateUserToken("dev-secret", "x", "PASSENGER", time.Hour)
	assert.Error(t, err)
}
