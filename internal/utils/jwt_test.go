package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("test-secret", 42, "athlete", 15)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)

	userID, role, err := ParseAccessToken("test-secret", tok.Token)
	require.NoError(t, err)
	require.Equal(t, uint64(42), userID)
	require.Equal(t, "athlete", role)
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("secret-a", 1, "business", 15)
	require.NoError(t, err)

	_, _, err = ParseAccessToken("secret-b", tok.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("test-secret", 1, "athlete", -1)
	require.NoError(t, err)

	_, _, err = ParseAccessToken("test-secret", tok.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenGarbage(t *testing.T) {
	_, _, err := ParseAccessToken("test-secret", "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashRefreshRawIsStable(t *testing.T) {
	rt, err := NewRefreshToken(30)
	require.NoError(t, err)
	require.Len(t, rt.Raw, 96)

	require.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	other, err := NewRefreshToken(30)
	require.NoError(t, err)
	require.NotEqual(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(other.Raw))
}
