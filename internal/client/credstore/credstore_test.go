package credstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	want := Credential{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		ExpiresAt:    time.Unix(1893456000, 0),
		UserID:       42,
	}
	s.Store(want)

	got, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, want.AccessToken, got.AccessToken)
	require.Equal(t, want.RefreshToken, got.RefreshToken)
	require.Equal(t, want.UserID, got.UserID)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestStoreWritesMarker(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.False(t, s.Marked())

	s.Store(Credential{AccessToken: "a", RefreshToken: "r"})
	require.True(t, s.Marked())

	raw, err := os.ReadFile(filepath.Join(dir, "auth-status"))
	require.NoError(t, err)
	require.Equal(t, "authenticated", string(raw))
}

func TestReadWithoutCredential(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Read()
	require.ErrorIs(t, err, ErrNoCredential)
}

func TestClearIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	s.Store(Credential{AccessToken: "a", RefreshToken: "r", UserID: 7})

	s.Clear()
	s.Clear()

	require.False(t, s.Marked())
	_, err := s.Read()
	require.ErrorIs(t, err, ErrNoCredential)
	_, err = s.ReadLegacy()
	require.ErrorIs(t, err, ErrNoCredential)
}

func TestReadLegacyBlob(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"access_token":"old-access","refresh_token":"old-refresh","expires_at":1700000000,"user_id":9}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contested-user.json"), []byte(legacy), 0o600))

	s := New(dir)
	got, err := s.ReadLegacy()
	require.NoError(t, err)
	require.Equal(t, "old-refresh", got.RefreshToken)
	require.Equal(t, uint64(9), got.UserID)

	// A legacy blob alone is enough of a hint to attempt a restore.
	require.True(t, s.Marked())
}
