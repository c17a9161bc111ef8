package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeAuthTopLevelShape(t *testing.T) {
	body := []byte(`{
		"user": {"id": 1, "email": "a@b.c", "role": "athlete"},
		"session": {"access_token": "at", "refresh_token": "rt", "expires_at": 1893456000}
	}`)

	res, err := DecodeAuth(body)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	require.NotNil(t, res.Session)
	require.Equal(t, uint64(1), res.User.ID)
	require.Equal(t, "at", res.Session.AccessToken)
	require.Equal(t, int64(1893456000), res.Session.ExpiresAt.Unix())
}

func TestDecodeAuthSessionNestedUser(t *testing.T) {
	body := []byte(`{
		"session": {
			"access_token": "at2",
			"refresh_token": "rt2",
			"expires_at": 1893456000,
			"user": {"id": 2, "email": "x@y.z", "role": "business"}
		}
	}`)

	res, err := DecodeAuth(body)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	require.Equal(t, uint64(2), res.User.ID)
	require.Equal(t, "rt2", res.Session.RefreshToken)
}

func TestDecodeAuthDataWrapper(t *testing.T) {
	body := []byte(`{
		"data": {
			"user": {"id": 3, "email": "d@e.f", "role": "athlete"},
			"session": {"access_token": "at3", "refresh_token": "rt3", "expires_at": 1893456000}
		}
	}`)

	res, err := DecodeAuth(body)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	require.Equal(t, uint64(3), res.User.ID)
	require.Equal(t, "at3", res.Session.AccessToken)
}

func TestDecodeAuthMillisecondExpiry(t *testing.T) {
	// Some historical responses carried expires_at in milliseconds.
	body := []byte(`{
		"user": {"id": 4, "email": "m@s.t", "role": "athlete"},
		"session": {"access_token": "at4", "refresh_token": "rt4", "expires_at": 1893456000000}
	}`)

	res, err := DecodeAuth(body)
	require.NoError(t, err)
	want := time.UnixMilli(1893456000000)
	require.True(t, want.Equal(res.Session.ExpiresAt))
}

func TestDecodeAuthZeroExpiry(t *testing.T) {
	body := []byte(`{
		"user": {"id": 5, "email": "z@z.z", "role": "athlete"},
		"session": {"access_token": "at5", "refresh_token": "rt5"}
	}`)

	res, err := DecodeAuth(body)
	require.NoError(t, err)
	require.True(t, res.Session.ExpiresAt.IsZero())
}

func TestDecodeAuthUnknownShape(t *testing.T) {
	_, err := DecodeAuth([]byte(`{"message": "ok"}`))
	require.ErrorIs(t, err, ErrUnknownShape)
}
