package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/contested-app/contested/internal/config"
	"github.com/contested-app/contested/internal/model"
	"github.com/contested-app/contested/internal/utils"
)

type fakeTokenStore struct {
	owners    map[string]uint64
	revoked   map[string]bool
	allOf     []uint64
	revokeOps int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{owners: map[string]uint64{}, revoked: map[string]bool{}}
}

func (f *fakeTokenStore) StoreRefresh(_ context.Context, userID uint64, tokenHash string, _ time.Time) error {
	f.owners[tokenHash] = userID
	return nil
}

func (f *fakeTokenStore) ConsumeRefresh(_ context.Context, tokenHash string) (uint64, error) {
	uid, ok := f.owners[tokenHash]
	if !ok || f.revoked[tokenHash] {
		return 0, sql.ErrNoRows
	}
	f.revoked[tokenHash] = true
	return uid, nil
}

func (f *fakeTokenStore) RevokeByHash(_ context.Context, tokenHash string) (int64, error) {
	f.revokeOps++
	if _, ok := f.owners[tokenHash]; ok && !f.revoked[tokenHash] {
		f.revoked[tokenHash] = true
		return 1, nil
	}
	return 0, nil
}

func (f *fakeTokenStore) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.allOf = append(f.allOf, userID)
	for h, uid := range f.owners {
		if uid == userID {
			f.revoked[h] = true
		}
	}
	return nil
}

type fakeUserStore struct {
	users map[uint64]model.User
}

func (f *fakeUserStore) Create(context.Context, string, string, string, string, int) (uint64, error) {
	return 0, sql.ErrConnDone
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func authTestHandler(tokens *fakeTokenStore, users *fakeUserStore) *AuthHandler {
	return &AuthHandler{
		Cfg: config.Config{
			JWTSecret:      "test-secret",
			AccessTTLMin:   15,
			RefreshTTLDays: 30,
		},
		Users:  users,
		Tokens: tokens,
	}
}

func invokeAuth(t *testing.T, fn echo.HandlerFunc, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	require.NoError(t, fn(c))
	return rec
}

func TestLogoutUnknownRefreshTokenStillSucceeds(t *testing.T) {
	tokens := newFakeTokenStore()
	h := authTestHandler(tokens, &fakeUserStore{})

	rec := invokeAuth(t, h.Logout, `{"refresh_token":"never-issued"}`, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// A second sign-out with the same token must not fail either.
	rec = invokeAuth(t, h.Logout, `{"refresh_token":"never-issued"}`, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 2, tokens.revokeOps, "each logout issues exactly one revoke statement")
}

func TestLogoutRefreshTokenRevokesThatSession(t *testing.T) {
	tokens := newFakeTokenStore()
	raw := "session-token"
	hash := utils.HashRefreshRaw(raw)
	tokens.owners[hash] = 7
	h := authTestHandler(tokens, &fakeUserStore{})

	rec := invokeAuth(t, h.Logout, `{"refresh_token":"`+raw+`"}`, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, tokens.revoked[hash])
}

func TestLogoutBearerRevokesAllSessions(t *testing.T) {
	tokens := newFakeTokenStore()
	tokens.owners["h1"] = 7
	tokens.owners["h2"] = 7
	tokens.owners["h3"] = 8
	h := authTestHandler(tokens, &fakeUserStore{})

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, 7, "athlete", 15)
	require.NoError(t, err)

	rec := invokeAuth(t, h.Logout, "", map[string]string{"Authorization": "Bearer " + access.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []uint64{7}, tokens.allOf)
	require.True(t, tokens.revoked["h1"])
	require.True(t, tokens.revoked["h2"])
	require.False(t, tokens.revoked["h3"], "other users' sessions stay live")
}

func TestLogoutWithoutCredentials(t *testing.T) {
	h := authTestHandler(newFakeTokenStore(), &fakeUserStore{})
	rec := invokeAuth(t, h.Logout, "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	tokens := newFakeTokenStore()
	raw := "first-refresh"
	tokens.owners[utils.HashRefreshRaw(raw)] = 9
	users := &fakeUserStore{users: map[uint64]model.User{
		9: {ID: 9, Email: "nine@contested.app", Role: "business"},
	}}
	h := authTestHandler(tokens, users)

	rec := invokeAuth(t, h.RefreshSession, `{"refresh_token":"`+raw+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint64(9), resp.User.ID)
	require.NotEmpty(t, resp.Session.RefreshToken)
	require.NotEqual(t, raw, resp.Session.RefreshToken, "rotation must issue a new token")

	// Replaying the consumed token is rejected.
	rec = invokeAuth(t, h.RefreshSession, `{"refresh_token":"`+raw+`"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The rotated token works.
	rec = invokeAuth(t, h.RefreshSession, `{"refresh_token":"`+resp.Session.RefreshToken+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
