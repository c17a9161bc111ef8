package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors mapped from HTTP statuses.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Client talks to the Contested REST API.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient returns a client for the API at baseURL. A nil http.Client
// gets a sane default with a request timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, hc: hc}
}

// do issues a request and returns the body for 2xx responses. Non-2xx
// statuses map to the sentinel errors above so callers can errors.Is.
func (c *Client) do(ctx context.Context, method, path, bearer string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return out, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return out, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return out, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return out, fmt.Errorf("%s %s: %w", method, path, ErrConflict)
	}
	return out, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
}

// ----- auth -----

// Register creates an account and returns the initial session.
func (c *Client) Register(ctx context.Context, email, password, role string, metadata map[string]any) (AuthResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": email, "password": password, "role": role, "user_metadata": metadata,
	})
	if err != nil {
		return AuthResult{}, err
	}
	return DecodeAuth(body)
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": email, "password": password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	return DecodeAuth(body)
}

// RefreshSession rotates a refresh token for a fresh pair.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (AuthResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/refresh-session", refreshToken, nil)
	if err != nil {
		return AuthResult{}, err
	}
	return DecodeAuth(body)
}

// Logout invalidates sessions server-side. With an access token the
// sign-out is global; with only a refresh token it ends one session.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var payload any
	if refreshToken != "" {
		payload = map[string]any{"refresh_token": refreshToken}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", accessToken, payload)
	return err
}

// CurrentUser fetches the identity record behind an access token.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/auth/user", accessToken, nil)
	if err != nil {
		return nil, err
	}
	res, err := DecodeAuth(body)
	if err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, ErrUnknownShape
	}
	return res.User, nil
}

// ----- profiles -----

// DetectRole asks the server which profile type the caller actually has.
// missing reports that the role is known but no profile record exists yet.
func (c *Client) DetectRole(ctx context.Context, accessToken string) (profileType string, missing bool, err error) {
	body, err := c.do(ctx, http.MethodGet, "/api/profile/detect-role", accessToken, nil)
	if err != nil {
		return "", false, err
	}
	var out struct {
		ProfileType    *string `json:"profile_type"`
		ProfileMissing bool    `json:"profile_missing"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, err
	}
	if out.ProfileType == nil {
		return "", false, nil
	}
	return *out.ProfileType, out.ProfileMissing, nil
}

// GetProfile fetches the caller's role-matching profile. A missing
// profile is ErrNotFound.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/profile", accessToken, nil)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile creates the caller's role-matching profile.
func (c *Client) CreateProfile(ctx context.Context, accessToken string, payload ProfilePayload) (*Profile, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/profile", accessToken, payload)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateBusinessProfile hits the dedicated business creation route used
// by the lazy-create path.
func (c *Client) CreateBusinessProfile(ctx context.Context, accessToken string, userID uint64, payload ProfilePayload) (*Profile, error) {
	req := struct {
		UserID uint64 `json:"user_id"`
		ProfilePayload
	}{UserID: userID, ProfilePayload: payload}
	body, err := c.do(ctx, http.MethodPost, "/api/create-business-profile", accessToken, req)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ----- wizard scratch sessions -----

// NewScratchSession asks the server for a wizard scratch id.
func (c *Client) NewScratchSession(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/session/new", "", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// SetScratchUserType records the chosen role on a scratch session.
func (c *Client) SetScratchUserType(ctx context.Context, id, userType string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/session/"+id+"/user-type", "", map[string]any{
		"user_type": userType,
	})
	return err
}
