package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownShape is returned when a response carries neither a user nor
// a session in any recognized layout.
var ErrUnknownShape = errors.New("unrecognized auth response shape")

// The API has shipped three response layouts over its life:
//
//	{"user": {...}, "session": {"access_token": ...}}   current
//	{"session": {"user": {...}, "access_token": ...}}   transitional
//	{"data": {"user": {...}, "session": {...}}}         oldest
//
// plus flat token fields next to the user in early payloads. DecodeAuth
// accepts all of them and produces one canonical AuthResult, so shape
// drift stays contained in this file.

type wireSession struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

type wireEnvelope struct {
	User    *User         `json:"user"`
	Session *wireSession  `json:"session"`
	Data    *wireEnvelope `json:"data"`

	// flat token fields, oldest layout
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// DecodeAuth parses an auth endpoint body into the canonical result.
func DecodeAuth(body []byte) (AuthResult, error) {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return AuthResult{}, fmt.Errorf("decode auth response: %w", err)
	}
	if res, ok := fromEnvelope(env); ok {
		return res, nil
	}
	// oldest layout nests everything under "data"
	if env.Data != nil {
		if res, ok := fromEnvelope(*env.Data); ok {
			return res, nil
		}
	}
	return AuthResult{}, ErrUnknownShape
}

func fromEnvelope(env wireEnvelope) (AuthResult, bool) {
	var res AuthResult

	if env.Session != nil {
		res.Session = &Session{
			AccessToken:  env.Session.AccessToken,
			RefreshToken: env.Session.RefreshToken,
			ExpiresAt:    expiryFromWire(env.Session.ExpiresAt),
		}
		if env.Session.User != nil {
			res.User = env.Session.User
		}
	}
	if env.User != nil {
		res.User = env.User
	}
	// flat tokens only count when no session object was present
	if res.Session == nil && (env.AccessToken != "" || env.RefreshToken != "") {
		res.Session = &Session{
			AccessToken:  env.AccessToken,
			RefreshToken: env.RefreshToken,
			ExpiresAt:    expiryFromWire(env.ExpiresAt),
		}
	}
	return res, res.User != nil || res.Session != nil
}

// expiryFromWire converts a wire expiry to a time.Time. The wire value is
// epoch seconds; values that can only be milliseconds (13+ digits) are
// converted instead of producing a date fifty thousand years out.
func expiryFromWire(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	if v > 1_000_000_000_000 { // past Sep 33658 as seconds; must be ms
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}
