package handler

// common.go holds small helpers shared across handlers: metadata JSON
// round-tripping and context identity extraction.

import (
	"encoding/json"

	"github.com/labstack/echo/v4"
)

// encodeMetadata serializes client-supplied user metadata for TEXT storage.
// Nil maps encode to the empty string so the column stays NULL-ish.
func encodeMetadata(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// decodeMetadata parses stored metadata JSON; bad or empty payloads come
// back as nil rather than an error since metadata is advisory.
func decodeMetadata(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

// callerID returns the authenticated user id stored by the JWT middleware.
func callerID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get("user_id").(uint64)
	return uid, ok
}

// callerRole returns the role claim stored by the JWT middleware.
func callerRole(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}
