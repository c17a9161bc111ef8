// Package credstore persists the client's credential across restarts. It
// writes two redundant channels into a state directory: a flag-style
// marker file that only signals "authenticated", and a JSON blob holding
// the actual token pair. Either channel alone is enough to make the next
// boot attempt a session restore; neither is trusted as ground truth,
// since the reconciler always revalidates against the server.
package credstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// File names inside the state directory. The legacy blob predates the
// marker+blob scheme and is only ever read, as the last rung of the
// recovery chain.
const (
	markerFile = "auth-status"
	blobFile   = "contested-auth.json"
	legacyFile = "contested-user.json"

	markerValue = "authenticated"
)

// ErrNoCredential is returned by Read when no usable credential exists.
// I/O failures deliberately collapse into this error: a credential we
// cannot read is a credential we do not have.
var ErrNoCredential = errors.New("no persisted credential")

// Credential is the persisted token pair plus ownership info. ExpiresAt
// is epoch seconds on disk and converted at this boundary.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       uint64
}

// blob is the on-disk JSON shape of a credential.
type blob struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds
	UserID       uint64 `json:"user_id"`
}

// Store writes and clears credentials under a single state directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created lazily on
// the first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Store persists the credential to both channels. Errors are swallowed:
// a failed write only costs the user a re-login on next boot, and the
// store has no way to surface the failure usefully.
func (s *Store) Store(c Credential) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.dir, markerFile), []byte(markerValue), 0o600)

	b := blob{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt.Unix(),
		UserID:       c.UserID,
	}
	body, err := json.Marshal(b)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.dir, blobFile), body, 0o600)
}

// Read returns the persisted credential from the JSON blob, or
// ErrNoCredential when the blob is missing, unreadable or malformed.
func (s *Store) Read() (Credential, error) {
	return s.readBlob(blobFile)
}

// ReadLegacy returns the credential from the legacy blob, if any. The
// recovery chain consults it only after every newer channel has failed.
func (s *Store) ReadLegacy() (Credential, error) {
	return s.readBlob(legacyFile)
}

func (s *Store) readBlob(name string) (Credential, error) {
	body, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Credential{}, ErrNoCredential
	}
	var b blob
	if err := json.Unmarshal(body, &b); err != nil {
		return Credential{}, ErrNoCredential
	}
	if b.AccessToken == "" && b.RefreshToken == "" {
		return Credential{}, ErrNoCredential
	}
	return Credential{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		ExpiresAt:    time.Unix(b.ExpiresAt, 0).UTC(),
		UserID:       b.UserID,
	}, nil
}

// Marked reports whether either channel indicates an authenticated user.
// The marker is a hint only; the reconciler decides what it is worth.
func (s *Store) Marked() bool {
	if body, err := os.ReadFile(filepath.Join(s.dir, markerFile)); err == nil && string(body) == markerValue {
		return true
	}
	if _, err := s.Read(); err == nil {
		return true
	}
	if _, err := s.ReadLegacy(); err == nil {
		return true
	}
	return false
}

// Clear removes every channel including the legacy blob. Missing files
// are fine; Clear is idempotent.
func (s *Store) Clear() {
	for _, name := range []string{markerFile, blobFile, legacyFile} {
		_ = os.Remove(filepath.Join(s.dir, name))
	}
}
