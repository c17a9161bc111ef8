package model

import "time"

// Role names accepted by the platform.  Athletes and businesses sign up
// through the onboarding wizard; admin and compliance accounts are
// provisioned out of band.
const (
    RoleAthlete    = "athlete"
    RoleBusiness   = "business"
    RoleAdmin      = "admin"
    RoleCompliance = "compliance"
)

// ValidRole reports whether the given string names a known role.
func ValidRole(r string) bool {
    switch r {
    case RoleAthlete, RoleBusiness, RoleAdmin, RoleCompliance:
        return true
    }
    return false
}

// User represents an account record as stored in the `users` table.
// Metadata is a free-form JSON blob carried for the client (display name,
// signup source and the like); the server treats it as opaque except for
// the role hint consulted by the profile resolver.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – one of the Role* constants.
//  Metadata     – raw JSON user metadata (nullable, stored as TEXT).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    Metadata     string    // users.metadata (JSON text, may be empty)
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user; only the SHA‑256 hash of the raw
// token is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
