// Package api is the Contested client SDK's HTTP layer. It talks to the
// REST API and normalizes every historical auth response shape into one
// canonical AuthResult at this boundary, so the rest of the SDK never
// inspects raw payloads.
package api

import "time"

// User is the identity record as the SDK sees it.
type User struct {
	ID       uint64         `json:"id"`
	Email    string         `json:"email"`
	Role     string         `json:"role"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is a live token pair. ExpiresAt is a time.Time in-process;
// the wire carries epoch seconds and conversion happens in the decoder.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the session's expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// AuthResult is the canonical outcome of any auth endpoint: who the user
// is and what tokens they hold. Either field may be nil when the server
// omitted it.
type AuthResult struct {
	User    *User
	Session *Session
}

// ProfilePayload carries the role-specific profile fields the wizard
// collects. Multi-value fields are serialized to strings before they get
// here; the server stores them verbatim.
type ProfilePayload struct {
	// athlete
	FullName    string `json:"full_name,omitempty"`
	Category    string `json:"category,omitempty"`
	Sports      string `json:"sports,omitempty"`
	School      string `json:"school,omitempty"`
	GradYear    string `json:"grad_year,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`

	// business
	CompanyName       string `json:"company_name,omitempty"`
	BusinessType      string `json:"business_type,omitempty"`
	OperatingLocation string `json:"operating_location,omitempty"`
	Industry          string `json:"industry,omitempty"`
	BudgetMin         uint32 `json:"budget_min,omitempty"`
	BudgetMax         uint32 `json:"budget_max,omitempty"`
	ContactName       string `json:"contact_name,omitempty"`

	// shared
	Phone   string `json:"phone,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// Profile is the server's view of a role-specific record, reduced to what
// the resolver needs.
type Profile struct {
	ProfileType string `json:"profile_type"`
	UserID      uint64 `json:"user_id"`
	Complete    bool   `json:"has_completed_profile"`
}
