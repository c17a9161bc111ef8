// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names for the platform's domain events. Each event type gets its
// own durable queue so consumers can subscribe selectively.
const (
    UserRegisteredQueue    = "user.registered"
    ProfileCreatedQueue    = "profile.created"
    FeedbackSubmittedQueue = "feedback.submitted"
)

// UserRegisteredEvent is published when an account is created, whether
// through the onboarding wizard or the plain register endpoint.
type UserRegisteredEvent struct {
    UserID       uint64 `json:"user_id"`
    Email        string `json:"email"`
    Role         string `json:"role"`
    RegisteredAt string `json:"registered_at"`
}

// ProfileCreatedEvent is published when a role-specific profile record is
// created, including lazy creation by the profile resolver path.
type ProfileCreatedEvent struct {
    UserID      uint64 `json:"user_id"`
    ProfileID   uint64 `json:"profile_id"`
    ProfileType string `json:"profile_type"` // athlete | business
    CreatedAt   string `json:"created_at"`
}

// FeedbackSubmittedEvent is published when a user submits feedback.
type FeedbackSubmittedEvent struct {
    FeedbackID uint64 `json:"feedback_id"`
    UserID     uint64 `json:"user_id"`
    Category   string `json:"category"`
    Rating     uint8  `json:"rating"`
    SubmittedAt string `json:"submitted_at"`
}
