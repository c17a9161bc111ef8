package model

import "time"

// Feedback is a single piece of user feedback as stored in the `feedback`
// table.  Rating is constrained to 1..5 at the handler layer.
type Feedback struct {
    ID        uint64    // feedback.id
    UserID    uint64    // feedback.user_id
    Category  string    // feedback.category (bug, idea, other, ...)
    Message   string    // feedback.message
    Rating    uint8     // feedback.rating (1..5)
    CreatedAt time.Time // feedback.created_at
}

// SubscriptionConfirmation records an external payment confirmation for a
// subscription plan.  Reference is the processor's receipt identifier and
// must be unique; no payment processing happens here.
type SubscriptionConfirmation struct {
    ID        uint64    // subscription_confirmations.id
    UserID    uint64    // subscription_confirmations.user_id
    Plan      string    // subscription_confirmations.plan
    Reference string    // subscription_confirmations.reference (unique)
    CreatedAt time.Time // subscription_confirmations.created_at
}
