package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/contested-app/contested/internal/model"
)

// SubscriptionRepo records confirmed subscription payments. The processor
// reference is unique; replaying the same receipt maps to ErrConflict.
type SubscriptionRepo struct{ DB *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{DB: db} }

// Confirm inserts a confirmation row and returns its ID.
func (r *SubscriptionRepo) Confirm(ctx context.Context, s model.SubscriptionConfirmation) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO subscription_confirmations (user_id, plan, reference) VALUES (?,?,?)",
		s.UserID, s.Plan, s.Reference)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUserID returns the most recent confirmation for a user, or ErrNotFound.
func (r *SubscriptionRepo) GetByUserID(ctx context.Context, userID uint64) (model.SubscriptionConfirmation, error) {
	var s model.SubscriptionConfirmation
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, plan, reference, created_at FROM subscription_confirmations WHERE user_id=? ORDER BY id DESC LIMIT 1",
		userID).Scan(&s.ID, &s.UserID, &s.Plan, &s.Reference, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}
