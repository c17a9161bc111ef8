package repository

import (
	"context"
	"database/sql"

	"github.com/contested-app/contested/internal/model"
)

// FeedbackRepo persists user feedback entries.
type FeedbackRepo struct{ DB *sql.DB }

func NewFeedbackRepo(db *sql.DB) *FeedbackRepo { return &FeedbackRepo{DB: db} }

// Create inserts a feedback row and returns its ID.
func (r *FeedbackRepo) Create(ctx context.Context, f model.Feedback) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO feedback (user_id, category, message, rating) VALUES (?,?,?,?)",
		f.UserID, f.Category, f.Message, f.Rating)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// List returns feedback entries newest first, for the admin dashboard.
func (r *FeedbackRepo) List(ctx context.Context, limit, offset int) ([]model.Feedback, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, category, message, rating, created_at FROM feedback ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Feedback
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Category, &f.Message, &f.Rating, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
