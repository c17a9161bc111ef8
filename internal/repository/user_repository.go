package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/contested-app/contested/internal/model"
	"github.com/contested-app/contested/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user and returns its ID. The optional metadata string
// is raw JSON supplied by the client (display name and the like).
func (r *UserRepo) Create(ctx context.Context, email, password, role, metadata string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, metadata) VALUES (?,?,?,?)",
		email, hash, role, metadata)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	var meta sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,metadata,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &meta, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.Metadata = meta.String
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	var meta sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,metadata,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &meta, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.Metadata = meta.String
	return u, err
}

// UpdateRole corrects a user's role server-side. Used when the role
// recorded at signup disagrees with the profile actually created.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=? WHERE id=?", role, id)
	return err
}

// List returns users ordered by creation, newest first. Admin-only.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,email,password_hash,role,metadata,is_active,created_at,updated_at FROM users ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		var meta sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &meta, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Metadata = meta.String
		out = append(out, u)
	}
	return out, rows.Err()
}
