package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/contested-app/contested/internal/model"
)

// AthleteProfileRepo persists athlete profile records keyed by user id.
type AthleteProfileRepo struct{ DB *sql.DB }

func NewAthleteProfileRepo(db *sql.DB) *AthleteProfileRepo { return &AthleteProfileRepo{DB: db} }

// Create inserts an athlete profile. A second profile for the same user
// violates the unique user_id index and is reported as ErrConflict so the
// lazy-create path stays idempotent from the caller's point of view.
func (r *AthleteProfileRepo) Create(ctx context.Context, p model.AthleteProfile) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO athlete_profiles
		 (user_id, full_name, category, sports, school, grad_year, eligibility, phone, zip_code, image_key)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.UserID, p.FullName, p.Category, p.Sports, p.School, p.GradYear, p.Eligibility, p.Phone, p.ZipCode, p.ImageKey)
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

// GetByUserID fetches the athlete profile for a user, or ErrNotFound.
func (r *AthleteProfileRepo) GetByUserID(ctx context.Context, userID uint64) (model.AthleteProfile, error) {
	var p model.AthleteProfile
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, full_name, category, sports, school, grad_year, eligibility, phone, zip_code, image_key, created_at, updated_at
		 FROM athlete_profiles WHERE user_id=? LIMIT 1`,
		userID).Scan(&p.ID, &p.UserID, &p.FullName, &p.Category, &p.Sports, &p.School, &p.GradYear,
		&p.Eligibility, &p.Phone, &p.ZipCode, &p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// Update overwrites the mutable fields of an athlete profile. Handlers
// merge the incoming patch into the stored record before calling this.
func (r *AthleteProfileRepo) Update(ctx context.Context, p model.AthleteProfile) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE athlete_profiles
		 SET full_name=?, category=?, sports=?, school=?, grad_year=?, eligibility=?, phone=?, zip_code=?, image_key=?
		 WHERE user_id=?`,
		p.FullName, p.Category, p.Sports, p.School, p.GradYear, p.Eligibility, p.Phone, p.ZipCode, p.ImageKey, p.UserID)
	return err
}

// SetImageKey stores (or clears) the object-storage key of the profile image.
func (r *AthleteProfileRepo) SetImageKey(ctx context.Context, userID uint64, key string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE athlete_profiles SET image_key=? WHERE user_id=?", key, userID)
	return err
}

// BusinessProfileRepo persists business profile records keyed by user id.
type BusinessProfileRepo struct{ DB *sql.DB }

func NewBusinessProfileRepo(db *sql.DB) *BusinessProfileRepo { return &BusinessProfileRepo{DB: db} }

// Create inserts a business profile; duplicates map to ErrConflict.
func (r *BusinessProfileRepo) Create(ctx context.Context, p model.BusinessProfile) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO business_profiles
		 (user_id, company_name, business_type, operating_location, industry, budget_min, budget_max, contact_name, phone, zip_code, image_key)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.UserID, p.CompanyName, p.BusinessType, p.OperatingLocation, p.Industry,
		p.BudgetMin, p.BudgetMax, p.ContactName, p.Phone, p.ZipCode, p.ImageKey)
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

// GetByUserID fetches the business profile for a user, or ErrNotFound.
func (r *BusinessProfileRepo) GetByUserID(ctx context.Context, userID uint64) (model.BusinessProfile, error) {
	var p model.BusinessProfile
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, company_name, business_type, operating_location, industry, budget_min, budget_max, contact_name, phone, zip_code, image_key, created_at, updated_at
		 FROM business_profiles WHERE user_id=? LIMIT 1`,
		userID).Scan(&p.ID, &p.UserID, &p.CompanyName, &p.BusinessType, &p.OperatingLocation,
		&p.Industry, &p.BudgetMin, &p.BudgetMax, &p.ContactName, &p.Phone, &p.ZipCode,
		&p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// Update overwrites the mutable fields of a business profile.
func (r *BusinessProfileRepo) Update(ctx context.Context, p model.BusinessProfile) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE business_profiles
		 SET company_name=?, business_type=?, operating_location=?, industry=?, budget_min=?, budget_max=?, contact_name=?, phone=?, zip_code=?, image_key=?
		 WHERE user_id=?`,
		p.CompanyName, p.BusinessType, p.OperatingLocation, p.Industry, p.BudgetMin, p.BudgetMax,
		p.ContactName, p.Phone, p.ZipCode, p.ImageKey, p.UserID)
	return err
}

// SetImageKey stores (or clears) the object-storage key of the profile image.
func (r *BusinessProfileRepo) SetImageKey(ctx context.Context, userID uint64, key string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE business_profiles SET image_key=? WHERE user_id=?", key, userID)
	return err
}
