package model

import "time"

// AthleteProfile is the role-specific record for athlete accounts, stored
// in the `athlete_profiles` table and keyed by user id.  Multi-value
// wizard fields (sports, social handles) arrive from the client already
// serialized to strings and are stored verbatim in TEXT columns.
//
// Category is one of: college, professional, influencer, esports.
type AthleteProfile struct {
    ID          uint64    // athlete_profiles.id
    UserID      uint64    // athlete_profiles.user_id (unique)
    FullName    string    // athlete_profiles.full_name
    Category    string    // athlete_profiles.category
    Sports      string    // athlete_profiles.sports (serialized list)
    School      string    // athlete_profiles.school (college athletes)
    GradYear    string    // athlete_profiles.grad_year (college athletes)
    Eligibility string    // athlete_profiles.eligibility (college athletes)
    Phone       string    // athlete_profiles.phone
    ZipCode     string    // athlete_profiles.zip_code
    ImageKey    string    // athlete_profiles.image_key (object storage key)
    CreatedAt   time.Time // athlete_profiles.created_at
    UpdatedAt   time.Time // athlete_profiles.updated_at
}

// BusinessProfile is the role-specific record for business accounts,
// stored in the `business_profiles` table and keyed by user id.
//
// BusinessType is one of: product, service.  Service businesses carry an
// OperatingLocation collected by an extra wizard step.
type BusinessProfile struct {
    ID                uint64    // business_profiles.id
    UserID            uint64    // business_profiles.user_id (unique)
    CompanyName       string    // business_profiles.company_name
    BusinessType      string    // business_profiles.business_type
    OperatingLocation string    // business_profiles.operating_location
    Industry          string    // business_profiles.industry
    BudgetMin         uint32    // business_profiles.budget_min (whole dollars)
    BudgetMax         uint32    // business_profiles.budget_max
    ContactName       string    // business_profiles.contact_name
    Phone             string    // business_profiles.phone
    ZipCode           string    // business_profiles.zip_code
    ImageKey          string    // business_profiles.image_key
    CreatedAt         time.Time // business_profiles.created_at
    UpdatedAt         time.Time // business_profiles.updated_at
}

// Complete reports whether the required athlete fields are non-empty.
// Profile completion is derived, never stored.
func (p AthleteProfile) Complete() bool {
    return p.FullName != "" && p.Category != "" && p.Sports != "" && p.ZipCode != ""
}

// Complete reports whether the required business fields are non-empty.
func (p BusinessProfile) Complete() bool {
    return p.CompanyName != "" && p.BusinessType != "" && p.Industry != "" &&
        p.ContactName != "" && p.ZipCode != ""
}
