// Package wizard implements the branching onboarding flow: a directed
// step graph whose transitions are pure functions of the accumulated
// form state, with per-step validation gating forward progress and a
// single terminal submission that registers the account and creates the
// role-specific profile.
package wizard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// User types selectable at the first step.
const (
	UserTypeAthlete  = "athlete"
	UserTypeBusiness = "business"
)

// Athlete categories. Only college athletes see the academic and
// eligibility steps.
const (
	CategoryCollege      = "college"
	CategoryProfessional = "professional"
	CategoryInfluencer   = "influencer"
	CategoryEsports      = "esports"
)

// Business types. Service businesses get an extra operating-location step.
const (
	BusinessService = "service"
	BusinessProduct = "product"
	BusinessAgency  = "agency"
	BusinessOther   = "other"
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// ErrInvalidStep reports a validation failure on the active step.
var ErrInvalidStep = errors.New("step validation failed")

// FormState accumulates every step's inputs across the flow. It is keyed
// by a server-issued scratch-session id and is never partially invalid:
// a step's fields are validated before the flow advances past it.
type FormState struct {
	SessionID string

	UserType string

	// athlete branch
	AthleteCategory string
	FullName        string
	School          string
	GradYear        string
	Eligibility     string
	Sports          []string

	// business branch
	CompanyName       string
	BusinessType      string
	OperatingLocation string
	Industry          string
	BudgetMin         uint32
	BudgetMax         uint32
	ContactName       string

	// shared
	Email           string
	Phone           string
	ZipCode         string
	Password        string
	ConfirmPassword string
}

// Validate checks the fields belonging to step. Steps not in the form's
// current path still validate their own fields in isolation.
func (f *FormState) Validate(step Step) error {
	switch step {
	case StepUserType:
		if f.UserType != UserTypeAthlete && f.UserType != UserTypeBusiness {
			return fmt.Errorf("%w: choose athlete or business", ErrInvalidStep)
		}
	case StepAthleteCategory:
		switch f.AthleteCategory {
		case CategoryCollege, CategoryProfessional, CategoryInfluencer, CategoryEsports:
		default:
			return fmt.Errorf("%w: unknown athlete category %q", ErrInvalidStep, f.AthleteCategory)
		}
	case StepAthleteAcademic:
		if f.School == "" || f.GradYear == "" {
			return fmt.Errorf("%w: school and graduation year are required", ErrInvalidStep)
		}
	case StepAthleteEligibility:
		if f.Eligibility == "" {
			return fmt.Errorf("%w: eligibility status is required", ErrInvalidStep)
		}
	case StepAthleteSport:
		if len(f.Sports) == 0 {
			return fmt.Errorf("%w: pick at least one sport", ErrInvalidStep)
		}
	case StepAthleteContact:
		if f.FullName == "" || f.Email == "" || f.Phone == "" {
			return fmt.Errorf("%w: name, email and phone are required", ErrInvalidStep)
		}
	case StepBusinessType:
		switch f.BusinessType {
		case BusinessService, BusinessProduct, BusinessAgency, BusinessOther:
		default:
			return fmt.Errorf("%w: unknown business type %q", ErrInvalidStep, f.BusinessType)
		}
	case StepBusinessLocation:
		if f.OperatingLocation == "" {
			return fmt.Errorf("%w: operating location is required", ErrInvalidStep)
		}
	case StepBusinessIndustry:
		if f.Industry == "" {
			return fmt.Errorf("%w: industry is required", ErrInvalidStep)
		}
	case StepBusinessBudget:
		if f.BudgetMin == 0 || f.BudgetMax < f.BudgetMin {
			return fmt.Errorf("%w: budget range must satisfy 0 < min <= max", ErrInvalidStep)
		}
	case StepBusinessContact:
		if f.CompanyName == "" || f.ContactName == "" || f.Email == "" || f.Phone == "" {
			return fmt.Errorf("%w: company, contact name, email and phone are required", ErrInvalidStep)
		}
	case StepZipCode:
		if !zipPattern.MatchString(f.ZipCode) {
			return fmt.Errorf("%w: zip code must be 5 digits or ZIP+4", ErrInvalidStep)
		}
	case StepCreatePassword:
		if len(f.Password) < 8 {
			return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidStep)
		}
		if f.Password != f.ConfirmPassword {
			return fmt.Errorf("%w: passwords do not match", ErrInvalidStep)
		}
	default:
		return fmt.Errorf("%w: unknown step %q", ErrInvalidStep, step)
	}
	return nil
}

// sportsList joins the selected sports into the comma-separated string
// the profile endpoints store.
func (f *FormState) sportsList() string {
	return strings.Join(f.Sports, ",")
}
