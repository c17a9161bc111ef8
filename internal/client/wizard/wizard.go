package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/contested-app/contested/internal/client/api"
	"github.com/contested-app/contested/internal/logging"
)

// Backend is the slice of the REST API the wizard needs: a scratch
// session for cross-device draft continuity plus the two-call final
// submission. api.Client implements it.
type Backend interface {
	NewScratchSession(ctx context.Context) (string, error)
	SetScratchUserType(ctx context.Context, id, userType string) error
	Register(ctx context.Context, email, password, role string, metadata map[string]any) (api.AuthResult, error)
	CreateProfile(ctx context.Context, accessToken string, payload api.ProfilePayload) (*api.Profile, error)
	CreateBusinessProfile(ctx context.Context, accessToken string, userID uint64, payload api.ProfilePayload) (*api.Profile, error)
}

// Wizard drives one onboarding flow: it owns the form state and the
// active step and delegates transitions to the pure Path/Next/Back
// functions so its behavior has no hidden memory.
type Wizard struct {
	backend Backend
	log     logging.Logger

	Form    FormState
	current Step
}

// Begin starts a flow at the user-type step, obtaining a scratch-session
// id from the server. A scratch failure is tolerated: the flow still
// works, it just cannot be resumed elsewhere.
func Begin(ctx context.Context, backend Backend, log logging.Logger) *Wizard {
	if log == nil {
		log = logging.Nop()
	}
	w := &Wizard{backend: backend, log: log, current: StepUserType}
	id, err := backend.NewScratchSession(ctx)
	if err != nil {
		log.Warn(ctx, "scratch session unavailable; draft will be local only", "error", err)
		return w
	}
	w.Form.SessionID = id
	return w
}

// Current returns the active step.
func (w *Wizard) Current() Step { return w.current }

// SetUserType records the chosen role and mirrors it to the scratch
// session so an abandoned draft keeps its branch.
func (w *Wizard) SetUserType(ctx context.Context, userType string) error {
	w.Form.UserType = userType
	if err := w.Form.Validate(StepUserType); err != nil {
		w.Form.UserType = ""
		return err
	}
	if w.Form.SessionID != "" {
		if err := w.backend.SetScratchUserType(ctx, w.Form.SessionID, userType); err != nil {
			w.log.Warn(ctx, "failed to persist user type to scratch session", "error", err)
		}
	}
	return nil
}

// Next advances to the following step if the active step validates.
func (w *Wizard) Next() error {
	next, err := Next(&w.Form, w.current)
	if err != nil {
		return err
	}
	w.current = next
	return nil
}

// Back moves to the previous step without validating.
func (w *Wizard) Back() {
	prev, err := Back(&w.Form, w.current)
	if err != nil {
		return
	}
	w.current = prev
}

// Submit finalizes the flow at the terminal step: it registers the
// account, creates the role-specific profile, and returns the dashboard
// route to redirect to. Any failure aborts the whole submission and the
// caller re-displays the terminal step; a profile-creation failure after
// a successful registration is surfaced as-is, with no rollback of the
// created account.
func (w *Wizard) Submit(ctx context.Context) (redirect string, err error) {
	if w.current != StepCreatePassword {
		return "", fmt.Errorf("submit called on step %q, want %q", w.current, StepCreatePassword)
	}
	if err := w.Form.Validate(StepCreatePassword); err != nil {
		return "", err
	}

	meta := map[string]any{"role": w.Form.UserType}
	res, err := w.backend.Register(ctx, w.Form.Email, w.Form.Password, w.Form.UserType, meta)
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}
	if res.Session == nil || res.User == nil {
		return "", errors.New("registration returned no session")
	}

	switch w.Form.UserType {
	case UserTypeBusiness:
		_, err = w.backend.CreateBusinessProfile(ctx, res.Session.AccessToken, res.User.ID, w.businessPayload())
		if err != nil {
			return "", fmt.Errorf("business profile creation failed: %w", err)
		}
		return "/business/dashboard", nil
	default:
		_, err = w.backend.CreateProfile(ctx, res.Session.AccessToken, w.athletePayload())
		if err != nil {
			return "", fmt.Errorf("athlete profile creation failed: %w", err)
		}
		return "/athlete/dashboard", nil
	}
}

func (w *Wizard) athletePayload() api.ProfilePayload {
	return api.ProfilePayload{
		FullName:    w.Form.FullName,
		Category:    w.Form.AthleteCategory,
		Sports:      w.Form.sportsList(),
		School:      w.Form.School,
		GradYear:    w.Form.GradYear,
		Eligibility: w.Form.Eligibility,
		Phone:       w.Form.Phone,
		ZipCode:     w.Form.ZipCode,
	}
}

func (w *Wizard) businessPayload() api.ProfilePayload {
	return api.ProfilePayload{
		CompanyName:       w.Form.CompanyName,
		BusinessType:      w.Form.BusinessType,
		OperatingLocation: w.Form.OperatingLocation,
		Industry:          w.Form.Industry,
		BudgetMin:         w.Form.BudgetMin,
		BudgetMax:         w.Form.BudgetMax,
		ContactName:       w.Form.ContactName,
		Phone:             w.Form.Phone,
		ZipCode:           w.Form.ZipCode,
	}
}
