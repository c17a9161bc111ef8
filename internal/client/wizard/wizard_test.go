package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contested-app/contested/internal/client/api"
)

type fakeBackend struct {
	scratchID  string
	scratchErr error
	typePushes []string

	registerCalls int
	registerErr   error
	registered    struct {
		email, password, role string
		metadata              map[string]any
	}

	profileCalls    int
	profilePayload  api.ProfilePayload
	bizCalls        int
	bizUserID       uint64
	bizPayload      api.ProfilePayload
	createErr       error
	registeredUser  *api.User
	issuedAccessTok string
}

func (f *fakeBackend) NewScratchSession(context.Context) (string, error) {
	if f.scratchErr != nil {
		return "", f.scratchErr
	}
	if f.scratchID == "" {
		f.scratchID = "scratch-1"
	}
	return f.scratchID, nil
}

func (f *fakeBackend) SetScratchUserType(_ context.Context, id, userType string) error {
	f.typePushes = append(f.typePushes, id+":"+userType)
	return nil
}

func (f *fakeBackend) Register(_ context.Context, email, password, role string, metadata map[string]any) (api.AuthResult, error) {
	f.registerCalls++
	if f.registerErr != nil {
		return api.AuthResult{}, f.registerErr
	}
	f.registered.email = email
	f.registered.password = password
	f.registered.role = role
	f.registered.metadata = metadata
	if f.registeredUser == nil {
		f.registeredUser = &api.User{ID: 100, Email: email, Role: role}
	}
	if f.issuedAccessTok == "" {
		f.issuedAccessTok = "fresh-access"
	}
	return api.AuthResult{
		User:    f.registeredUser,
		Session: &api.Session{AccessToken: f.issuedAccessTok, RefreshToken: "fresh-refresh"},
	}, nil
}

func (f *fakeBackend) CreateProfile(_ context.Context, accessToken string, payload api.ProfilePayload) (*api.Profile, error) {
	f.profileCalls++
	f.profilePayload = payload
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &api.Profile{ProfileType: "athlete", UserID: 100}, nil
}

func (f *fakeBackend) CreateBusinessProfile(_ context.Context, accessToken string, userID uint64, payload api.ProfilePayload) (*api.Profile, error) {
	f.bizCalls++
	f.bizUserID = userID
	f.bizPayload = payload
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &api.Profile{ProfileType: "business", UserID: userID}, nil
}

func TestProfessionalAthleteSkipsAcademicSteps(t *testing.T) {
	f := &FormState{UserType: UserTypeAthlete, AthleteCategory: CategoryProfessional}

	next, err := Next(f, StepUserType)
	require.NoError(t, err)
	require.Equal(t, StepAthleteSport, next)

	path := Path(f)
	require.NotContains(t, path, StepAthleteAcademic)
	require.NotContains(t, path, StepAthleteEligibility)
}

func TestCollegeAthleteVisitsAcademicThenEligibility(t *testing.T) {
	f := &FormState{UserType: UserTypeAthlete, AthleteCategory: CategoryCollege}

	next, err := Next(f, StepUserType)
	require.NoError(t, err)
	require.Equal(t, StepAthleteAcademic, next)

	f.School = "State University"
	f.GradYear = "2027"
	next, err = Next(f, next)
	require.NoError(t, err)
	require.Equal(t, StepAthleteEligibility, next)
}

func TestUnsetCategoryInsertsCategoryStep(t *testing.T) {
	f := &FormState{UserType: UserTypeAthlete}

	next, err := Next(f, StepUserType)
	require.NoError(t, err)
	require.Equal(t, StepAthleteCategory, next)
}

func TestAdvanceFromCategoryStepAfterChoosing(t *testing.T) {
	f := &FormState{UserType: UserTypeAthlete}

	// The category step is in the path while the category is unanswered.
	next, err := Next(f, StepUserType)
	require.NoError(t, err)
	require.Equal(t, StepAthleteCategory, next)

	// Choosing a category removes the step the user is standing on from
	// the live path; Next must still advance, not strand them.
	f.AthleteCategory = CategoryCollege
	next, err = Next(f, StepAthleteCategory)
	require.NoError(t, err)
	require.Equal(t, StepAthleteAcademic, next)

	f.AthleteCategory = CategoryProfessional
	next, err = Next(f, StepAthleteCategory)
	require.NoError(t, err)
	require.Equal(t, StepAthleteSport, next)
}

func TestBackFromFilledCategoryStep(t *testing.T) {
	f := &FormState{UserType: UserTypeAthlete, AthleteCategory: CategoryEsports}

	prev, err := Back(f, StepAthleteCategory)
	require.NoError(t, err)
	require.Equal(t, StepUserType, prev)
}

func TestServiceBusinessGetsLocationStep(t *testing.T) {
	f := &FormState{UserType: UserTypeBusiness, BusinessType: BusinessService}
	require.Contains(t, Path(f), StepBusinessLocation)

	f.BusinessType = BusinessProduct
	require.NotContains(t, Path(f), StepBusinessLocation)
}

func TestBranchesShareOnlyTerminalSteps(t *testing.T) {
	athlete := Path(&FormState{UserType: UserTypeAthlete, AthleteCategory: CategoryCollege})
	business := Path(&FormState{UserType: UserTypeBusiness, BusinessType: BusinessService})

	shared := map[Step]bool{}
	for _, s := range athlete {
		for _, b := range business {
			if s == b {
				shared[s] = true
			}
		}
	}
	require.Equal(t, map[Step]bool{StepUserType: true, StepZipCode: true, StepCreatePassword: true}, shared)
}

func TestNextBlockedByValidation(t *testing.T) {
	f := &FormState{UserType: UserTypeBusiness, BusinessType: BusinessProduct}

	got, err := Next(f, StepBusinessIndustry)
	require.ErrorIs(t, err, ErrInvalidStep)
	require.Equal(t, StepBusinessIndustry, got, "a failed validation must not advance")
}

func TestBackNeverValidates(t *testing.T) {
	f := &FormState{UserType: UserTypeBusiness, BusinessType: BusinessProduct}

	prev, err := Back(f, StepBusinessIndustry)
	require.NoError(t, err)
	require.Equal(t, StepBusinessType, prev)

	first, err := Back(f, StepUserType)
	require.NoError(t, err)
	require.Equal(t, StepUserType, first)
}

func TestZipCodeValidation(t *testing.T) {
	f := &FormState{}

	f.ZipCode = "1234"
	require.ErrorIs(t, f.Validate(StepZipCode), ErrInvalidStep)

	f.ZipCode = "12345"
	require.NoError(t, f.Validate(StepZipCode))

	f.ZipCode = "12345-6789"
	require.NoError(t, f.Validate(StepZipCode))

	f.ZipCode = "12345-67"
	require.ErrorIs(t, f.Validate(StepZipCode), ErrInvalidStep)
}

func TestPasswordValidation(t *testing.T) {
	f := &FormState{Password: "short", ConfirmPassword: "short"}
	require.ErrorIs(t, f.Validate(StepCreatePassword), ErrInvalidStep)

	f.Password = "longenough"
	f.ConfirmPassword = "different"
	require.ErrorIs(t, f.Validate(StepCreatePassword), ErrInvalidStep)

	f.ConfirmPassword = "longenough"
	require.NoError(t, f.Validate(StepCreatePassword))
}

func TestSetUserTypeMirrorsToScratch(t *testing.T) {
	backend := &fakeBackend{}
	w := Begin(context.Background(), backend, nil)
	require.Equal(t, "scratch-1", w.Form.SessionID)

	require.NoError(t, w.SetUserType(context.Background(), UserTypeAthlete))
	require.Equal(t, []string{"scratch-1:athlete"}, backend.typePushes)

	require.Error(t, w.SetUserType(context.Background(), "robot"))
	require.Empty(t, w.Form.UserType, "a rejected role must not stick")
}

func TestBeginToleratesScratchFailure(t *testing.T) {
	backend := &fakeBackend{scratchErr: errors.New("redis down")}
	w := Begin(context.Background(), backend, nil)
	require.Empty(t, w.Form.SessionID)

	require.NoError(t, w.SetUserType(context.Background(), UserTypeBusiness))
	require.Empty(t, backend.typePushes)
}

func TestBusinessSubmissionEndToEnd(t *testing.T) {
	backend := &fakeBackend{}
	w := Begin(context.Background(), backend, nil)

	require.NoError(t, w.SetUserType(context.Background(), UserTypeBusiness))
	require.NoError(t, w.Next())
	require.Equal(t, StepBusinessType, w.Current())

	w.Form.BusinessType = BusinessProduct
	require.NoError(t, w.Next())
	require.Equal(t, StepBusinessIndustry, w.Current())

	w.Form.Industry = "Apparel"
	require.NoError(t, w.Next())
	require.Equal(t, StepBusinessBudget, w.Current())

	w.Form.BudgetMin = 500
	w.Form.BudgetMax = 5000
	require.NoError(t, w.Next())
	require.Equal(t, StepBusinessContact, w.Current())

	w.Form.CompanyName = "Crest Apparel Co"
	w.Form.ContactName = "Jordan Wells"
	w.Form.Email = "jordan@crestapparel.test"
	w.Form.Phone = "555-0142"
	require.NoError(t, w.Next())
	require.Equal(t, StepZipCode, w.Current())

	w.Form.ZipCode = "30301"
	require.NoError(t, w.Next())
	require.Equal(t, StepCreatePassword, w.Current())

	w.Form.Password = "hunter2hunter2"
	w.Form.ConfirmPassword = "hunter2hunter2"
	redirect, err := w.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/business/dashboard", redirect)

	require.Equal(t, 1, backend.registerCalls, "exactly one registration call")
	require.Equal(t, 1, backend.bizCalls, "exactly one profile-creation call")
	require.Zero(t, backend.profileCalls)
	require.Equal(t, "business", backend.registered.role)
	require.Equal(t, uint64(100), backend.bizUserID)
	require.Equal(t, uint32(500), backend.bizPayload.BudgetMin)
	require.Equal(t, uint32(5000), backend.bizPayload.BudgetMax)
	require.Equal(t, "Apparel", backend.bizPayload.Industry)
	require.Equal(t, "30301", backend.bizPayload.ZipCode)
}

func TestAthleteSubmissionSerializesSports(t *testing.T) {
	backend := &fakeBackend{}
	w := Begin(context.Background(), backend, nil)
	w.Form = FormState{
		SessionID:       w.Form.SessionID,
		UserType:        UserTypeAthlete,
		AthleteCategory: CategoryProfessional,
		FullName:        "Riley Marsh",
		Sports:          []string{"basketball", "track"},
		Email:           "riley@athletes.test",
		Phone:           "555-0106",
		ZipCode:         "94105",
		Password:        "password123",
		ConfirmPassword: "password123",
	}
	w.current = StepCreatePassword

	redirect, err := w.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/athlete/dashboard", redirect)
	require.Equal(t, "basketball,track", backend.profilePayload.Sports)
	require.Equal(t, CategoryProfessional, backend.profilePayload.Category)
}

func TestSubmitAbortsOnRegistrationFailure(t *testing.T) {
	backend := &fakeBackend{registerErr: api.ErrConflict}
	w := Begin(context.Background(), backend, nil)
	w.Form.UserType = UserTypeBusiness
	w.Form.Password = "password123"
	w.Form.ConfirmPassword = "password123"
	w.current = StepCreatePassword

	_, err := w.Submit(context.Background())
	require.ErrorIs(t, err, api.ErrConflict)
	require.Zero(t, backend.bizCalls, "no profile call after a failed registration")
}

func TestSubmitSurfacesProfileFailureWithoutRollback(t *testing.T) {
	backend := &fakeBackend{createErr: errors.New("insert failed")}
	w := Begin(context.Background(), backend, nil)
	w.Form.UserType = UserTypeBusiness
	w.Form.Password = "password123"
	w.Form.ConfirmPassword = "password123"
	w.current = StepCreatePassword

	_, err := w.Submit(context.Background())
	require.Error(t, err)
	// The account exists; there is no rollback, only the surfaced error.
	require.Equal(t, 1, backend.registerCalls)
	require.Equal(t, 1, backend.bizCalls)
}

func TestSubmitRejectsNonTerminalStep(t *testing.T) {
	w := Begin(context.Background(), &fakeBackend{}, nil)
	_, err := w.Submit(context.Background())
	require.Error(t, err)
}
