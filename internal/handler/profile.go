package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/contested-app/contested/internal/model"
    "github.com/contested-app/contested/internal/queue"
    "github.com/contested-app/contested/internal/repository"
    queue_publisher "github.com/contested-app/contested/internal/service"
    "github.com/contested-app/contested/internal/storage"
)

// ProfileHandler serves role-specific profile records. The client resolves
// a user's profile lazily: read first, create on miss, so the handlers
// here must keep creation idempotent per user.
type ProfileHandler struct {
	Users      *repository.UserRepo
	Athletes   *repository.AthleteProfileRepo
	Businesses *repository.BusinessProfileRepo
	Images     *storage.ImageStore
}

func NewProfileHandler(u *repository.UserRepo, a *repository.AthleteProfileRepo, b *repository.BusinessProfileRepo, img *storage.ImageStore) *ProfileHandler {
	return &ProfileHandler{Users: u, Athletes: a, Businesses: b, Images: img}
}

// ----- DTOs -----

// profilePayload carries both role's fields; handlers pick the subset that
// matches the caller's role. Multi-value fields (sports, social handles)
// arrive already serialized to strings by the wizard.
type profilePayload struct {
	// athlete fields
	FullName    *string `json:"full_name"`
	Category    *string `json:"category"`
	Sports      *string `json:"sports"`
	School      *string `json:"school"`
	GradYear    *string `json:"grad_year"`
	Eligibility *string `json:"eligibility"`

	// business fields
	CompanyName       *string `json:"company_name"`
	BusinessType      *string `json:"business_type"`
	OperatingLocation *string `json:"operating_location"`
	Industry          *string `json:"industry"`
	BudgetMin         *uint32 `json:"budget_min"`
	BudgetMax         *uint32 `json:"budget_max"`
	ContactName       *string `json:"contact_name"`

	// shared
	Phone   *string `json:"phone"`
	ZipCode *string `json:"zip_code"`
}

type athleteProfileResp struct {
	ProfileType string `json:"profile_type"` // always "athlete"
	ID          uint64 `json:"id"`
	UserID      uint64 `json:"user_id"`
	FullName    string `json:"full_name"`
	Category    string `json:"category"`
	Sports      string `json:"sports"`
	School      string `json:"school,omitempty"`
	GradYear    string `json:"grad_year,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
	Phone       string `json:"phone,omitempty"`
	ZipCode     string `json:"zip_code"`
	ImageKey    string `json:"image_key,omitempty"`
	Complete    bool   `json:"has_completed_profile"`
}

type businessProfileResp struct {
	ProfileType       string `json:"profile_type"` // always "business"
	ID                uint64 `json:"id"`
	UserID            uint64 `json:"user_id"`
	CompanyName       string `json:"company_name"`
	BusinessType      string `json:"business_type"`
	OperatingLocation string `json:"operating_location,omitempty"`
	Industry          string `json:"industry"`
	BudgetMin         uint32 `json:"budget_min"`
	BudgetMax         uint32 `json:"budget_max"`
	ContactName       string `json:"contact_name"`
	Phone             string `json:"phone,omitempty"`
	ZipCode           string `json:"zip_code"`
	ImageKey          string `json:"image_key,omitempty"`
	Complete          bool   `json:"has_completed_profile"`
}

func athleteResp(p model.AthleteProfile) athleteProfileResp {
	return athleteProfileResp{
		ProfileType: model.RoleAthlete,
		ID:          p.ID, UserID: p.UserID,
		FullName: p.FullName, Category: p.Category, Sports: p.Sports,
		School: p.School, GradYear: p.GradYear, Eligibility: p.Eligibility,
		Phone: p.Phone, ZipCode: p.ZipCode, ImageKey: p.ImageKey,
		Complete: p.Complete(),
	}
}

func businessResp(p model.BusinessProfile) businessProfileResp {
	return businessProfileResp{
		ProfileType: model.RoleBusiness,
		ID:          p.ID, UserID: p.UserID,
		CompanyName: p.CompanyName, BusinessType: p.BusinessType,
		OperatingLocation: p.OperatingLocation, Industry: p.Industry,
		BudgetMin: p.BudgetMin, BudgetMax: p.BudgetMax,
		ContactName: p.ContactName, Phone: p.Phone, ZipCode: p.ZipCode,
		ImageKey: p.ImageKey, Complete: p.Complete(),
	}
}

// DetectRole reports which profile record actually exists for the caller,
// regardless of the role claim: the stored profile is better evidence than
// a role hint recorded at signup. Falls back to the identity record's role
// when neither profile exists, and profile_type:null for roles without one.
func (h *ProfileHandler) DetectRole(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Athletes.GetByUserID(ctx, uid); err == nil {
		return c.JSON(http.StatusOK, echo.Map{"profile_type": model.RoleAthlete})
	}
	if _, err := h.Businesses.GetByUserID(ctx, uid); err == nil {
		return c.JSON(http.StatusOK, echo.Map{"profile_type": model.RoleBusiness})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err == nil && (u.Role == model.RoleAthlete || u.Role == model.RoleBusiness) {
		return c.JSON(http.StatusOK, echo.Map{"profile_type": u.Role, "profile_missing": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"profile_type": nil})
}

// Get returns the caller's role-matching profile. A missing profile is a
// 404 carrying profile_type:null so the client's resolver can move to its
// lazy-create avenue without guessing.
func (h *ProfileHandler) Get(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch callerRole(c) {
	case model.RoleAthlete:
		p, err := h.Athletes.GetByUserID(ctx, uid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"profile_type": nil, "error": "profile not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, athleteResp(p))
	case model.RoleBusiness:
		p, err := h.Businesses.GetByUserID(ctx, uid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"profile_type": nil, "error": "profile not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, businessResp(p))
	}
	// admin/compliance accounts have no extended profile
	return c.JSON(http.StatusNotFound, echo.Map{"profile_type": nil, "error": "role has no profile"})
}

// Create builds the caller's role-matching profile from the payload. A
// duplicate create is a 409; the client treats that as "already exists"
// and re-reads.
func (h *ProfileHandler) Create(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req profilePayload
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch callerRole(c) {
	case model.RoleAthlete:
		return h.createAthlete(ctx, c, uid, req)
	case model.RoleBusiness:
		return h.createBusiness(ctx, c, uid, req)
	}
	return c.JSON(http.StatusForbidden, echo.Map{"error": "role has no profile"})
}

// CreateBusiness is the dedicated business-profile creation route kept for
// the client's lazy-create path. It accepts an explicit user_id matching
// the caller and the same payload as Create.
func (h *ProfileHandler) CreateBusiness(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req struct {
		UserID uint64 `json:"user_id"`
		profilePayload
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UserID != 0 && req.UserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// A business profile implies the business role; correct a stale role
	// hint recorded at signup.
	if callerRole(c) != model.RoleBusiness {
		if err := h.Users.UpdateRole(ctx, uid, model.RoleBusiness); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role update failed"})
		}
	}
	return h.createBusiness(ctx, c, uid, req.profilePayload)
}

func (h *ProfileHandler) createAthlete(ctx context.Context, c echo.Context, uid uint64, req profilePayload) error {
	p := model.AthleteProfile{
		UserID:      uid,
		FullName:    deref(req.FullName),
		Category:    strings.ToLower(deref(req.Category)),
		Sports:      deref(req.Sports),
		School:      deref(req.School),
		GradYear:    deref(req.GradYear),
		Eligibility: deref(req.Eligibility),
		Phone:       deref(req.Phone),
		ZipCode:     deref(req.ZipCode),
	}
	id, err := h.Athletes.Create(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "profile already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create profile failed"})
	}
	p.ID = id

	_ = queue_publisher.Publish(ctx, queue.ProfileCreatedQueue, queue.ProfileCreatedEvent{
		UserID: uid, ProfileID: id, ProfileType: model.RoleAthlete,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, athleteResp(p))
}

func (h *ProfileHandler) createBusiness(ctx context.Context, c echo.Context, uid uint64, req profilePayload) error {
	p := model.BusinessProfile{
		UserID:            uid,
		CompanyName:       deref(req.CompanyName),
		BusinessType:      strings.ToLower(deref(req.BusinessType)),
		OperatingLocation: deref(req.OperatingLocation),
		Industry:          deref(req.Industry),
		BudgetMin:         derefU32(req.BudgetMin),
		BudgetMax:         derefU32(req.BudgetMax),
		ContactName:       deref(req.ContactName),
		Phone:             deref(req.Phone),
		ZipCode:           deref(req.ZipCode),
	}
	id, err := h.Businesses.Create(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "profile already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create profile failed"})
	}
	p.ID = id

	_ = queue_publisher.Publish(ctx, queue.ProfileCreatedQueue, queue.ProfileCreatedEvent{
		UserID: uid, ProfileID: id, ProfileType: model.RoleBusiness,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, businessResp(p))
}

// Patch merges the provided fields into the stored profile. Absent fields
// are left untouched; empty strings clear a field deliberately.
func (h *ProfileHandler) Patch(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req profilePayload
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch callerRole(c) {
	case model.RoleAthlete:
		p, err := h.Athletes.GetByUserID(ctx, uid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		applyStr(&p.FullName, req.FullName)
		if req.Category != nil {
			p.Category = strings.ToLower(*req.Category)
		}
		applyStr(&p.Sports, req.Sports)
		applyStr(&p.School, req.School)
		applyStr(&p.GradYear, req.GradYear)
		applyStr(&p.Eligibility, req.Eligibility)
		applyStr(&p.Phone, req.Phone)
		applyStr(&p.ZipCode, req.ZipCode)
		if err := h.Athletes.Update(ctx, p); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
		return c.JSON(http.StatusOK, athleteResp(p))
	case model.RoleBusiness:
		p, err := h.Businesses.GetByUserID(ctx, uid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		applyStr(&p.CompanyName, req.CompanyName)
		if req.BusinessType != nil {
			p.BusinessType = strings.ToLower(*req.BusinessType)
		}
		applyStr(&p.OperatingLocation, req.OperatingLocation)
		applyStr(&p.Industry, req.Industry)
		if req.BudgetMin != nil {
			p.BudgetMin = *req.BudgetMin
		}
		if req.BudgetMax != nil {
			p.BudgetMax = *req.BudgetMax
		}
		applyStr(&p.ContactName, req.ContactName)
		applyStr(&p.Phone, req.Phone)
		applyStr(&p.ZipCode, req.ZipCode)
		if err := h.Businesses.Update(ctx, p); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
		return c.JSON(http.StatusOK, businessResp(p))
	}
	return c.JSON(http.StatusForbidden, echo.Map{"error": "role has no profile"})
}

// UploadImage returns a presigned PUT URL and records the pending key on
// the caller's profile.
func (h *ProfileHandler) UploadImage(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	key, url, err := h.Images.PresignUpload(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "image storage unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "presign failed"})
	}

	if err := h.setImageKey(ctx, c, uid, key); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"key": key, "url": url})
}

// RemoveImage deletes the stored object and clears the key on the profile.
func (h *ProfileHandler) RemoveImage(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var key string
	switch callerRole(c) {
	case model.RoleAthlete:
		p, err := h.Athletes.GetByUserID(ctx, uid)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
		}
		key = p.ImageKey
	case model.RoleBusiness:
		p, err := h.Businesses.GetByUserID(ctx, uid)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
		}
		key = p.ImageKey
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "role has no profile"})
	}
	if key == "" {
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.Images.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotConfigured) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := h.setImageKey(ctx, c, uid, ""); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) setImageKey(ctx context.Context, c echo.Context, uid uint64, key string) error {
	var err error
	switch callerRole(c) {
	case model.RoleAthlete:
		err = h.Athletes.SetImageKey(ctx, uid, key)
	case model.RoleBusiness:
		err = h.Businesses.SetImageKey(ctx, uid, key)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefU32(v *uint32) uint32 {
	if v == nil {
		return 0
	}
	return *v
}

func applyStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
