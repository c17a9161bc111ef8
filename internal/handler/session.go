package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/contested-app/contested/internal/model"
	"github.com/contested-app/contested/internal/repository"
)

// SessionHandler serves wizard scratch sessions. The onboarding wizard
// asks for a scratch id before the first step and reports the chosen user
// type once the role branch is taken; everything else stays client-side
// until final submission.
type SessionHandler struct {
	Scratch *repository.ScratchRepo
}

func NewSessionHandler(s *repository.ScratchRepo) *SessionHandler {
	return &SessionHandler{Scratch: s}
}

func (h *SessionHandler) available() bool {
	return h.Scratch != nil && h.Scratch.RDB != nil
}

// New issues a fresh scratch session id.
func (h *SessionHandler) New(c echo.Context) error {
	if !h.available() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "wizard sessions unavailable"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	s, err := h.Scratch.New(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": s.ID})
}

// Get returns the scratch record for an id; unknown or expired ids are 404.
func (h *SessionHandler) Get(c echo.Context) error {
	if !h.available() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "wizard sessions unavailable"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	s, err := h.Scratch.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load session failed"})
	}
	return c.JSON(http.StatusOK, s)
}

// SetUserType records the role chosen on the wizard's first step.
func (h *SessionHandler) SetUserType(c echo.Context) error {
	if !h.available() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "wizard sessions unavailable"})
	}
	var req struct {
		UserType string `json:"user_type"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ut := strings.ToLower(strings.TrimSpace(req.UserType))
	if ut != model.RoleAthlete && ut != model.RoleBusiness {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_type must be athlete or business"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	s, err := h.Scratch.SetUserType(ctx, c.Param("id"), ut)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update session failed"})
	}
	return c.JSON(http.StatusOK, s)
}
