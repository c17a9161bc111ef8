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

// Plans available on the platform. Payment collection happens with an
// external processor; this API only records confirmations and serves the
// catalog the client renders.
var planCatalog = []echo.Map{
	{"id": "starter", "name": "Starter", "price_cents": 0},
	{"id": "pro", "name": "Pro", "price_cents": 4900},
	{"id": "enterprise", "name": "Enterprise", "price_cents": 19900},
}

// SubscriptionHandler records subscription payment confirmations.
type SubscriptionHandler struct {
	Subs *repository.SubscriptionRepo
}

func NewSubscriptionHandler(s *repository.SubscriptionRepo) *SubscriptionHandler {
	return &SubscriptionHandler{Subs: s}
}

// Plans returns the static plan catalog. Public, and cacheable.
func (h *SubscriptionHandler) Plans(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"plans": planCatalog})
}

type confirmReq struct {
	Plan      string `json:"plan"`
	Reference string `json:"reference"`
}

// Confirm records a processor confirmation for the caller. Reusing a
// processor reference is a conflict: receipts are single-use.
func (h *SubscriptionHandler) Confirm(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Plan = strings.ToLower(strings.TrimSpace(req.Plan))
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Plan == "" || req.Reference == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plan/reference required"})
	}
	known := false
	for _, p := range planCatalog {
		if p["id"] == req.Plan {
			known = true
			break
		}
	}
	if !known {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown plan"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Subs.Confirm(ctx, model.SubscriptionConfirmation{
		UserID: uid, Plan: req.Plan, Reference: req.Reference,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reference already used"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "plan": req.Plan})
}
