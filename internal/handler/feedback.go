package handler

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/contested-app/contested/internal/model"
    "github.com/contested-app/contested/internal/queue"
    "github.com/contested-app/contested/internal/repository"
    queue_publisher "github.com/contested-app/contested/internal/service"
)

// FeedbackHandler collects user feedback and exposes it to the admin
// dashboard.
type FeedbackHandler struct {
	Feedback *repository.FeedbackRepo
}

func NewFeedbackHandler(f *repository.FeedbackRepo) *FeedbackHandler {
	return &FeedbackHandler{Feedback: f}
}

type feedbackReq struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Rating   uint8  `json:"rating"`
}

// Submit stores a feedback entry for the authenticated caller.
func (h *FeedbackHandler) Submit(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req feedbackReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.Category == "" || strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category/message required"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be 1..5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Feedback.Create(ctx, model.Feedback{
		UserID:   uid,
		Category: req.Category,
		Message:  strings.TrimSpace(req.Message),
		Rating:   req.Rating,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save feedback failed"})
	}

	_ = queue_publisher.Publish(ctx, queue.FeedbackSubmittedQueue, queue.FeedbackSubmittedEvent{
		FeedbackID: id, UserID: uid, Category: req.Category, Rating: req.Rating,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// List returns recent feedback; admin/compliance only (enforced by route
// middleware).
func (h *FeedbackHandler) List(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Feedback.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]echo.Map, 0, len(items))
	for _, f := range items {
		out = append(out, echo.Map{
			"id": f.ID, "user_id": f.UserID, "category": f.Category,
			"message": f.Message, "rating": f.Rating,
			"created_at": f.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"feedback": out})
}
