package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/queue"
	"github.com/iliyamo/craft-community/internal/repository"
	"github.com/iliyamo/craft-community/internal/trust"
)

// TrustLevelHandler serves eligibility checks, trust level applications and
// their review.
type TrustLevelHandler struct {
	Users     UserStore
	TrustApps TrustApplicationStore
	Stats     PlayerStatsStore
	Rep       ReputationStore
	Events    EventPublisher
}

func NewTrustLevelHandler(u UserStore, t TrustApplicationStore, s PlayerStatsStore, r ReputationStore, e EventPublisher) *TrustLevelHandler {
	return &TrustLevelHandler{Users: u, TrustApps: t, Stats: s, Rep: r, Events: e}
}

// currentMetrics gathers the live qualifying numbers for a user. A missing
// stats row counts as zero playtime; reputation defaults the same way.
func (h *TrustLevelHandler) currentMetrics(ctx context.Context, u model.User) (trust.Metrics, error) {
	m := trust.Metrics{EmailVerified: u.IsEmailVerified}
	stats, err := h.Stats.Get(ctx, u.ID)
	if err != nil && err != sql.ErrNoRows {
		return m, err
	}
	m.PlaytimeMinutes = stats.PlaytimeMinutes
	rec, err := h.Rep.GetRecord(ctx, u.ID)
	if err != nil {
		return m, err
	}
	m.Reputation = rec.Score
	return m, nil
}

// Eligibility reports whether the caller currently qualifies for the target
// level (default: one above their current level), and which requirements are
// missing when they do not. Pure read; drives the progress UI.
func (h *TrustLevelHandler) Eligibility(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	target := u.TrustLevel + 1
	if s := c.QueryParam("target"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "target must be an integer level"})
		}
		target = n
	}

	metrics, err := h.currentMetrics(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	eligible, missing, err := trust.CheckEligibility(u.TrustLevel, target, metrics)
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition"})
	}
	if missing == nil {
		missing = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"current_level":        u.TrustLevel,
		"target_level":         target,
		"eligible":             eligible,
		"missing_requirements": missing,
		"metrics": echo.Map{
			"email_verified":   metrics.EmailVerified,
			"playtime_minutes": metrics.PlaytimeMinutes,
			"reputation":       metrics.Reputation,
		},
	})
}

type trustApplyReq struct {
	TargetLevel int    `json:"target_level"`
	Motivation  string `json:"motivation"`
}

// Apply submits a trust level application. The current metrics are
// snapshotted into the application so later changes cannot retroactively
// invalidate a pending review.
func (h *TrustLevelHandler) Apply(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req trustApplyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := trust.ValidateTransition(u.TrustLevel, req.TargetLevel); err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition"})
	}
	metrics, err := h.currentMetrics(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	eligible, missing, err := trust.CheckEligibility(u.TrustLevel, req.TargetLevel, metrics)
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition"})
	}
	if !eligible {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":                "not_eligible",
			"missing_requirements": missing,
		})
	}

	app := model.TrustLevelApplication{
		UserID:         u.ID,
		CurrentLevel:   u.TrustLevel,
		RequestedLevel: req.TargetLevel,
		Motivation:     strings.TrimSpace(req.Motivation),
		SnapPlaytime:   metrics.PlaytimeMinutes,
		SnapReputation: metrics.Reputation,
		SnapEmailOK:    metrics.EmailVerified,
	}
	if err := h.TrustApps.Create(ctx, &app); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":           app.ID,
		"status":       app.Status,
		"submitted_at": app.SubmittedAt,
	})
}

// ListPending returns the trust level review queue (moderator/admin).
func (h *TrustLevelHandler) ListPending(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	apps, err := h.TrustApps.ListPending(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{"applications": apps})
}

// Review decides a pending trust level application (moderator/admin). This
// transaction is the only normal-path write to users.trust_level; playtime
// and reputation alone never auto-promote.
func (h *TrustLevelHandler) Review(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	appID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid application id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if decision != "approved" && decision != "rejected" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "decision must be approved or rejected"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	app, err := h.TrustApps.Review(ctx, appID, p.UserID, decision == "approved", req.Comment)
	if err != nil {
		switch {
		case err == sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		case errors.Is(err, repository.ErrAlreadyReviewed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already_reviewed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
		}
	}
	if app.Status == model.ApplicationApproved {
		_ = h.Events.PublishModerationEvent(ctx, queue.ModerationEvent{
			Kind: queue.TrustLevelPromoted, SubjectID: app.ID, UserID: app.UserID,
			ReviewerID: p.UserID, Detail: "level " + strconv.Itoa(app.RequestedLevel),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": app.Status})
}

// AdminSetLevel writes a trust level directly, bypassing the state machine.
// An escape hatch for admins, not a transition.
func (h *TrustLevelHandler) AdminSetLevel(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid user id"})
	}
	var req struct {
		Level int `json:"level"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if req.Level < trust.MinLevel || req.Level > trust.MaxLevel {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "level must be 0-3"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := h.Users.SetTrustLevel(ctx, userID, req.Level); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}
