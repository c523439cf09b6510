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

	"github.com/iliyamo/craft-community/internal/config"
	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/queue"
	"github.com/iliyamo/craft-community/internal/repository"
	"github.com/iliyamo/craft-community/internal/utils"
)

// Free-text length bounds for application fields. Content-quality gates, not
// security boundaries.
const (
	motivationMin = 50
	motivationMax = 800
	plansMin      = 30
	plansMax      = 600
)

// Abuse guard: applications filed per IP inside the window.
const (
	applicationIPLimit  = 10
	applicationIPWindow = 24 * time.Hour
)

// ApplicationHandler serves the whitelist application workflow: anonymous
// submission and status lookup, and the moderator review queue.
type ApplicationHandler struct {
	Cfg    config.Config
	Apps   ApplicationStore
	Mail   MailSender
	Events EventPublisher
}

func NewApplicationHandler(cfg config.Config, apps ApplicationStore, mail MailSender, events EventPublisher) *ApplicationHandler {
	return &ApplicationHandler{Cfg: cfg, Apps: apps, Mail: mail, Events: events}
}

type submitApplicationReq struct {
	Nickname   string `json:"nickname"`
	Email      string `json:"email"`
	Discord    string `json:"discord"`
	Motivation string `json:"motivation"`
	Plans      string `json:"plans"`
}

// Submit files a new whitelist application (anonymous).
func (h *ApplicationHandler) Submit(c echo.Context) error {
	var req submitApplicationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if detail, ok := validateApplication(&req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": detail})
	}
	ip := c.RealIP()

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Apps.CountRecentByIP(ctx, ip, applicationIPWindow)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if n >= applicationIPLimit {
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "ip_rate_limited"})
	}

	app := model.Application{
		Nickname:   req.Nickname,
		Email:      req.Email,
		Discord:    strings.TrimSpace(req.Discord),
		Motivation: strings.TrimSpace(req.Motivation),
		Plans:      strings.TrimSpace(req.Plans),
		IP:         ip,
	}
	if err := h.Apps.Create(ctx, &app); err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_active"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":           app.ID,
		"status":       app.Status,
		"submitted_at": app.SubmittedAt,
	})
}

func validateApplication(req *submitApplicationReq) (string, bool) {
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case !utils.ValidNickname(req.Nickname):
		return "nickname must be 3-16 chars, letters, digits and underscore", false
	case !utils.ValidEmail(req.Email):
		return "invalid email address", false
	case !utils.LenInRange(req.Motivation, motivationMin, motivationMax):
		return "motivation must be 50-800 characters", false
	case !utils.LenInRange(req.Plans, plansMin, plansMax):
		return "plans must be 30-600 characters", false
	}
	return "", true
}

// Status returns the most recent application for an email (anonymous by
// design: applicants have no account yet). Only the status fields are
// exposed, never the application body.
func (h *ApplicationHandler) Status(c echo.Context) error {
	email := strings.ToLower(strings.TrimSpace(c.QueryParam("email")))
	if !utils.ValidEmail(email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid email address"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	app, err := h.Apps.LatestByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":       app.Status,
		"submitted_at": app.SubmittedAt,
		"reviewed_at":  app.ReviewedAt,
	})
}

// ListPending returns the review queue (moderator/admin).
func (h *ApplicationHandler) ListPending(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	apps, err := h.Apps.ListPending(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{"applications": apps})
}

type reviewReq struct {
	Decision string `json:"decision"` // approved | rejected
	Comment  string `json:"comment"`
}

// Review decides a pending application (moderator/admin). Approval
// provisions the account in one transaction; the temporary password goes out
// by mail and is never returned through the API.
func (h *ApplicationHandler) Review(c echo.Context) error {
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

	app, err := h.Apps.GetByID(ctx, appID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}

	if decision == "rejected" {
		if err := h.Apps.Reject(ctx, appID, p.UserID, req.Comment); err != nil {
			return h.reviewErr(c, err)
		}
		h.Mail.SendRejection(app.Email, app.Nickname, req.Comment)
		_ = h.Events.PublishModerationEvent(ctx, queue.ModerationEvent{
			Kind: queue.ApplicationRejected, SubjectID: appID,
			Nickname: app.Nickname, ReviewerID: p.UserID, Detail: req.Comment,
		})
		return c.JSON(http.StatusOK, echo.Map{"status": model.ApplicationRejected})
	}

	tempPassword, err := utils.NewTempPassword()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	hash, err := utils.HashPassword(tempPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	userID, err := h.Apps.Approve(ctx, appID, p.UserID, req.Comment, hash)
	if err != nil {
		return h.reviewErr(c, err)
	}
	h.Mail.SendApproval(app.Email, app.Nickname, tempPassword)
	_ = h.Events.PublishModerationEvent(ctx, queue.ModerationEvent{
		Kind: queue.ApplicationApproved, SubjectID: appID, UserID: userID,
		Nickname: app.Nickname, ReviewerID: p.UserID, Detail: req.Comment,
	})
	return c.JSON(http.StatusOK, echo.Map{"status": model.ApplicationApproved, "user_id": userID})
}

func (h *ApplicationHandler) reviewErr(c echo.Context, err error) error {
	switch {
	case err == sql.ErrNoRows:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, repository.ErrAlreadyReviewed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already_reviewed"})
	case errors.Is(err, repository.ErrNicknameExists), errors.Is(err, repository.ErrEmailExists):
		// An account with this identity already exists; the transaction
		// rolled back and the application stays pending.
		return c.JSON(http.StatusConflict, echo.Map{"error": "account_exists"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
}
