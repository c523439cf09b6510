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

// AdminHandler groups the moderator/admin account operations: bans, direct
// user creation and api token management.
type AdminHandler struct {
	Cfg       config.Config
	Users     UserStore
	Sessions  SessionStore
	Stats     PlayerStatsStore
	ApiTokens ApiTokenStore
	Events    EventPublisher
}

func NewAdminHandler(cfg config.Config, u UserStore, s SessionStore, st PlayerStatsStore, t ApiTokenStore, e EventPublisher) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Users: u, Sessions: s, Stats: st, ApiTokens: t, Events: e}
}

type banReq struct {
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"` // null = permanent
}

// Ban flags a user as banned and kills every active web session so the ban
// takes effect on the next request rather than at token expiry.
func (h *AdminHandler) Ban(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid user id"})
	}
	var req banReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "reason is required"})
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "expires_at must be in the future"})
	}
	if userID == p.UserID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "self_ban"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if u.Role == model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	if err := h.Users.SetBan(ctx, userID, true, reason, req.ExpiresAt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := h.Sessions.DeactivateAllForUser(ctx, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	_ = h.Events.PublishModerationEvent(ctx, queue.ModerationEvent{
		Kind: queue.UserBanned, UserID: userID, Nickname: u.Nickname,
		ReviewerID: p.UserID, Detail: reason,
	})
	return c.NoContent(http.StatusNoContent)
}

// Unban lifts a ban. Idempotent for already-unbanned users.
func (h *AdminHandler) Unban(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := h.Users.SetBan(ctx, userID, false, "", nil); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}

type createUserReq struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser provisions an account directly, skipping the application
// workflow. Meant for staff accounts and service accounts backing api
// tokens.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !utils.ValidNickname(req.Nickname) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "nickname must be 3-16 chars of letters, digits or underscore"})
	}
	if !utils.ValidEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid email"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "password must be at least 8 characters"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleModerator && role != model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "unknown role"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	id, err := h.Users.Create(ctx, req.Nickname, req.Email, hash, role)
	if err != nil {
		if errors.Is(err, repository.ErrNicknameExists) || errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "account_exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	// Seed the stats row so later delta updates always hit an aggregate.
	if err := h.Stats.AddDeltas(ctx, id, 0, 0, 0); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "nickname": req.Nickname, "role": role})
}

type createApiTokenReq struct {
	UserID      uint64     `json:"user_id"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at"` // null = non-expiring
}

// CreateApiToken mints a long-lived credential for the game server plugin.
// The raw secret appears exactly once in this response; only its hash is
// stored.
func (h *AdminHandler) CreateApiToken(c echo.Context) error {
	var req createApiTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.UserID == 0 || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "user_id and name are required"})
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "expires_at must be in the future"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, req.UserID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}

	tok, err := utils.NewOpaqueToken(0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	perms := strings.Join(req.Permissions, ",")
	id, err := h.ApiTokens.Create(ctx, req.UserID, req.Name, utils.HashTokenRaw(tok.Raw), perms, req.ExpiresAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":         id,
		"name":       req.Name,
		"token":      tok.Raw,
		"expires_at": req.ExpiresAt,
	})
}

// RevokeApiToken deactivates an api token. Requests bearing it fail from the
// next lookup onward.
func (h *AdminHandler) RevokeApiToken(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid token id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.ApiTokens.Revoke(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}
