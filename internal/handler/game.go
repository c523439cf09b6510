package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/craft-community/internal/config"
	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/repository"
	"github.com/iliyamo/craft-community/internal/utils"
)

// GameHandler covers the bridge between the site and the game server:
// one-time game login tokens on the user side, and the plugin-facing verify,
// session and stats endpoints authenticated by api token.
type GameHandler struct {
	Cfg          config.Config
	Users        UserStore
	Apps         ApplicationStore
	GameTokens   GameTokenStore
	GameSessions GameSessionStore
	Stats        PlayerStatsStore
}

func NewGameHandler(cfg config.Config, u UserStore, a ApplicationStore, t GameTokenStore, s GameSessionStore, st PlayerStatsStore) *GameHandler {
	return &GameHandler{Cfg: cfg, Users: u, Apps: a, GameTokens: t, GameSessions: s, Stats: st}
}

// IssueToken generates a fresh one-time game login token for the calling
// user. Requires an approved application on record; re-issuing invalidates
// any previous unused token.
func (h *GameHandler) IssueToken(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	approved, err := h.Apps.HasApprovedForUser(ctx, p.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if !approved {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no_approved_application"})
	}

	tok, err := utils.NewOpaqueToken(time.Duration(h.Cfg.GameTokenTTLMin) * time.Minute)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := h.GameTokens.Issue(ctx, p.UserID, utils.HashTokenRaw(tok.Raw), tok.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token":      tok.Raw,
		"expires_at": tok.Exp,
	})
}

type verifyTokenReq struct {
	Token    string `json:"token"`
	Nickname string `json:"nickname"`
}

// VerifyToken is called by the game server plugin when a player runs the
// in-game login command. The presented nickname must match the account that
// issued the token (case-insensitive), and banned accounts fail even with a
// valid token. The token is marked used only on success: a mismatch or ban
// rejection leaves it live, so a guesser cannot burn the owner's token.
func (h *GameHandler) VerifyToken(c echo.Context) error {
	var req verifyTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	req.Token = strings.TrimSpace(req.Token)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Token == "" || req.Nickname == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "token and nickname are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash := utils.HashTokenRaw(req.Token)
	tok, err := h.GameTokens.Peek(ctx, hash)
	if err != nil {
		return gameTokenErr(c, err)
	}

	u, err := h.Users.GetByID(ctx, tok.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if !strings.EqualFold(u.Nickname, req.Nickname) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "identity_mismatch"})
	}
	if u.BanActive(time.Now().UTC()) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "banned"})
	}

	// All checks passed; the row lock inside Consume decides the winner if
	// two verifications race past the peek.
	if _, err := h.GameTokens.Consume(ctx, hash); err != nil {
		return gameTokenErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":     u.ID,
		"nickname":    u.Nickname,
		"trust_level": u.TrustLevel,
	})
}

func gameTokenErr(c echo.Context, err error) error {
	switch {
	case err == sql.ErrNoRows:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
	case errors.Is(err, repository.ErrTokenUsed):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_used"})
	case errors.Is(err, repository.ErrTokenExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_expired"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
}

type createGameSessionReq struct {
	UserID     uint64 `json:"user_id"`
	PlayerUUID string `json:"player_uuid"`
	Nickname   string `json:"nickname"`
	IP         string `json:"ip"`
}

// CreateSession records a verified in-game login as a game session bound to
// the player's UUID, nickname and connecting IP. Any previous active session
// for the same user and UUID is superseded.
func (h *GameHandler) CreateSession(c echo.Context) error {
	var req createGameSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	id, err := uuid.Parse(strings.TrimSpace(req.PlayerUUID))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid player uuid"})
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.IP = strings.TrimSpace(req.IP)
	if req.UserID == 0 || req.Nickname == "" || req.IP == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "user_id, nickname and ip are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if u.BanActive(time.Now().UTC()) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "banned"})
	}
	if !strings.EqualFold(u.Nickname, req.Nickname) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "identity_mismatch"})
	}

	exp := time.Now().UTC().Add(time.Duration(h.Cfg.GameSessTTLDays) * 24 * time.Hour)
	sess := model.GameSession{
		UserID:     u.ID,
		PlayerUUID: id.String(), // canonical lowercase form
		Nickname:   u.Nickname,
		IP:         req.IP,
		ExpiresAt:  exp,
	}
	if err := h.GameSessions.Create(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user_id":    u.ID,
		"expires_at": exp,
	})
}

type checkGameSessionReq struct {
	PlayerUUID string `json:"player_uuid"`
	Nickname   string `json:"nickname"`
	IP         string `json:"ip"`
}

// CheckSession lets the plugin skip token entry for returning players: a
// session is only honored for the exact nickname, UUID and IP it was created
// with, and only while the account is in good standing.
func (h *GameHandler) CheckSession(c echo.Context) error {
	var req checkGameSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	id, err := uuid.Parse(strings.TrimSpace(req.PlayerUUID))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid player uuid"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.GameSessions.CheckActive(ctx, strings.TrimSpace(req.Nickname), id.String(), strings.TrimSpace(req.IP))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusOK, echo.Map{"valid": false})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	u, err := h.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if u.BanActive(time.Now().UTC()) {
		return c.JSON(http.StatusOK, echo.Map{"valid": false, "reason": "banned"})
	}
	if err := h.GameSessions.TouchLastLogin(ctx, sess.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":       true,
		"user_id":     u.ID,
		"trust_level": u.TrustLevel,
	})
}

type updateStatsReq struct {
	UserID          uint64 `json:"user_id"`
	PlaytimeMinutes int    `json:"playtime_minutes"`
	Kills           int    `json:"kills"`
	Deaths          int    `json:"deaths"`
}

// UpdateStats accepts accumulated play deltas from the game server. Deltas
// are additive; negative values are rejected.
func (h *GameHandler) UpdateStats(c echo.Context) error {
	var req updateStatsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "user_id is required"})
	}
	if req.PlaytimeMinutes < 0 || req.Kills < 0 || req.Deaths < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "deltas must be non-negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, req.UserID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := h.Stats.AddDeltas(ctx, req.UserID, req.PlaytimeMinutes, req.Kills, req.Deaths); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}

// MyStats returns the calling user's own playtime and combat stats.
func (h *GameHandler) MyStats(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Stats.Get(ctx, p.UserID)
	if err != nil && err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"playtime_minutes": stats.PlaytimeMinutes,
		"kills":            stats.Kills,
		"deaths":           stats.Deaths,
	})
}
