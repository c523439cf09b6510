package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/craft-community/internal/config"
	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/utils"
)

// Login rate limit: this many failures against one email or from one IP
// inside the window block further attempts.
const (
	loginFailureLimit  = 5
	loginFailureWindow = time.Hour
)

// AuthHandler bundles dependencies for login, logout and account-credential
// endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore
	Attempts LoginAttemptStore
	Mail     MailSender
}

func NewAuthHandler(cfg config.Config, u UserStore, s SessionStore, a LoginAttemptStore, m MailSender) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Attempts: a, Mail: m}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID         uint64 `json:"id"`
	Nickname   string `json:"nickname"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	TrustLevel int    `json:"trust_level"`
	EmailOK    bool   `json:"is_email_verified"`
}

type loginResp struct {
	User    userPart  `json:"user"`
	Session tokenPart `json:"session"`
	Access  tokenPart `json:"access"`
}

// Login verifies credentials and opens a web session. Unknown email and
// wrong password produce the identical response so accounts cannot be
// enumerated. Every attempt, success or failure, lands in the append-only
// login attempt log that also backs the rate limiter.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "email and password required"})
	}
	ip := c.RealIP()

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	failures, err := h.Attempts.CountRecentFailures(ctx, req.Email, ip, loginFailureWindow)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if failures >= loginFailureLimit {
		// Still logged: the limiter window keeps extending while the caller
		// hammers the endpoint.
		_ = h.Attempts.Record(ctx, req.Email, ip, false)
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate_limited"})
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			_ = h.Attempts.Record(ctx, req.Email, ip, false)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		_ = h.Attempts.Record(ctx, req.Email, ip, false)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}
	if u.BanActive(time.Now().UTC()) {
		_ = h.Attempts.Record(ctx, req.Email, ip, false)
		return c.JSON(http.StatusForbidden, echo.Map{"error": "banned"})
	}

	ttl := time.Duration(h.Cfg.SessionTTLHours) * time.Hour
	if req.Remember {
		ttl = time.Duration(h.Cfg.RememberTTLDays) * 24 * time.Hour
	}
	sess, err := utils.NewOpaqueToken(ttl)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := h.Sessions.Create(ctx, u.ID, utils.HashTokenRaw(sess.Raw), sess.Exp, ip, c.Request().UserAgent()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}

	_ = h.Attempts.Record(ctx, req.Email, ip, true)
	_ = h.Users.TouchLastLogin(ctx, u.ID)

	return c.JSON(http.StatusOK, loginResp{
		User: userPart{
			ID: u.ID, Nickname: u.Nickname, Email: u.Email,
			Role: u.Role, TrustLevel: u.TrustLevel, EmailOK: u.IsEmailVerified,
		},
		Session: tokenPart{Token: sess.Raw, Expires: sess.Exp}, // raw back to client, only the hash is stored
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout deactivates the presented session token. Idempotent: logging out a
// session that is already inactive (or never existed) still returns 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "bearer session token required"})
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.Deactivate(ctx, utils.HashTokenRaw(raw)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every session of the authenticated user (protected).
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.DeactivateAllForUser(ctx, p.UserID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the resolved principal (protected). Doubles as the session
// verification endpoint: a 200 here proves the session is still valid.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":           p.UserID,
		"nickname":          p.Nickname,
		"role":              p.Role,
		"trust_level":       p.TrustLevel,
		"is_email_verified": p.EmailOK,
	})
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the current password, stores the new hash and
// revokes all sessions, forcing a fresh login everywhere.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "new password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}
	if err := h.Users.SetPassword(ctx, u.ID, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err := h.Sessions.DeactivateAllForUser(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestEmailVerification issues a fresh verification code and mails it to
// the account's address (protected).
func (h *AuthHandler) RequestEmailVerification(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	if p.EmailOK {
		return c.JSON(http.StatusConflict, echo.Map{"error": "already_verified"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	code, err := utils.NewOpaqueToken(24 * time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	short := code.Raw[:12] // a typed-in code, not a bearer credential
	if err := h.Users.SetVerifyCode(ctx, u.ID, utils.HashTokenRaw(short)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	h.Mail.SendVerifyCode(u.Email, short)
	return c.NoContent(http.StatusAccepted)
}

type verifyEmailReq struct {
	Code string `json:"code"`
}

// VerifyEmail confirms the address with a previously mailed code
// (protected).
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Users.VerifyEmailByCode(ctx, p.UserID, utils.HashTokenRaw(strings.TrimSpace(req.Code)))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_code"})
	}
	return c.NoContent(http.StatusNoContent)
}
