package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/utils"
)

// principalKey is the context key under which the resolved caller identity
// is stored by the auth middlewares.
const principalKey = "principal"

// Principal is the resolved identity of an authenticated caller: user id,
// role and trust level, re-read from the users table on every request.
// Session tokens and JWTs never act as a cache of role or ban state; a role
// change or ban takes effect on the caller's very next request.
type Principal struct {
	UserID      uint64
	Nickname    string
	Role        string
	TrustLevel  int
	EmailOK     bool
	ViaApiToken bool
	Permissions string // comma separated, only set when ViaApiToken
}

// CurrentPrincipal returns the principal stored by SessionAuth or
// ApiTokenAuth, or false when the request is unauthenticated.
func CurrentPrincipal(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}

// SessionStore is the subset of the session repository the middleware needs.
type SessionStore interface {
	GetActiveByHash(ctx context.Context, tokenHash string) (model.Session, error)
	Deactivate(ctx context.Context, tokenHash string) error
}

// UserStore resolves current user state for every authenticated request.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// ApiTokenStore is the subset of the API token repository the middleware needs.
type ApiTokenStore interface {
	GetActiveByHash(ctx context.Context, tokenHash string) (model.ApiToken, error)
	TouchLastUsed(ctx context.Context, id uint64) error
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// SessionAuth validates an opaque web session token. The token is hashed and
// looked up in the sessions table; the owning user row is then re-read so
// that bans and role changes apply immediately. Failures are deliberately
// uniform ("unauthenticated") except for an active ban, which is safe to
// disclose to a caller who already holds a valid session.
func SessionAuth(sessions SessionStore, users UserStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			hash := utils.HashTokenRaw(raw)
			sess, err := sessions.GetActiveByHash(ctx, hash)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			u, err := users.GetByID(ctx, sess.UserID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			if u.BanActive(time.Now().UTC()) {
				// Kill the session so the banned user is logged out everywhere
				// they present this token.
				_ = sessions.Deactivate(ctx, hash)
				return c.JSON(http.StatusForbidden, echo.Map{"error": "banned"})
			}
			c.Set(principalKey, Principal{
				UserID:     u.ID,
				Nickname:   u.Nickname,
				Role:       u.Role,
				TrustLevel: u.TrustLevel,
				EmailOK:    u.IsEmailVerified,
			})
			c.Set("session_hash", hash)
			return next(c)
		}
	}
}

// ApiTokenAuth authenticates the external game-server process. The presented
// secret is hashed and matched against active API tokens; when no token
// matches, the bearer is parsed as a web JWT instead so tooling scripts can
// reuse access tokens. Both paths converge on the same Principal shape and
// both re-read the user row before granting access.
func ApiTokenAuth(tokens ApiTokenStore, users UserStore, jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			if tok, err := tokens.GetActiveByHash(ctx, utils.HashTokenRaw(raw)); err == nil {
				u, err := users.GetByID(ctx, tok.UserID)
				if err != nil || u.BanActive(time.Now().UTC()) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				_ = tokens.TouchLastUsed(ctx, tok.ID)
				c.Set(principalKey, Principal{
					UserID:      u.ID,
					Nickname:    u.Nickname,
					Role:        u.Role,
					TrustLevel:  u.TrustLevel,
					EmailOK:     u.IsEmailVerified,
					ViaApiToken: true,
					Permissions: tok.Permissions,
				})
				return next(c)
			} else if err != sql.ErrNoRows {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "auth lookup failed"})
			}

			// JWT fallback.
			uid, ok := parseAccessSubject(raw, jwtSecret)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			u, err := users.GetByID(ctx, uid)
			if err != nil || u.BanActive(time.Now().UTC()) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(principalKey, Principal{
				UserID:     u.ID,
				Nickname:   u.Nickname,
				Role:       u.Role,
				TrustLevel: u.TrustLevel,
				EmailOK:    u.IsEmailVerified,
			})
			return next(c)
		}
	}
}

// parseAccessSubject validates an HS256 access token and extracts the sub
// claim. Only the subject is taken from the claims; role and ban state come
// from the database.
func parseAccessSubject(raw, secret string) (uint64, bool) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, false
	}
	return uint64(sub), true
}
