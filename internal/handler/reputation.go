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
	"github.com/iliyamo/craft-community/internal/repository"
)

const adminRepLimit = 100 // max |delta| for a single admin adjustment

// ReputationHandler serves peer votes, admin adjustments and reputation
// reads. Every write goes through the append-only event ledger.
type ReputationHandler struct {
	Users UserStore
	Rep   ReputationStore
}

func NewReputationHandler(u UserStore, r ReputationStore) *ReputationHandler {
	return &ReputationHandler{Users: u, Rep: r}
}

type voteReq struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// Vote casts a +1/-1 peer vote on another user. One vote per voter per
// target per 24h; self-votes are rejected.
func (h *ReputationHandler) Vote(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid user id"})
	}
	var req voteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if req.Delta != 1 && req.Delta != -1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "delta must be +1 or -1"})
	}
	if targetID == p.UserID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "self_vote"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, targetID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}

	// Fast-path check so most cooldown hits get a Retry-After without
	// opening a write transaction. Append re-checks under a row lock.
	last, err := h.Rep.LastVoteAt(ctx, p.UserID, targetID)
	if err != nil && err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	if err == nil && time.Since(last) < repository.VoteCooldown {
		return h.cooldownResp(c, last)
	}

	voterID := p.UserID
	ev := model.ReputationEvent{
		TargetUserID: targetID,
		VoterID:      &voterID,
		Delta:        req.Delta,
		Reason:       strings.TrimSpace(req.Reason),
	}
	if err := h.Rep.Append(ctx, ev); err != nil {
		if errors.Is(err, repository.ErrVoteCooldown) {
			if at, lerr := h.Rep.LastVoteAt(ctx, p.UserID, targetID); lerr == nil {
				return h.cooldownResp(c, at)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "vote_cooldown"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	rec, err := h.Rep.GetRecord(ctx, targetID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":        targetID,
		"score":          rec.Score,
		"positive_votes": rec.PositiveVotes,
		"negative_votes": rec.NegativeVotes,
	})
}

func (h *ReputationHandler) cooldownResp(c echo.Context, last time.Time) error {
	retry := repository.VoteCooldown - time.Since(last)
	if retry < 0 {
		retry = 0
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "vote_cooldown"})
}

type adjustReq struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// AdminAdjust applies a direct reputation correction (admin only). Exempt
// from vote cooldowns but still recorded in the ledger, flagged as an admin
// action.
func (h *ReputationHandler) AdminAdjust(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid user id"})
	}
	var req adjustReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if req.Delta == 0 || req.Delta < -adminRepLimit || req.Delta > adminRepLimit {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "delta must be non-zero and within ±100"})
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "reason is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, targetID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}

	adminID := p.UserID
	ev := model.ReputationEvent{
		TargetUserID:  targetID,
		VoterID:       &adminID,
		Delta:         req.Delta,
		Reason:        reason,
		IsAdminAction: true,
	}
	if err := h.Rep.Append(ctx, ev); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	rec, err := h.Rep.GetRecord(ctx, targetID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": targetID,
		"score":   rec.Score,
	})
}

// Record returns the aggregate reputation of a user. Users with no events
// report a zero record rather than 404.
func (h *ReputationHandler) Record(c echo.Context) error {
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, targetID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	rec, err := h.Rep.GetRecord(ctx, targetID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":        targetID,
		"score":          rec.Score,
		"positive_votes": rec.PositiveVotes,
		"negative_votes": rec.NegativeVotes,
	})
}

// History lists the reputation event ledger for a user, newest first
// (moderator/admin).
func (h *ReputationHandler) History(c echo.Context) error {
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "detail": "invalid user id"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Rep.EventsForUser(ctx, targetID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}
