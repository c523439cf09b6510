package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/craft-community/internal/config"
	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/queue"
)

// Func-field mocks for the store interfaces. A nil field means the call is
// unexpected for that test and panics, except for fire-and-forget surfaces
// (attempt logging, events, mail) which default to no-ops.

type mockUserStore struct {
	createFn            func(ctx context.Context, nickname, email, passwordHash, role string) (uint64, error)
	getByIDFn           func(ctx context.Context, id uint64) (model.User, error)
	getByEmailFn        func(ctx context.Context, email string) (model.User, error)
	getByNicknameFn     func(ctx context.Context, nickname string) (model.User, error)
	touchLastLoginFn    func(ctx context.Context, id uint64) error
	setPasswordFn       func(ctx context.Context, id uint64, password string, cost int) error
	setVerifyCodeFn     func(ctx context.Context, id uint64, codeHash string) error
	verifyEmailByCodeFn func(ctx context.Context, id uint64, codeHash string) (bool, error)
	setTrustLevelFn     func(ctx context.Context, id uint64, level int) error
	setBanFn            func(ctx context.Context, id uint64, banned bool, reason string, expiresAt *time.Time) error
}

func (m *mockUserStore) Create(ctx context.Context, nickname, email, passwordHash, role string) (uint64, error) {
	if m.createFn == nil {
		panic("unexpected call to Create")
	}
	return m.createFn(ctx, nickname, email, passwordHash, role)
}

func (m *mockUserStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	if m.getByIDFn == nil {
		panic("unexpected call to GetByID")
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	if m.getByEmailFn == nil {
		panic("unexpected call to GetByEmail")
	}
	return m.getByEmailFn(ctx, email)
}

func (m *mockUserStore) GetByNickname(ctx context.Context, nickname string) (model.User, error) {
	if m.getByNicknameFn == nil {
		panic("unexpected call to GetByNickname")
	}
	return m.getByNicknameFn(ctx, nickname)
}

func (m *mockUserStore) TouchLastLogin(ctx context.Context, id uint64) error {
	if m.touchLastLoginFn == nil {
		return nil
	}
	return m.touchLastLoginFn(ctx, id)
}

func (m *mockUserStore) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	if m.setPasswordFn == nil {
		panic("unexpected call to SetPassword")
	}
	return m.setPasswordFn(ctx, id, password, cost)
}

func (m *mockUserStore) SetVerifyCode(ctx context.Context, id uint64, codeHash string) error {
	if m.setVerifyCodeFn == nil {
		panic("unexpected call to SetVerifyCode")
	}
	return m.setVerifyCodeFn(ctx, id, codeHash)
}

func (m *mockUserStore) VerifyEmailByCode(ctx context.Context, id uint64, codeHash string) (bool, error) {
	if m.verifyEmailByCodeFn == nil {
		panic("unexpected call to VerifyEmailByCode")
	}
	return m.verifyEmailByCodeFn(ctx, id, codeHash)
}

func (m *mockUserStore) SetTrustLevel(ctx context.Context, id uint64, level int) error {
	if m.setTrustLevelFn == nil {
		panic("unexpected call to SetTrustLevel")
	}
	return m.setTrustLevelFn(ctx, id, level)
}

func (m *mockUserStore) SetBan(ctx context.Context, id uint64, banned bool, reason string, expiresAt *time.Time) error {
	if m.setBanFn == nil {
		panic("unexpected call to SetBan")
	}
	return m.setBanFn(ctx, id, banned, reason, expiresAt)
}

type mockSessionStore struct {
	createFn               func(ctx context.Context, userID uint64, tokenHash string, exp time.Time, ip, userAgent string) error
	getActiveByHashFn      func(ctx context.Context, tokenHash string) (model.Session, error)
	deactivateFn           func(ctx context.Context, tokenHash string) error
	deactivateAllForUserFn func(ctx context.Context, userID uint64) error
}

func (m *mockSessionStore) Create(ctx context.Context, userID uint64, tokenHash string, exp time.Time, ip, userAgent string) error {
	if m.createFn == nil {
		panic("unexpected call to Create")
	}
	return m.createFn(ctx, userID, tokenHash, exp, ip, userAgent)
}

func (m *mockSessionStore) GetActiveByHash(ctx context.Context, tokenHash string) (model.Session, error) {
	if m.getActiveByHashFn == nil {
		panic("unexpected call to GetActiveByHash")
	}
	return m.getActiveByHashFn(ctx, tokenHash)
}

func (m *mockSessionStore) Deactivate(ctx context.Context, tokenHash string) error {
	if m.deactivateFn == nil {
		panic("unexpected call to Deactivate")
	}
	return m.deactivateFn(ctx, tokenHash)
}

func (m *mockSessionStore) DeactivateAllForUser(ctx context.Context, userID uint64) error {
	if m.deactivateAllForUserFn == nil {
		panic("unexpected call to DeactivateAllForUser")
	}
	return m.deactivateAllForUserFn(ctx, userID)
}

type mockAttemptStore struct {
	recordFn              func(ctx context.Context, email, ip string, success bool) error
	countRecentFailuresFn func(ctx context.Context, email, ip string, window time.Duration) (int, error)
}

func (m *mockAttemptStore) Record(ctx context.Context, email, ip string, success bool) error {
	if m.recordFn == nil {
		return nil
	}
	return m.recordFn(ctx, email, ip, success)
}

func (m *mockAttemptStore) CountRecentFailures(ctx context.Context, email, ip string, window time.Duration) (int, error) {
	if m.countRecentFailuresFn == nil {
		panic("unexpected call to CountRecentFailures")
	}
	return m.countRecentFailuresFn(ctx, email, ip, window)
}

type mockGameTokenStore struct {
	issueFn   func(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	peekFn    func(ctx context.Context, tokenHash string) (model.GameLoginToken, error)
	consumeFn func(ctx context.Context, tokenHash string) (model.GameLoginToken, error)
}

func (m *mockGameTokenStore) Peek(ctx context.Context, tokenHash string) (model.GameLoginToken, error) {
	if m.peekFn == nil {
		panic("unexpected call to Peek")
	}
	return m.peekFn(ctx, tokenHash)
}

func (m *mockGameTokenStore) Issue(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	if m.issueFn == nil {
		panic("unexpected call to Issue")
	}
	return m.issueFn(ctx, userID, tokenHash, exp)
}

func (m *mockGameTokenStore) Consume(ctx context.Context, tokenHash string) (model.GameLoginToken, error) {
	if m.consumeFn == nil {
		panic("unexpected call to Consume")
	}
	return m.consumeFn(ctx, tokenHash)
}

type mockGameSessionStore struct {
	createFn         func(ctx context.Context, s model.GameSession) error
	checkActiveFn    func(ctx context.Context, nickname, playerUUID, ip string) (model.GameSession, error)
	touchLastLoginFn func(ctx context.Context, id uint64) error
}

func (m *mockGameSessionStore) Create(ctx context.Context, s model.GameSession) error {
	if m.createFn == nil {
		panic("unexpected call to Create")
	}
	return m.createFn(ctx, s)
}

func (m *mockGameSessionStore) CheckActive(ctx context.Context, nickname, playerUUID, ip string) (model.GameSession, error) {
	if m.checkActiveFn == nil {
		panic("unexpected call to CheckActive")
	}
	return m.checkActiveFn(ctx, nickname, playerUUID, ip)
}

func (m *mockGameSessionStore) TouchLastLogin(ctx context.Context, id uint64) error {
	if m.touchLastLoginFn == nil {
		return nil
	}
	return m.touchLastLoginFn(ctx, id)
}

type mockApiTokenStore struct {
	createFn func(ctx context.Context, userID uint64, name, tokenHash, permissions string, expiresAt *time.Time) (uint64, error)
	revokeFn func(ctx context.Context, id uint64) error
}

func (m *mockApiTokenStore) Create(ctx context.Context, userID uint64, name, tokenHash, permissions string, expiresAt *time.Time) (uint64, error) {
	if m.createFn == nil {
		panic("unexpected call to Create")
	}
	return m.createFn(ctx, userID, name, tokenHash, permissions, expiresAt)
}

func (m *mockApiTokenStore) Revoke(ctx context.Context, id uint64) error {
	if m.revokeFn == nil {
		panic("unexpected call to Revoke")
	}
	return m.revokeFn(ctx, id)
}

type mockApplicationStore struct {
	createFn             func(ctx context.Context, a *model.Application) error
	countRecentByIPFn    func(ctx context.Context, ip string, window time.Duration) (int, error)
	getByIDFn            func(ctx context.Context, id uint64) (model.Application, error)
	latestByEmailFn      func(ctx context.Context, email string) (model.Application, error)
	listPendingFn        func(ctx context.Context, limit int) ([]model.Application, error)
	approveFn            func(ctx context.Context, appID, reviewerID uint64, comment, passwordHash string) (uint64, error)
	rejectFn             func(ctx context.Context, appID, reviewerID uint64, comment string) error
	hasApprovedForUserFn func(ctx context.Context, userID uint64) (bool, error)
}

func (m *mockApplicationStore) Create(ctx context.Context, a *model.Application) error {
	if m.createFn == nil {
		panic("unexpected call to Create")
	}
	return m.createFn(ctx, a)
}

func (m *mockApplicationStore) CountRecentByIP(ctx context.Context, ip string, window time.Duration) (int, error) {
	if m.countRecentByIPFn == nil {
		panic("unexpected call to CountRecentByIP")
	}
	return m.countRecentByIPFn(ctx, ip, window)
}

func (m *mockApplicationStore) GetByID(ctx context.Context, id uint64) (model.Application, error) {
	if m.getByIDFn == nil {
		panic("unexpected call to GetByID")
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockApplicationStore) LatestByEmail(ctx context.Context, email string) (model.Application, error) {
	if m.latestByEmailFn == nil {
		panic("unexpected call to LatestByEmail")
	}
	return m.latestByEmailFn(ctx, email)
}

func (m *mockApplicationStore) ListPending(ctx context.Context, limit int) ([]model.Application, error) {
	if m.listPendingFn == nil {
		panic("unexpected call to ListPending")
	}
	return m.listPendingFn(ctx, limit)
}

func (m *mockApplicationStore) Approve(ctx context.Context, appID, reviewerID uint64, comment, passwordHash string) (uint64, error) {
	if m.approveFn == nil {
		panic("unexpected call to Approve")
	}
	return m.approveFn(ctx, appID, reviewerID, comment, passwordHash)
}

func (m *mockApplicationStore) Reject(ctx context.Context, appID, reviewerID uint64, comment string) error {
	if m.rejectFn == nil {
		panic("unexpected call to Reject")
	}
	return m.rejectFn(ctx, appID, reviewerID, comment)
}

func (m *mockApplicationStore) HasApprovedForUser(ctx context.Context, userID uint64) (bool, error) {
	if m.hasApprovedForUserFn == nil {
		panic("unexpected call to HasApprovedForUser")
	}
	return m.hasApprovedForUserFn(ctx, userID)
}

type mockTrustAppStore struct {
	createFn      func(ctx context.Context, a *model.TrustLevelApplication) error
	getByIDFn     func(ctx context.Context, id uint64) (model.TrustLevelApplication, error)
	listPendingFn func(ctx context.Context, limit int) ([]model.TrustLevelApplication, error)
	reviewFn      func(ctx context.Context, appID, reviewerID uint64, approve bool, comment string) (model.TrustLevelApplication, error)
}

func (m *mockTrustAppStore) Create(ctx context.Context, a *model.TrustLevelApplication) error {
	if m.createFn == nil {
		panic("unexpected call to Create")
	}
	return m.createFn(ctx, a)
}

func (m *mockTrustAppStore) GetByID(ctx context.Context, id uint64) (model.TrustLevelApplication, error) {
	if m.getByIDFn == nil {
		panic("unexpected call to GetByID")
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockTrustAppStore) ListPending(ctx context.Context, limit int) ([]model.TrustLevelApplication, error) {
	if m.listPendingFn == nil {
		panic("unexpected call to ListPending")
	}
	return m.listPendingFn(ctx, limit)
}

func (m *mockTrustAppStore) Review(ctx context.Context, appID, reviewerID uint64, approve bool, comment string) (model.TrustLevelApplication, error) {
	if m.reviewFn == nil {
		panic("unexpected call to Review")
	}
	return m.reviewFn(ctx, appID, reviewerID, approve, comment)
}

type mockReputationStore struct {
	appendFn        func(ctx context.Context, ev model.ReputationEvent) error
	lastVoteAtFn    func(ctx context.Context, voterID, targetUserID uint64) (time.Time, error)
	getRecordFn     func(ctx context.Context, userID uint64) (model.ReputationRecord, error)
	eventsForUserFn func(ctx context.Context, userID uint64, limit int) ([]model.ReputationEvent, error)
}

func (m *mockReputationStore) Append(ctx context.Context, ev model.ReputationEvent) error {
	if m.appendFn == nil {
		panic("unexpected call to Append")
	}
	return m.appendFn(ctx, ev)
}

func (m *mockReputationStore) LastVoteAt(ctx context.Context, voterID, targetUserID uint64) (time.Time, error) {
	if m.lastVoteAtFn == nil {
		panic("unexpected call to LastVoteAt")
	}
	return m.lastVoteAtFn(ctx, voterID, targetUserID)
}

func (m *mockReputationStore) GetRecord(ctx context.Context, userID uint64) (model.ReputationRecord, error) {
	if m.getRecordFn == nil {
		panic("unexpected call to GetRecord")
	}
	return m.getRecordFn(ctx, userID)
}

func (m *mockReputationStore) EventsForUser(ctx context.Context, userID uint64, limit int) ([]model.ReputationEvent, error) {
	if m.eventsForUserFn == nil {
		panic("unexpected call to EventsForUser")
	}
	return m.eventsForUserFn(ctx, userID, limit)
}

type mockStatsStore struct {
	getFn       func(ctx context.Context, userID uint64) (model.PlayerStats, error)
	addDeltasFn func(ctx context.Context, userID uint64, playtimeMin, kills, deaths int) error
}

func (m *mockStatsStore) Get(ctx context.Context, userID uint64) (model.PlayerStats, error) {
	if m.getFn == nil {
		panic("unexpected call to Get")
	}
	return m.getFn(ctx, userID)
}

func (m *mockStatsStore) AddDeltas(ctx context.Context, userID uint64, playtimeMin, kills, deaths int) error {
	if m.addDeltasFn == nil {
		panic("unexpected call to AddDeltas")
	}
	return m.addDeltasFn(ctx, userID, playtimeMin, kills, deaths)
}

// mockPublisher records every published event.
type mockPublisher struct {
	events []queue.ModerationEvent
}

func (m *mockPublisher) PublishModerationEvent(_ context.Context, event queue.ModerationEvent) error {
	m.events = append(m.events, event)
	return nil
}

// mockMailer records outgoing mail.
type mockMailer struct {
	approvals  []string
	rejections []string
	codes      []string
}

func (m *mockMailer) SendApproval(email, nickname, tempPassword string) {
	m.approvals = append(m.approvals, email)
}

func (m *mockMailer) SendRejection(email, nickname, comment string) {
	m.rejections = append(m.rejections, email)
}

func (m *mockMailer) SendVerifyCode(email, code string) {
	m.codes = append(m.codes, code)
}

// ----- request helpers -----

func testConfig() config.Config {
	return config.Config{
		Env: "test", Port: "0", JWTSecret: "test-secret",
		AccessTTLMin: 30, SessionTTLHours: 24, RememberTTLDays: 30,
		GameTokenTTLMin: 15, GameSessTTLDays: 7,
		BcryptCost: 4, // minimal cost keeps the suite fast
	}
}

func newJSONContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func withPrincipal(c echo.Context, p middleware.Principal) {
	c.Set("principal", p)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}
