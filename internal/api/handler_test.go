package api_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/solar-ledger/internal/api"
	"github.com/ayo6706/solar-ledger/internal/api/middleware"
	"github.com/ayo6706/solar-ledger/internal/config"
	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/idempotency"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/repository/memstore"
	"github.com/ayo6706/solar-ledger/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "solar-ledger-test"
	testJWTAudience = "solar-ledger-api-test"
	testWebhookKey  = "webhook-test-key"
)

var phoneSeq atomic.Int64

type testAPI struct {
	handler http.Handler
	auth    *middleware.Authenticator
	store   *memstore.Store
}

// setupAPI builds the full router over an in-memory store with the clock
// fixed at now.
func setupAPI(t *testing.T, now time.Time) *testAPI {
	t.Helper()
	store := memstore.New()
	rules := testRules(t)

	ledger := service.NewLedgerService(store)
	referrals := service.NewReferralService(store, ledger, rules.ReferralBonus)
	deposits := service.NewDepositService(store, ledger, rules.MinDeposit).WithClock(func() time.Time { return now })
	svc := api.Services{
		Accounts:       service.NewAccountService(store, referrals),
		Deposits:       deposits,
		Withdrawals:    service.NewWithdrawalService(store, ledger, rules.MinWithdrawal, rules.WithdrawalFeeRate, rules.WithdrawalWindow).WithClock(func() time.Time { return now }),
		Purchases:      service.NewPurchaseService(store, ledger, rules.PurchaseLimits),
		Ledger:         ledger,
		Audit:          service.NewAuditService(store),
		Reconciliation: service.NewReconciliationService(store),
		Webhooks:       service.NewWebhookService(deposits, testWebhookKey, false),
	}
	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		WebhookHMACKey:     testWebhookKey,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		IdempotencyTTL:     time.Hour,
		Ledger:             rules,
	}
	idemStore := idempotency.NewStore(nil, store.Queries(), cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, zap.NewNop(), store, idemStore, nil, svc)

	return &testAPI{
		handler: router.Routes(),
		auth:    middleware.NewAuthenticator(testJWTSecret, testJWTIssuer, testJWTAudience),
		store:   store,
	}
}

func testRules(t *testing.T) config.LedgerConfig {
	t.Helper()
	fees, err := domain.NewFeeSchedule(domain.DefaultWithdrawalFeeRate)
	require.NoError(t, err)
	window, err := domain.NewWindow(domain.DefaultWithdrawalDays, domain.DefaultWithdrawalStart, domain.DefaultWithdrawalEnd, domain.DefaultWithdrawalTZ)
	require.NoError(t, err)
	limits, err := domain.ParsePurchaseLimits(domain.DefaultPurchaseLimits)
	require.NoError(t, err)
	return config.LedgerConfig{
		MinDeposit:        domain.DefaultMinDeposit,
		MinWithdrawal:     domain.DefaultMinWithdrawal,
		WithdrawalFeeRate: fees,
		WithdrawalWindow:  window,
		ReferralBonus:     domain.DefaultReferralBonus,
		PurchaseLimits:    limits,
	}
}

// mondayMorning is inside the default Nairobi withdrawal window.
func mondayMorning(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(domain.DefaultWithdrawalTZ)
	require.NoError(t, err)
	return time.Date(2026, time.October, 12, 10, 0, 0, 0, loc)
}

func (a *testAPI) token(t *testing.T, accountID uuid.UUID, role string) string {
	t.Helper()
	now := time.Now()
	tok, err := a.auth.Sign(middleware.Claims{
		UserID: accountID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return tok
}

// send issues a request. Mutating calls get a fresh Idempotency-Key unless
// one is passed.
func (a *testAPI) send(t *testing.T, method, path, token string, body any, idemKey ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost {
		key := uuid.NewString()
		if len(idemKey) > 0 {
			key = idemKey[0]
		}
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

type user struct {
	id      uuid.UUID
	token   string
	account models.Account
}

func (a *testAPI) openAccount(t *testing.T, name, referralCode string) user {
	t.Helper()
	id := uuid.New()
	tok := a.token(t, id, "")
	w := a.send(t, http.MethodPost, "/v1/accounts", tok, map[string]string{
		"name":          name,
		"phone":         fmt.Sprintf("07%08d", phoneSeq.Add(1)),
		"referral_code": referralCode,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var acc models.Account
	decode(t, w, &acc)
	return user{id: id, token: tok, account: acc}
}

func (a *testAPI) admin(t *testing.T) string {
	t.Helper()
	return a.token(t, uuid.New(), domain.RoleAdmin)
}

// fund credits u through a verified deposit claim.
func (a *testAPI) fund(t *testing.T, u user, amount int64) {
	t.Helper()
	w := a.send(t, http.MethodPost, "/v1/deposits", u.token, map[string]any{
		"amount": amount, "method": domain.MethodMpesa, "external_reference": "FUND" + uuid.NewString()[:8],
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var claim models.DepositClaim
	decode(t, w, &claim)
	w = a.send(t, http.MethodPost, "/v1/admin/deposits/"+claim.ID.String()+"/verify", a.admin(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (a *testAPI) balance(t *testing.T, u user) int64 {
	t.Helper()
	w := a.send(t, http.MethodGet, "/v1/accounts/me", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var acc models.Account
	decode(t, w, &acc)
	return acc.Balance
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func problemType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	var body map[string]any
	decode(t, w, &body)
	typ, _ := body["type"].(string)
	return typ
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	var body map[string]any
	decode(t, w, &body)
	assert.True(t, strings.HasPrefix(body["type"].(string), "https://errors.solar-ledger.dev/"))
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/accounts/me", body["instance"])
	assert.Equal(t, w.Header().Get("X-Trace-ID"), body["request_id"])
}

func TestAuthRejectsBadTokens(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	other := middleware.NewAuthenticator("another-secret-0123456789-another", testJWTIssuer, testJWTAudience)
	forged, err := other.Sign(middleware.Claims{UserID: uuid.NewString()})
	require.NoError(t, err)
	notUUID, err := a.auth.Sign(middleware.Claims{UserID: "user-42"})
	require.NoError(t, err)

	for name, tok := range map[string]string{"forged": forged, "non-uuid user": notUUID} {
		t.Run(name, func(t *testing.T) {
			w := a.send(t, http.MethodGet, "/v1/accounts/me", tok, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestOpenAccountAndReferral(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	referrer := a.openAccount(t, "Amina Njeri", "")
	assert.Equal(t, referrer.id, referrer.account.ID)
	assert.True(t, strings.HasPrefix(referrer.account.ReferralCode, "AI"))
	assert.Zero(t, referrer.account.Balance)

	referred := a.openAccount(t, "Brian Kiptoo", strings.ToLower(referrer.account.ReferralCode))
	require.NotNil(t, referred.account.ReferredBy)
	assert.Equal(t, referrer.id, *referred.account.ReferredBy)
	assert.Zero(t, referred.account.Balance)

	w := a.send(t, http.MethodGet, "/v1/accounts/me", referrer.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var acc models.Account
	decode(t, w, &acc)
	assert.Equal(t, domain.DefaultReferralBonus, acc.Balance)
	assert.Equal(t, int64(1), acc.ReferralCount)

	w = a.send(t, http.MethodGet, "/v1/accounts/me/statement", referrer.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.LedgerEntry
	decode(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.KindReferralBonus, entries[0].Kind)
	assert.Equal(t, referred.id, entries[0].RelatedRecordID)
}

func TestOpenAccountErrors(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	existing := a.openAccount(t, "Carol Wanjiku", "")

	w := a.send(t, http.MethodPost, "/v1/accounts", existing.token, map[string]string{"name": "Carol Wanjiku", "phone": "0799000001"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, problemType(t, w), "account/already-exists")

	fresh := a.token(t, uuid.New(), "")
	w = a.send(t, http.MethodPost, "/v1/accounts", fresh, map[string]string{"name": "David Mwangi", "phone": "0799000002", "referral_code": "AI222222"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.send(t, http.MethodPost, "/v1/accounts", fresh, map[string]string{"name": "David Mwangi", "phone": "0799000002", "referral_code": "BAD"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, problemType(t, w), "account/invalid-referral-code")

	w = a.send(t, http.MethodPost, "/v1/accounts", fresh, map[string]string{"name": "David Mwangi", "phone": "12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.send(t, http.MethodPost, "/v1/accounts", fresh, map[string]any{"name": "David Mwangi", "phone": "0799000002", "balance": 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are refused")

	w = a.send(t, http.MethodGet, "/v1/accounts/me", fresh, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "failed signups leave no account")
}

func TestDepositWorkflowOverHTTP(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	u := a.openAccount(t, "Esther Achieng", "")
	admin := a.admin(t)

	w := a.send(t, http.MethodPost, "/v1/deposits", u.token, map[string]any{"amount": 150, "method": "mpesa", "external_reference": "QX1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, problemType(t, w), "ledger/below-minimum")

	w = a.send(t, http.MethodPost, "/v1/deposits", u.token, map[string]any{"amount": 500, "method": "paypal", "external_reference": "QX1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.send(t, http.MethodPost, "/v1/deposits", u.token, map[string]any{"amount": 500, "method": "MPESA", "external_reference": "QX1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var claim models.DepositClaim
	decode(t, w, &claim)
	assert.Equal(t, domain.DepositStatusPending, claim.Status)
	assert.Equal(t, domain.MethodMpesa, claim.Method)
	assert.Zero(t, a.balance(t, u), "pending claims do not move the balance")

	w = a.send(t, http.MethodGet, "/v1/admin/deposits", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue []models.DepositClaim
	decode(t, w, &queue)
	require.Len(t, queue, 1)
	assert.Equal(t, claim.ID, queue[0].ID)

	w = a.send(t, http.MethodPost, "/v1/admin/deposits/"+claim.ID.String()+"/verify", admin, map[string]string{"operator_note": "matched statement"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &claim)
	assert.Equal(t, domain.DepositStatusVerified, claim.Status)
	assert.Equal(t, "matched statement", claim.OperatorNote)
	assert.Equal(t, int64(500), a.balance(t, u))

	w = a.send(t, http.MethodPost, "/v1/admin/deposits/"+claim.ID.String()+"/reject", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int64(500), a.balance(t, u))

	w = a.send(t, http.MethodGet, "/v1/deposits/"+claim.ID.String(), u.token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	stranger := a.openAccount(t, "Felix Ouma", "")
	w = a.send(t, http.MethodGet, "/v1/deposits/"+claim.ID.String(), stranger.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.send(t, http.MethodGet, "/v1/deposits", stranger.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = a.send(t, http.MethodGet, "/v1/admin/audit/"+claim.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trail []models.AuditRecord
	decode(t, w, &trail)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.DepositStatusVerified, trail[1].NextState)
}

func TestWithdrawalWorkflowOverHTTP(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	u := a.openAccount(t, "Grace Akinyi", "")
	admin := a.admin(t)
	a.fund(t, u, 1000)

	w := a.send(t, http.MethodPost, "/v1/withdrawals", u.token, map[string]int64{"amount": 500})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, problemType(t, w), "ledger/below-minimum")

	w = a.send(t, http.MethodPost, "/v1/withdrawals", u.token, map[string]int64{"amount": 800})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var req models.WithdrawalRequest
	decode(t, w, &req)
	assert.Equal(t, int64(800), req.RequestedAmount)
	assert.Equal(t, int64(80), req.FeeAmount)
	assert.Equal(t, int64(720), req.NetAmount)
	assert.Equal(t, int64(200), a.balance(t, u))

	w = a.send(t, http.MethodPost, "/v1/withdrawals", u.token, map[string]int64{"amount": 800})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, problemType(t, w), "ledger/insufficient-funds")

	w = a.send(t, http.MethodPost, "/v1/admin/withdrawals/"+req.ID.String()+"/reject", admin, map[string]string{"operator_note": "wrong number"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1000), a.balance(t, u))

	w = a.send(t, http.MethodPost, "/v1/admin/withdrawals/"+req.ID.String()+"/process", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.send(t, http.MethodGet, "/v1/withdrawals/"+req.ID.String(), u.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &req)
	assert.Equal(t, domain.WithdrawalStatusRejected, req.Status)

	w = a.send(t, http.MethodGet, "/v1/admin/ledger?account_id="+u.id.String(), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.LedgerEntry
	decode(t, w, &entries)
	assert.Len(t, entries, 3)

	w = a.send(t, http.MethodPost, "/v1/admin/reconciliation", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balanced":true}`, w.Body.String())
}

func TestWithdrawalWindowOverHTTP(t *testing.T) {
	loc, err := time.LoadLocation(domain.DefaultWithdrawalTZ)
	require.NoError(t, err)
	saturday := time.Date(2026, time.October, 17, 10, 0, 0, 0, loc)
	a := setupAPI(t, saturday)
	u := a.openAccount(t, "Hassan Abdi", "")
	a.fund(t, u, 1000)

	w := a.send(t, http.MethodGet, "/v1/withdrawals/window", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status service.WindowStatus
	decode(t, w, &status)
	assert.False(t, status.Open)
	assert.Contains(t, status.Schedule, "Africa/Nairobi")

	w = a.send(t, http.MethodPost, "/v1/withdrawals", u.token, map[string]int64{"amount": 800})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, problemType(t, w), "withdrawal/outside-window")
	assert.Equal(t, int64(1000), a.balance(t, u))

	w = a.send(t, http.MethodGet, "/v1/ledger/terms", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var terms service.Terms
	decode(t, w, &terms)
	assert.Equal(t, domain.DefaultMinDeposit, terms.MinDeposit)
	assert.Equal(t, domain.DefaultMinWithdrawal, terms.MinWithdrawal)
	assert.Equal(t, "0.1", terms.FeeRate)
	assert.Nil(t, terms.Quote)

	w = a.send(t, http.MethodGet, "/v1/ledger/terms?amount=805", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	terms = service.Terms{}
	decode(t, w, &terms)
	require.NotNil(t, terms.Quote)
	assert.Equal(t, int64(805), terms.Quote.Amount)
	assert.Equal(t, int64(81), terms.Quote.Fee)
	assert.Equal(t, int64(724), terms.Quote.Net)
	assert.True(t, terms.Quote.AboveMinimum)

	for _, raw := range []string{"abc", "0", "-100"} {
		w = a.send(t, http.MethodGet, "/v1/ledger/terms?amount="+raw, u.token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
}

func TestPurchaseLimitOverHTTP(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	u := a.openAccount(t, "Irene Nduta", "")
	a.fund(t, u, 1000)

	w := a.send(t, http.MethodPost, "/v1/purchases", u.token, map[string]int64{"product_id": 1, "amount": 300})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.send(t, http.MethodPost, "/v1/purchases", u.token, map[string]int64{"product_id": 1, "amount": 300})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, problemType(t, w), "purchase/limit-reached")

	w = a.send(t, http.MethodPost, "/v1/purchases", u.token, map[string]int64{"product_id": 5, "amount": 900})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, problemType(t, w), "ledger/insufficient-funds")

	w = a.send(t, http.MethodGet, "/v1/purchases", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []models.PurchaseRecord
	decode(t, w, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(700), a.balance(t, u))

	w = a.send(t, http.MethodGet, "/v1/purchases/limits/1", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var allowance service.Allowance
	decode(t, w, &allowance)
	assert.Equal(t, service.Allowance{ProductID: 1, Limit: 1, Count: 1, Remaining: 0}, allowance)

	w = a.send(t, http.MethodGet, "/v1/purchases/limits/5", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	allowance = service.Allowance{}
	decode(t, w, &allowance)
	assert.Equal(t, domain.Unlimited, allowance.Limit)
	assert.Equal(t, domain.Unlimited, allowance.Remaining)

	w = a.send(t, http.MethodGet, "/v1/purchases/limits/x", u.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.send(t, http.MethodGet, "/v1/purchases?page=30000000&page_size=100", u.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	u := a.openAccount(t, "James Mutua", "")

	for _, path := range []string{"/v1/admin/deposits", "/v1/admin/withdrawals", "/v1/admin/ledger", "/v1/admin/accounts/" + u.id.String()} {
		w := a.send(t, http.MethodGet, path, u.token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	w := a.send(t, http.MethodGet, "/v1/admin/accounts/"+u.id.String(), a.admin(t), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.send(t, http.MethodGet, "/v1/admin/accounts/not-a-uuid", a.admin(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.send(t, http.MethodGet, "/v1/admin/deposits?status=archived", a.admin(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookKey))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookDepositConfirmation(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	u := a.openAccount(t, "Kevin Barasa", "")

	w := a.send(t, http.MethodPost, "/v1/deposits", u.token, map[string]any{"amount": 400, "method": "airtel", "external_reference": "AT77"})
	require.Equal(t, http.StatusCreated, w.Code)
	var claim models.DepositClaim
	decode(t, w, &claim)

	body := []byte(`{"reference":"AT77","confirmed":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/deposits/confirm", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/deposits/confirm", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signWebhook(body))
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"reference":"AT77","confirmed":true,"claims_flagged":1}`, rec.Body.String())

	w = a.send(t, http.MethodGet, "/v1/deposits/"+claim.ID.String(), u.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &claim)
	assert.True(t, claim.ExternalConfirmed)
	assert.Equal(t, domain.DepositStatusPending, claim.Status, "confirmation never resolves a claim")
	assert.Zero(t, a.balance(t, u))
}

func TestIdempotentReplay(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))
	u := a.openAccount(t, "Lucy Chebet", "")
	body := map[string]any{"amount": 300, "method": "mpesa", "external_reference": "IDEM1"}

	first := a.send(t, http.MethodPost, "/v1/deposits", u.token, body, "deposit-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := a.send(t, http.MethodPost, "/v1/deposits", u.token, body, "deposit-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "store", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	body["amount"] = 301
	conflict := a.send(t, http.MethodPost, "/v1/deposits", u.token, body, "deposit-1")
	assert.Equal(t, http.StatusConflict, conflict.Code)

	other := a.openAccount(t, "Moses Kariuki", "")
	w := a.send(t, http.MethodPost, "/v1/deposits", other.token, body, "deposit-1")
	assert.Equal(t, http.StatusCreated, w.Code, "keys are scoped per account")
	assert.Empty(t, w.Header().Get("X-Idempotent-Replay"))

	w = a.send(t, http.MethodGet, "/v1/deposits", u.token, nil)
	var claims []models.DepositClaim
	decode(t, w, &claims)
	assert.Len(t, claims, 1)

	req := httptest.NewRequest(http.MethodPost, "/v1/deposits", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+u.token)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, problemType(t, rec), "idempotency/missing-key")
}

func TestHealthMetricsAndDocs(t *testing.T) {
	a := setupAPI(t, mondayMorning(t))

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/openapi.yaml"} {
		rec := httptest.NewRecorder()
		a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Contains(t, rec.Body.String(), "/v1/withdrawals/window")
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
}
