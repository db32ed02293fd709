package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/repository/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var phoneSeq atomic.Int64

// testEnv wires every service to one in-memory store. The clock starts on a
// Monday at 10:00 in Nairobi, inside the default withdrawal window.
type testEnv struct {
	store       *memstore.Store
	clock       *testClock
	ledger      *LedgerService
	referrals   *ReferralService
	accounts    *AccountService
	deposits    *DepositService
	withdrawals *WithdrawalService
	purchases   *PurchaseService
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func nairobi(t *testing.T, year int, month time.Month, day, hour int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(domain.DefaultWithdrawalTZ)
	require.NoError(t, err)
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: nairobi(t, 2026, time.October, 12, 10)}
	store := memstore.New().WithClock(clock.Now)

	fees, err := domain.NewFeeSchedule(domain.DefaultWithdrawalFeeRate)
	require.NoError(t, err)
	window, err := domain.NewWindow(domain.DefaultWithdrawalDays, domain.DefaultWithdrawalStart, domain.DefaultWithdrawalEnd, domain.DefaultWithdrawalTZ)
	require.NoError(t, err)
	limits, err := domain.ParsePurchaseLimits(domain.DefaultPurchaseLimits)
	require.NoError(t, err)

	ledger := NewLedgerService(store)
	referrals := NewReferralService(store, ledger, domain.DefaultReferralBonus)
	return &testEnv{
		store:       store,
		clock:       clock,
		ledger:      ledger,
		referrals:   referrals,
		accounts:    NewAccountService(store, referrals),
		deposits:    NewDepositService(store, ledger, domain.DefaultMinDeposit).WithClock(clock.Now),
		withdrawals: NewWithdrawalService(store, ledger, domain.DefaultMinWithdrawal, fees, window).WithClock(clock.Now),
		purchases:   NewPurchaseService(store, ledger, limits),
	}
}

// openAccount creates an account with a unique phone number.
func (e *testEnv) openAccount(t *testing.T, name string) *models.Account {
	t.Helper()
	acc, err := e.accounts.Open(context.Background(), OpenAccountRequest{
		AccountID: uuid.New(),
		Name:      name,
		Phone:     fmt.Sprintf("07%08d", phoneSeq.Add(1)),
	})
	require.NoError(t, err)
	return acc
}

// fund credits amount through the ledger as a deposit.
func (e *testEnv) fund(t *testing.T, accountID uuid.UUID, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), Mutation{
		AccountID:       accountID,
		Amount:          amount,
		Kind:            domain.KindDeposit,
		RelatedRecordID: uuid.New(),
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, accountID uuid.UUID) int64 {
	t.Helper()
	acc, err := e.accounts.Get(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}

func (e *testEnv) entries(t *testing.T, accountID uuid.UUID) []models.LedgerEntry {
	t.Helper()
	entries, err := e.accounts.Statement(context.Background(), accountID, 1, maxPageSize)
	require.NoError(t, err)
	return entries
}

func (e *testEnv) requireReconciled(t *testing.T) {
	t.Helper()
	report, err := NewReconciliationService(e.store).Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Balanced, "drift: %+v", report.Drift)
}

// recordingPublisher captures published events. Accounts listed in failFor
// make Publish fail.
type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
	failFor   map[uuid.UUID]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{failFor: make(map[uuid.UUID]bool)}
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[ev.AccountID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) setFailing(accountID uuid.UUID, failing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFor[accountID] = failing
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.published))
	for _, ev := range p.published {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) typesFor(accountID uuid.UUID) []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Type
	for _, ev := range p.published {
		if ev.AccountID == accountID {
			out = append(out, ev.Type)
		}
	}
	return out
}
