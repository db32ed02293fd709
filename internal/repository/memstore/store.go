// Package memstore is an in-memory implementation of repository.Querier. It is
// safe for concurrent use and backs the service tests and local runs without
// Postgres.
//
// Row locks mirror SELECT ... FOR UPDATE: inside RunInTx a lock is held until
// the transaction ends, and writes made by a failed transaction are undone.
// Point reads wait for rows locked by other transactions; list queries do not.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	mu    sync.RWMutex
	locks *lockTable
	now   func() time.Time

	accounts        map[uuid.UUID]models.Account
	accountByPhone  map[string]uuid.UUID
	accountByCode   map[string]uuid.UUID
	deposits        map[uuid.UUID]models.DepositClaim
	depositOrder    []uuid.UUID
	withdrawals     map[uuid.UUID]models.WithdrawalRequest
	withdrawalOrder []uuid.UUID
	purchases       []models.PurchaseRecord
	ledger          []models.LedgerEntry
	audit           []models.AuditRecord
	outbox          []models.OutboxEvent
	idempotency     map[string]repository.IdempotencyKey
	nextAuditID     int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		locks:          newLockTable(),
		now:            func() time.Time { return time.Now().UTC() },
		accounts:       make(map[uuid.UUID]models.Account),
		accountByPhone: make(map[string]uuid.UUID),
		accountByCode:  make(map[string]uuid.UUID),
		deposits:       make(map[uuid.UUID]models.DepositClaim),
		withdrawals:    make(map[uuid.UUID]models.WithdrawalRequest),
		idempotency:    make(map[string]repository.IdempotencyKey),
		nextAuditID:    1,
	}
}

// WithClock overrides the timestamp source used for created_at columns.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Queries returns an autocommit query set: each call is its own transaction.
func (s *Store) Queries() repository.Querier {
	return &querier{s: s}
}

// RunInTx runs fn with a transaction-scoped query set. Locks are released and,
// when fn fails, its writes are undone before RunInTx returns.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	tx := &txn{held: make(map[string]struct{})}
	defer s.release(tx)

	if err := fn(&querier{s: s, tx: tx}); err != nil {
		s.rollback(tx)
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) rollback(tx *txn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (s *Store) release(tx *txn) {
	for key := range tx.held {
		s.locks.release(key)
	}
	tx.held = nil
}

type txn struct {
	held map[string]struct{}
	undo []func()
}

// lockTable hands out one binary semaphore per row key. An entry lives only
// while a transaction holds or waits for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*rowLock
}

type rowLock struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*rowLock)}
}

func (t *lockTable) ref(key string) *rowLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	return l
}

func (t *lockTable) unref(key string, l *rowLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

func (t *lockTable) acquire(ctx context.Context, key string) error {
	l := t.ref(key)
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		t.unref(key, l)
		return ctx.Err()
	}
}

func (t *lockTable) tryAcquire(key string) bool {
	l := t.ref(key)
	select {
	case l.ch <- struct{}{}:
		return true
	default:
		t.unref(key, l)
		return false
	}
}

func (t *lockTable) release(key string) {
	t.mu.Lock()
	l := t.locks[key]
	t.mu.Unlock()
	if l == nil {
		return
	}
	<-l.ch
	t.unref(key, l)
}

// size reports how many row keys currently have an entry.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

func accountKey(id uuid.UUID) string    { return "account:" + id.String() }
func depositKey(id uuid.UUID) string    { return "deposit:" + id.String() }
func withdrawalKey(id uuid.UUID) string { return "withdrawal:" + id.String() }
func outboxKey(id uuid.UUID) string     { return "outbox:" + id.String() }
