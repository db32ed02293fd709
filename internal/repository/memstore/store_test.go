package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAccount(t *testing.T, s *Store, phone string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := s.Queries().CreateAccount(context.Background(), repository.CreateAccountParams{
		ID:           id,
		Name:         "Test " + phone,
		Phone:        phone,
		ReferralCode: "AI" + phone,
	})
	require.NoError(t, err)
	return id
}

func TestRunInTx_RollbackUndoesWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := createAccount(t, s, "0700000001")

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(q repository.Querier) error {
		rows, err := q.UpdateAccountBalance(ctx, repository.UpdateAccountBalanceParams{ID: id, Balance: 500})
		require.NoError(t, err)
		require.Equal(t, int64(1), rows)
		_, err = q.InsertLedgerEntry(ctx, repository.InsertLedgerEntryParams{
			ID: uuid.New(), AccountID: id, Kind: "deposit", Amount: 500, BalanceAfter: 500, RelatedRecordID: uuid.New(),
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	acc, err := s.Queries().GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Balance)

	entries, err := s.Queries().ListLedgerEntriesByAccount(ctx, repository.ListByAccountParams{AccountID: id, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateAccount_UniqueViolations(t *testing.T) {
	s := New()
	ctx := context.Background()
	createAccount(t, s, "0700000001")

	_, err := s.Queries().CreateAccount(ctx, repository.CreateAccountParams{
		ID: uuid.New(), Name: "Other", Phone: "0700000001", ReferralCode: "AIOTHER1",
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)
	assert.Equal(t, "accounts_phone_key", pgErr.ConstraintName)

	_, err = s.Queries().GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestUpdateAccountBalance_RejectsNegative(t *testing.T) {
	s := New()
	id := createAccount(t, s, "0700000001")
	_, err := s.Queries().UpdateAccountBalance(context.Background(), repository.UpdateAccountBalanceParams{ID: id, Balance: -1})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23514", pgErr.Code)
}

func TestForUpdate_SerializesTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := createAccount(t, s, "0700000001")

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(q repository.Querier) error {
				acc, err := q.GetAccountForUpdate(ctx, id)
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				_, err = q.UpdateAccountBalance(ctx, repository.UpdateAccountBalanceParams{ID: id, Balance: acc.Balance + 1})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	acc, err := s.Queries().GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), acc.Balance)
	assert.Zero(t, s.locks.size())
}

func TestLockTable_DropsReleasedEntries(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		id := createAccount(t, s, fmt.Sprintf("07%08d", i))
		err := s.RunInTx(ctx, func(q repository.Querier) error {
			_, err := q.GetAccountForUpdate(ctx, id)
			return err
		})
		require.NoError(t, err)
	}
	assert.Zero(t, s.locks.size())

	held := make(chan struct{})
	done := make(chan struct{})
	finished := make(chan error, 1)
	id := createAccount(t, s, "0799999999")
	go func() {
		finished <- s.RunInTx(ctx, func(q repository.Querier) error {
			_, err := q.GetAccountForUpdate(ctx, id)
			close(held)
			<-done
			return err
		})
	}()
	<-held

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := s.Queries().GetAccountForUpdate(waitCtx, id)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, s.locks.size())

	close(done)
	require.NoError(t, <-finished)
	assert.Zero(t, s.locks.size())
}

func TestForUpdate_HonoursContext(t *testing.T) {
	s := New()
	id := createAccount(t, s, "0700000001")

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunInTx(context.Background(), func(q repository.Querier) error {
			_, err := q.GetAccountForUpdate(context.Background(), id)
			close(locked)
			<-done
			return err
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Queries().GetAccountForUpdate(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(done)
}

func TestClaimOutboxEvents_SkipsUncommittedAndLocked(t *testing.T) {
	s := New()
	ctx := context.Background()
	accountID := createAccount(t, s, "0700000001")

	committed := uuid.New()
	require.NoError(t, s.Queries().InsertOutboxEvent(ctx, repository.InsertOutboxEventParams{
		ID: committed, EventType: "deposit.submitted", AggregateID: uuid.New(), AccountID: accountID, Payload: []byte(`{}`),
	}))

	inserted := make(chan struct{})
	finish := make(chan struct{})
	go func() {
		_ = s.RunInTx(ctx, func(q repository.Querier) error {
			err := q.InsertOutboxEvent(ctx, repository.InsertOutboxEventParams{
				ID: uuid.New(), EventType: "deposit.submitted", AggregateID: uuid.New(), AccountID: accountID, Payload: []byte(`{}`),
			})
			close(inserted)
			<-finish
			return err
		})
	}()
	<-inserted

	claimed, err := s.Queries().ClaimOutboxEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, committed, claimed[0].ID)
	close(finish)

	rows, err := s.Queries().MarkOutboxEventPublished(ctx, committed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = s.Queries().MarkOutboxEventPublished(ctx, committed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestIdempotencyKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	q := s.Queries()

	_, err := q.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{IdempotencyKey: "k", RequestHash: "h", Method: "POST", Path: "/v1/deposits"})
	require.NoError(t, err)

	_, err = q.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{IdempotencyKey: "k", RequestHash: "h", Method: "POST", Path: "/v1/deposits"})
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	row, err := q.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: 201, ResponseBody: []byte(`{"ok":true}`), ContentType: "application/json", IdempotencyKey: "k", RequestHash: "h",
	})
	require.NoError(t, err)
	assert.False(t, row.InProgress)
	assert.Equal(t, int32(201), row.ResponseStatus)
}
