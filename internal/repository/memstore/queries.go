package memstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier struct {
	s  *Store
	tx *txn
}

var _ repository.Querier = (*querier)(nil)

// hold takes a row lock. Inside a transaction the lock is kept until the
// transaction ends and the returned func is a no-op.
func (q *querier) hold(ctx context.Context, key string) (func(), error) {
	if q.tx != nil {
		if _, ok := q.tx.held[key]; ok {
			return func() {}, nil
		}
		if err := q.s.locks.acquire(ctx, key); err != nil {
			return nil, err
		}
		q.tx.held[key] = struct{}{}
		return func() {}, nil
	}
	if err := q.s.locks.acquire(ctx, key); err != nil {
		return nil, err
	}
	return func() { q.s.locks.release(key) }, nil
}

// wait blocks until no other transaction holds key.
func (q *querier) wait(ctx context.Context, key string) error {
	if q.tx != nil {
		if _, ok := q.tx.held[key]; ok {
			return nil
		}
	}
	if err := q.s.locks.acquire(ctx, key); err != nil {
		return err
	}
	q.s.locks.release(key)
	return nil
}

// record registers an undo step. Callers hold s.mu.
func (q *querier) record(undo func()) {
	if q.tx != nil {
		q.tx.undo = append(q.tx.undo, undo)
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func checkViolation(constraint string) error {
	return &pgconn.PgError{Code: "23514", ConstraintName: constraint, Message: "new row violates check constraint"}
}

func page[T any](items []T, limit, offset int32) []T {
	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

// Accounts

func (q *querier) CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (models.Account, error) {
	release, err := q.hold(ctx, accountKey(arg.ID))
	if err != nil {
		return models.Account{}, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[arg.ID]; ok {
		return models.Account{}, uniqueViolation("accounts_pkey")
	}
	if _, ok := s.accountByPhone[arg.Phone]; ok {
		return models.Account{}, uniqueViolation("accounts_phone_key")
	}
	if _, ok := s.accountByCode[arg.ReferralCode]; ok {
		return models.Account{}, uniqueViolation("accounts_referral_code_key")
	}
	if arg.ReferredBy != nil {
		if _, ok := s.accounts[*arg.ReferredBy]; !ok {
			return models.Account{}, &pgconn.PgError{Code: "23503", ConstraintName: "accounts_referred_by_fkey", Message: "referrer does not exist"}
		}
	}

	now := s.now()
	acc := models.Account{
		ID:           arg.ID,
		Name:         arg.Name,
		Phone:        arg.Phone,
		ReferralCode: arg.ReferralCode,
		ReferredBy:   arg.ReferredBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.accounts[acc.ID] = acc
	s.accountByPhone[acc.Phone] = acc.ID
	s.accountByCode[acc.ReferralCode] = acc.ID
	q.record(func() {
		delete(s.accounts, acc.ID)
		delete(s.accountByPhone, acc.Phone)
		delete(s.accountByCode, acc.ReferralCode)
	})
	return acc, nil
}

func (q *querier) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	if err := q.wait(ctx, accountKey(id)); err != nil {
		return models.Account{}, err
	}
	return q.s.account(id)
}

func (q *querier) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (models.Account, error) {
	release, err := q.hold(ctx, accountKey(id))
	if err != nil {
		return models.Account{}, err
	}
	defer release()
	return q.s.account(id)
}

func (s *Store) account(id uuid.UUID) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return models.Account{}, pgx.ErrNoRows
	}
	return acc, nil
}

func (q *querier) GetAccountByReferralCode(ctx context.Context, code string) (models.Account, error) {
	q.s.mu.RLock()
	id, ok := q.s.accountByCode[code]
	q.s.mu.RUnlock()
	if !ok {
		return models.Account{}, pgx.ErrNoRows
	}
	return q.GetAccount(ctx, id)
}

func (q *querier) UpdateAccountBalance(ctx context.Context, arg repository.UpdateAccountBalanceParams) (int64, error) {
	release, err := q.hold(ctx, accountKey(arg.ID))
	if err != nil {
		return 0, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[arg.ID]
	if !ok {
		return 0, nil
	}
	if arg.Balance < 0 {
		return 0, checkViolation("accounts_balance_check")
	}
	prev := acc
	acc.Balance = arg.Balance
	acc.UpdatedAt = s.now()
	s.accounts[acc.ID] = acc
	q.record(func() { s.accounts[prev.ID] = prev })
	return 1, nil
}

func (q *querier) IncrementReferralStats(ctx context.Context, arg repository.IncrementReferralStatsParams) (int64, error) {
	release, err := q.hold(ctx, accountKey(arg.ID))
	if err != nil {
		return 0, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[arg.ID]
	if !ok {
		return 0, nil
	}
	prev := acc
	acc.ReferralCount++
	acc.ReferralEarnings += arg.Amount
	acc.UpdatedAt = s.now()
	s.accounts[acc.ID] = acc
	q.record(func() { s.accounts[prev.ID] = prev })
	return 1, nil
}

func (q *querier) ListBalanceDrift(_ context.Context) ([]models.BalanceDrift, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[uuid.UUID]int64, len(s.accounts))
	for _, e := range s.ledger {
		sums[e.AccountID] += e.Amount
	}
	var drift []models.BalanceDrift
	for id, acc := range s.accounts {
		if acc.Balance != sums[id] {
			drift = append(drift, models.BalanceDrift{AccountID: id, Balance: acc.Balance, LedgerSum: sums[id]})
		}
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].AccountID.String() < drift[j].AccountID.String() })
	return drift, nil
}

// Ledger

func (q *querier) InsertLedgerEntry(_ context.Context, arg repository.InsertLedgerEntryParams) (models.LedgerEntry, error) {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if arg.Amount == 0 {
		return models.LedgerEntry{}, checkViolation("ledger_entries_amount_check")
	}
	if _, ok := s.accounts[arg.AccountID]; !ok {
		return models.LedgerEntry{}, &pgconn.PgError{Code: "23503", ConstraintName: "ledger_entries_account_id_fkey", Message: "account does not exist"}
	}
	e := models.LedgerEntry{
		ID:              arg.ID,
		AccountID:       arg.AccountID,
		Kind:            arg.Kind,
		Amount:          arg.Amount,
		BalanceAfter:    arg.BalanceAfter,
		RelatedRecordID: arg.RelatedRecordID,
		CreatedAt:       s.now(),
	}
	s.ledger = append(s.ledger, e)
	q.record(func() {
		for i := range s.ledger {
			if s.ledger[i].ID == e.ID {
				s.ledger = append(s.ledger[:i], s.ledger[i+1:]...)
				return
			}
		}
	})
	return e, nil
}

func (q *querier) ListLedgerEntriesByAccount(_ context.Context, arg repository.ListByAccountParams) ([]models.LedgerEntry, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].AccountID == arg.AccountID {
			items = append(items, s.ledger[i])
		}
	}
	return page(items, arg.Limit, arg.Offset), nil
}

func (q *querier) ListLedgerEntries(_ context.Context, arg repository.ListPageParams) ([]models.LedgerEntry, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.LedgerEntry, 0, len(s.ledger))
	for i := len(s.ledger) - 1; i >= 0; i-- {
		items = append(items, s.ledger[i])
	}
	return page(items, arg.Limit, arg.Offset), nil
}

// Deposit claims

func (q *querier) InsertDepositClaim(ctx context.Context, arg repository.InsertDepositClaimParams) (models.DepositClaim, error) {
	release, err := q.hold(ctx, depositKey(arg.ID))
	if err != nil {
		return models.DepositClaim{}, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deposits[arg.ID]; ok {
		return models.DepositClaim{}, uniqueViolation("deposit_claims_pkey")
	}
	if _, ok := s.accounts[arg.AccountID]; !ok {
		return models.DepositClaim{}, &pgconn.PgError{Code: "23503", ConstraintName: "deposit_claims_account_id_fkey", Message: "account does not exist"}
	}
	c := models.DepositClaim{
		ID:                arg.ID,
		AccountID:         arg.AccountID,
		Amount:            arg.Amount,
		Method:            arg.Method,
		ExternalReference: arg.ExternalReference,
		Status:            domain.DepositStatusPending,
		CreatedAt:         s.now(),
	}
	s.deposits[c.ID] = c
	s.depositOrder = append(s.depositOrder, c.ID)
	q.record(func() {
		delete(s.deposits, c.ID)
		s.depositOrder = removeID(s.depositOrder, c.ID)
	})
	return c, nil
}

func (q *querier) GetDepositClaim(ctx context.Context, id uuid.UUID) (models.DepositClaim, error) {
	if err := q.wait(ctx, depositKey(id)); err != nil {
		return models.DepositClaim{}, err
	}
	return q.s.deposit(id)
}

func (q *querier) GetDepositClaimForUpdate(ctx context.Context, id uuid.UUID) (models.DepositClaim, error) {
	release, err := q.hold(ctx, depositKey(id))
	if err != nil {
		return models.DepositClaim{}, err
	}
	defer release()
	return q.s.deposit(id)
}

func (s *Store) deposit(id uuid.UUID) (models.DepositClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.deposits[id]
	if !ok {
		return models.DepositClaim{}, pgx.ErrNoRows
	}
	return c, nil
}

func (q *querier) ResolveDepositClaim(ctx context.Context, arg repository.ResolveParams) (int64, error) {
	release, err := q.hold(ctx, depositKey(arg.ID))
	if err != nil {
		return 0, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.deposits[arg.ID]
	if !ok || c.Status != domain.DepositStatusPending {
		return 0, nil
	}
	prev := c
	resolvedAt := arg.ResolvedAt
	c.Status = arg.Status
	c.OperatorNote = arg.OperatorNote
	c.ResolvedBy = arg.ResolvedBy
	c.ResolvedAt = &resolvedAt
	s.deposits[c.ID] = c
	q.record(func() { s.deposits[prev.ID] = prev })
	return 1, nil
}

func (q *querier) MarkDepositClaimsConfirmed(ctx context.Context, externalReference string) (int64, error) {
	s := q.s
	s.mu.RLock()
	var ids []uuid.UUID
	for _, id := range s.depositOrder {
		if c := s.deposits[id]; c.ExternalReference == externalReference && !c.ExternalConfirmed {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	var n int64
	for _, id := range ids {
		release, err := q.hold(ctx, depositKey(id))
		if err != nil {
			return n, err
		}
		s.mu.Lock()
		c, ok := s.deposits[id]
		if ok && !c.ExternalConfirmed {
			prev := c
			c.ExternalConfirmed = true
			s.deposits[id] = c
			q.record(func() { s.deposits[prev.ID] = prev })
			n++
		}
		s.mu.Unlock()
		release()
	}
	return n, nil
}

func (q *querier) ListDepositClaimsByAccount(_ context.Context, arg repository.ListByAccountParams) ([]models.DepositClaim, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.DepositClaim
	for i := len(s.depositOrder) - 1; i >= 0; i-- {
		if c := s.deposits[s.depositOrder[i]]; c.AccountID == arg.AccountID {
			items = append(items, c)
		}
	}
	return page(items, arg.Limit, arg.Offset), nil
}

func (q *querier) ListDepositClaimsByStatus(_ context.Context, arg repository.ListByStatusParams) ([]models.DepositClaim, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.DepositClaim
	for _, id := range s.depositOrder {
		if c := s.deposits[id]; c.Status == arg.Status {
			items = append(items, c)
		}
	}
	return page(items, arg.Limit, arg.Offset), nil
}

// Withdrawal requests

func (q *querier) InsertWithdrawalRequest(ctx context.Context, arg repository.InsertWithdrawalRequestParams) (models.WithdrawalRequest, error) {
	release, err := q.hold(ctx, withdrawalKey(arg.ID))
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.withdrawals[arg.ID]; ok {
		return models.WithdrawalRequest{}, uniqueViolation("withdrawal_requests_pkey")
	}
	if arg.FeeAmount+arg.NetAmount != arg.RequestedAmount {
		return models.WithdrawalRequest{}, checkViolation("withdrawal_requests_check")
	}
	w := models.WithdrawalRequest{
		ID:              arg.ID,
		AccountID:       arg.AccountID,
		RequestedAmount: arg.RequestedAmount,
		FeeAmount:       arg.FeeAmount,
		NetAmount:       arg.NetAmount,
		Status:          domain.WithdrawalStatusPending,
		CreatedAt:       s.now(),
	}
	s.withdrawals[w.ID] = w
	s.withdrawalOrder = append(s.withdrawalOrder, w.ID)
	q.record(func() {
		delete(s.withdrawals, w.ID)
		s.withdrawalOrder = removeID(s.withdrawalOrder, w.ID)
	})
	return w, nil
}

func (q *querier) GetWithdrawalRequest(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error) {
	if err := q.wait(ctx, withdrawalKey(id)); err != nil {
		return models.WithdrawalRequest{}, err
	}
	return q.s.withdrawal(id)
}

func (q *querier) GetWithdrawalRequestForUpdate(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error) {
	release, err := q.hold(ctx, withdrawalKey(id))
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	defer release()
	return q.s.withdrawal(id)
}

func (s *Store) withdrawal(id uuid.UUID) (models.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return models.WithdrawalRequest{}, pgx.ErrNoRows
	}
	return w, nil
}

func (q *querier) ResolveWithdrawalRequest(ctx context.Context, arg repository.ResolveParams) (int64, error) {
	release, err := q.hold(ctx, withdrawalKey(arg.ID))
	if err != nil {
		return 0, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[arg.ID]
	if !ok || w.Status != domain.WithdrawalStatusPending {
		return 0, nil
	}
	prev := w
	resolvedAt := arg.ResolvedAt
	w.Status = arg.Status
	w.OperatorNote = arg.OperatorNote
	w.ResolvedBy = arg.ResolvedBy
	w.ResolvedAt = &resolvedAt
	s.withdrawals[w.ID] = w
	q.record(func() { s.withdrawals[prev.ID] = prev })
	return 1, nil
}

func (q *querier) ListWithdrawalRequestsByAccount(_ context.Context, arg repository.ListByAccountParams) ([]models.WithdrawalRequest, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.WithdrawalRequest
	for i := len(s.withdrawalOrder) - 1; i >= 0; i-- {
		if w := s.withdrawals[s.withdrawalOrder[i]]; w.AccountID == arg.AccountID {
			items = append(items, w)
		}
	}
	return page(items, arg.Limit, arg.Offset), nil
}

func (q *querier) ListWithdrawalRequestsByStatus(_ context.Context, arg repository.ListByStatusParams) ([]models.WithdrawalRequest, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.WithdrawalRequest
	for _, id := range s.withdrawalOrder {
		if w := s.withdrawals[id]; w.Status == arg.Status {
			items = append(items, w)
		}
	}
	return page(items, arg.Limit, arg.Offset), nil
}

// Purchases

func (q *querier) InsertPurchaseRecord(_ context.Context, arg repository.InsertPurchaseRecordParams) (models.PurchaseRecord, error) {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.PurchaseRecord{
		ID:        arg.ID,
		AccountID: arg.AccountID,
		ProductID: arg.ProductID,
		Amount:    arg.Amount,
		CreatedAt: s.now(),
	}
	s.purchases = append(s.purchases, p)
	q.record(func() {
		for i := range s.purchases {
			if s.purchases[i].ID == p.ID {
				s.purchases = append(s.purchases[:i], s.purchases[i+1:]...)
				return
			}
		}
	})
	return p, nil
}

func (q *querier) CountPurchases(_ context.Context, arg repository.CountPurchasesParams) (int64, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.purchases {
		if p.AccountID == arg.AccountID && p.ProductID == arg.ProductID {
			n++
		}
	}
	return n, nil
}

func (q *querier) ListPurchaseRecordsByAccount(_ context.Context, arg repository.ListByAccountParams) ([]models.PurchaseRecord, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.PurchaseRecord
	for i := len(s.purchases) - 1; i >= 0; i-- {
		if s.purchases[i].AccountID == arg.AccountID {
			items = append(items, s.purchases[i])
		}
	}
	return page(items, arg.Limit, arg.Offset), nil
}

// Audit log

func (q *querier) InsertAuditLog(_ context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := models.AuditRecord{
		ID:         s.nextAuditID,
		EntityType: arg.EntityType,
		EntityID:   arg.EntityID,
		ActorID:    arg.ActorID,
		Action:     arg.Action,
		Metadata:   json.RawMessage(arg.Metadata),
		CreatedAt:  s.now(),
	}
	if arg.PrevState != nil {
		rec.PrevState = *arg.PrevState
	}
	if arg.NextState != nil {
		rec.NextState = *arg.NextState
	}
	s.nextAuditID++
	s.audit = append(s.audit, rec)
	q.record(func() {
		for i := range s.audit {
			if s.audit[i].ID == rec.ID {
				s.audit = append(s.audit[:i], s.audit[i+1:]...)
				return
			}
		}
	})
	return rec.ID, nil
}

func (q *querier) ListAuditLogByEntity(_ context.Context, entityID uuid.UUID) ([]models.AuditRecord, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.AuditRecord
	for _, rec := range s.audit {
		if rec.EntityID == entityID {
			items = append(items, rec)
		}
	}
	return items, nil
}

// Outbox

func (q *querier) InsertOutboxEvent(ctx context.Context, arg repository.InsertOutboxEventParams) error {
	// Held until commit so relays cannot see the event early.
	release, err := q.hold(ctx, outboxKey(arg.ID))
	if err != nil {
		return err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e := models.OutboxEvent{
		ID:          arg.ID,
		EventType:   arg.EventType,
		AggregateID: arg.AggregateID,
		AccountID:   arg.AccountID,
		Payload:     json.RawMessage(arg.Payload),
		CreatedAt:   s.now(),
	}
	s.outbox = append(s.outbox, e)
	q.record(func() {
		for i := range s.outbox {
			if s.outbox[i].ID == e.ID {
				s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (q *querier) ClaimOutboxEvents(_ context.Context, limit int32) ([]models.OutboxEvent, error) {
	s := q.s
	s.mu.RLock()
	var pending []models.OutboxEvent
	for _, e := range s.outbox {
		if e.PublishedAt == nil {
			pending = append(pending, e)
		}
	}
	s.mu.RUnlock()

	var claimed []models.OutboxEvent
	for _, e := range pending {
		if limit > 0 && int32(len(claimed)) >= limit {
			break
		}
		key := outboxKey(e.ID)
		if q.tx != nil {
			if _, ok := q.tx.held[key]; ok {
				claimed = append(claimed, e)
				continue
			}
		}
		if !q.s.locks.tryAcquire(key) {
			continue
		}
		if q.tx != nil {
			q.tx.held[key] = struct{}{}
		} else {
			q.s.locks.release(key)
		}
		claimed = append(claimed, e)
	}
	return claimed, nil
}

func (q *querier) MarkOutboxEventPublished(ctx context.Context, id uuid.UUID) (int64, error) {
	return q.updateOutbox(ctx, id, func(e *models.OutboxEvent) {
		now := q.s.now()
		e.PublishedAt = &now
		e.Attempts++
		e.LastError = ""
	})
}

func (q *querier) MarkOutboxEventFailed(ctx context.Context, arg repository.MarkOutboxEventFailedParams) (int64, error) {
	return q.updateOutbox(ctx, arg.ID, func(e *models.OutboxEvent) {
		e.Attempts++
		e.LastError = arg.LastError
	})
}

func (q *querier) updateOutbox(ctx context.Context, id uuid.UUID, mutate func(*models.OutboxEvent)) (int64, error) {
	release, err := q.hold(ctx, outboxKey(id))
	if err != nil {
		return 0, err
	}
	defer release()

	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID != id || s.outbox[i].PublishedAt != nil {
			continue
		}
		prev := s.outbox[i]
		mutate(&s.outbox[i])
		q.record(func() {
			for j := range s.outbox {
				if s.outbox[j].ID == prev.ID {
					s.outbox[j] = prev
					return
				}
			}
		})
		return 1, nil
	}
	return 0, nil
}

// Idempotency keys

func (q *querier) GetIdempotencyKey(_ context.Context, key string) (repository.IdempotencyKey, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.idempotency[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return k, nil
}

func (q *querier) ReserveIdempotencyKey(_ context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.idempotency[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	k := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		InProgress:     true,
		CreatedAt:      s.now(),
	}
	s.idempotency[k.IdempotencyKey] = k
	q.record(func() { delete(s.idempotency, k.IdempotencyKey) })
	return k, nil
}

func (q *querier) FinalizeIdempotencyKey(_ context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.idempotency[arg.IdempotencyKey]
	if !ok || k.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	prev := k
	k.ResponseStatus = arg.ResponseStatus
	k.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	k.ContentType = arg.ContentType
	k.InProgress = false
	s.idempotency[k.IdempotencyKey] = k
	q.record(func() { s.idempotency[prev.IdempotencyKey] = prev })
	return k, nil
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
