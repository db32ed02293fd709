package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/service"
	"github.com/google/uuid"
)

// AdminHandler serves the operator queues and resolution actions.
type AdminHandler struct {
	accounts       *service.AccountService
	deposits       *service.DepositService
	withdrawals    *service.WithdrawalService
	ledger         *service.LedgerService
	audit          *service.AuditService
	reconciliation *service.ReconciliationService
}

type AdminServices struct {
	Accounts       *service.AccountService
	Deposits       *service.DepositService
	Withdrawals    *service.WithdrawalService
	Ledger         *service.LedgerService
	Audit          *service.AuditService
	Reconciliation *service.ReconciliationService
}

func NewAdminHandler(s AdminServices) *AdminHandler {
	return &AdminHandler{
		accounts:       s.Accounts,
		deposits:       s.Deposits,
		withdrawals:    s.Withdrawals,
		ledger:         s.Ledger,
		audit:          s.Audit,
		reconciliation: s.Reconciliation,
	}
}

func (h *AdminHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	claims, err := h.deposits.ListByStatus(r.Context(), r.URL.Query().Get("status"), page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "list deposit queue")
		return
	}
	respondList(w, claims)
}

func (h *AdminHandler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	h.resolveDeposit(w, r, h.deposits.Verify, "verify deposit")
}

func (h *AdminHandler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	h.resolveDeposit(w, r, h.deposits.Reject, "reject deposit")
}

func (h *AdminHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	reqs, err := h.withdrawals.ListByStatus(r.Context(), r.URL.Query().Get("status"), page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "list withdrawal queue")
		return
	}
	respondList(w, reqs)
}

func (h *AdminHandler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.resolveWithdrawal(w, r, h.withdrawals.Process, "process withdrawal")
}

func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.resolveWithdrawal(w, r, h.withdrawals.Reject, "reject withdrawal")
}

func (h *AdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "get account")
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// Ledger lists entries for one account, or across all accounts when
// account_id is omitted.
func (h *AdminHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	var accountID *uuid.UUID
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid account_id")
			return
		}
		accountID = &id
	}
	page, pageSize := pageParams(r)
	entries, err := h.ledger.Entries(r.Context(), accountID, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "list ledger")
		return
	}
	respondList(w, entries)
}

func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	trail, err := h.audit.Trail(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "audit trail")
		return
	}
	respondList(w, trail)
}

// Reconcile runs the balance check on demand. Drift is reported with 200;
// the caller inspects the balanced flag.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciliation.Run(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "reconciliation")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) resolveDeposit(w http.ResponseWriter, r *http.Request, fn func(context.Context, service.ResolveRequest) (*models.DepositClaim, error), op string) {
	req, ok := resolveRequest(w, r)
	if !ok {
		return
	}
	claim, err := fn(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, op)
		return
	}
	RespondJSON(w, http.StatusOK, claim)
}

func (h *AdminHandler) resolveWithdrawal(w http.ResponseWriter, r *http.Request, fn func(context.Context, service.ResolveRequest) (*models.WithdrawalRequest, error), op string) {
	req, ok := resolveRequest(w, r)
	if !ok {
		return
	}
	wr, err := fn(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, op)
		return
	}
	RespondJSON(w, http.StatusOK, wr)
}

func resolveRequest(w http.ResponseWriter, r *http.Request) (service.ResolveRequest, bool) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return service.ResolveRequest{}, false
	}
	body, ok := decodeResolveBody(w, r)
	if !ok {
		return service.ResolveRequest{}, false
	}
	return service.ResolveRequest{ID: id, OperatorNote: body.OperatorNote, ActorID: requestActor(r)}, true
}
