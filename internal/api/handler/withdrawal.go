package handler

import (
	"net/http"
	"strconv"

	"github.com/ayo6706/solar-ledger/internal/service"
)

type WithdrawalHandler struct {
	svc        *service.WithdrawalService
	minDeposit int64
}

func NewWithdrawalHandler(svc *service.WithdrawalService, minDeposit int64) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc, minDeposit: minDeposit}
}

type submitWithdrawalBody struct {
	Amount int64 `json:"amount"`
}

// Submit handles POST /v1/withdrawals. The requested amount is debited
// immediately and the response carries the computed fee and net amount.
func (h *WithdrawalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	var body submitWithdrawalBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := h.svc.Submit(r.Context(), service.SubmitWithdrawalRequest{
		AccountID: accountID,
		Amount:    body.Amount,
	})
	if err != nil {
		respondServiceError(w, r, err, "submit withdrawal")
		return
	}
	RespondJSON(w, http.StatusCreated, req)
}

func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	page, pageSize := pageParams(r)
	reqs, err := h.svc.ListByAccount(r.Context(), accountID, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "list withdrawals")
		return
	}
	respondList(w, reqs)
}

func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	req, err := h.svc.GetForAccount(r.Context(), accountID, id)
	if err != nil {
		respondServiceError(w, r, err, "get withdrawal")
		return
	}
	RespondJSON(w, http.StatusOK, req)
}

func (h *WithdrawalHandler) Window(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.svc.Window())
}

// Terms handles GET /v1/ledger/terms. With ?amount= the response also carries
// the fee split for that amount.
func (h *WithdrawalHandler) Terms(w http.ResponseWriter, r *http.Request) {
	terms := h.svc.Terms(h.minDeposit)
	if raw := r.URL.Query().Get("amount"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be an integer")
			return
		}
		quote, err := h.svc.QuoteFor(amount)
		if err != nil {
			respondServiceError(w, r, err, "quote withdrawal")
			return
		}
		terms.Quote = quote
	}
	RespondJSON(w, http.StatusOK, terms)
}
