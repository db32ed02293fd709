package handler

import (
	"net/http"

	"github.com/ayo6706/solar-ledger/internal/service"
)

type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type openAccountBody struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

// Open handles POST /v1/accounts. The account id is the caller's token id.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	var body openAccountBody
	if !decodeJSON(w, r, &body) {
		return
	}

	account, err := h.svc.Open(r.Context(), service.OpenAccountRequest{
		AccountID:    accountID,
		Name:         body.Name,
		Phone:        body.Phone,
		ReferralCode: body.ReferralCode,
	})
	if err != nil {
		respondServiceError(w, r, err, "open account")
		return
	}
	RespondJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	account, err := h.svc.Get(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err, "get account")
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) Statement(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	page, pageSize := pageParams(r)
	entries, err := h.svc.Statement(r.Context(), accountID, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "get statement")
		return
	}
	respondList(w, entries)
}
