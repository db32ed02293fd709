package handler

import (
	"net/http"

	"github.com/ayo6706/solar-ledger/internal/service"
)

type DepositHandler struct {
	svc *service.DepositService
}

func NewDepositHandler(svc *service.DepositService) *DepositHandler {
	return &DepositHandler{svc: svc}
}

type submitDepositBody struct {
	Amount            int64  `json:"amount"`
	Method            string `json:"method"`
	ExternalReference string `json:"external_reference"`
}

// Submit handles POST /v1/deposits.
func (h *DepositHandler) Submit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	var body submitDepositBody
	if !decodeJSON(w, r, &body) {
		return
	}

	claim, err := h.svc.Submit(r.Context(), service.SubmitDepositRequest{
		AccountID:         accountID,
		Amount:            body.Amount,
		Method:            body.Method,
		ExternalReference: body.ExternalReference,
	})
	if err != nil {
		respondServiceError(w, r, err, "submit deposit")
		return
	}
	RespondJSON(w, http.StatusCreated, claim)
}

func (h *DepositHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	page, pageSize := pageParams(r)
	claims, err := h.svc.ListByAccount(r.Context(), accountID, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "list deposits")
		return
	}
	respondList(w, claims)
}

// Get returns one of the caller's claims. Claims owned by other accounts are
// reported as not found.
func (h *DepositHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	claim, err := h.svc.GetForAccount(r.Context(), accountID, id)
	if err != nil {
		respondServiceError(w, r, err, "get deposit")
		return
	}
	RespondJSON(w, http.StatusOK, claim)
}
