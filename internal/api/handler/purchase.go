package handler

import (
	"net/http"
	"strconv"

	"github.com/ayo6706/solar-ledger/internal/service"
	"github.com/go-chi/chi/v5"
)

type PurchaseHandler struct {
	svc *service.PurchaseService
}

func NewPurchaseHandler(svc *service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

type purchaseBody struct {
	ProductID int64 `json:"product_id"`
	Amount    int64 `json:"amount"`
}

// Purchase handles POST /v1/purchases.
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	var body purchaseBody
	if !decodeJSON(w, r, &body) {
		return
	}

	rec, err := h.svc.TryPurchase(r.Context(), service.PurchaseRequest{
		AccountID: accountID,
		ProductID: body.ProductID,
		Amount:    body.Amount,
	})
	if err != nil {
		respondServiceError(w, r, err, "purchase")
		return
	}
	RespondJSON(w, http.StatusCreated, rec)
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	page, pageSize := pageParams(r)
	recs, err := h.svc.ListByAccount(r.Context(), accountID, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "list purchases")
		return
	}
	respondList(w, recs)
}

// Allowance handles GET /v1/purchases/limits/{productId}.
func (h *PurchaseHandler) Allowance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requestAccount(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || productID <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid productId")
		return
	}
	allowance, err := h.svc.Allowance(r.Context(), accountID, productID)
	if err != nil {
		respondServiceError(w, r, err, "purchase allowance")
		return
	}
	RespondJSON(w, http.StatusOK, allowance)
}
