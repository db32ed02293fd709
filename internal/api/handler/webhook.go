package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/solar-ledger/internal/service"
	"go.uber.org/zap"
)

// WebhookHandler receives payment confirmations from the mobile-money provider.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// ConfirmDeposit handles POST /v1/webhooks/deposits/confirm. The body is
// signed with X-Webhook-Signature: sha256=<hex hmac>.
func (h *WebhookHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		zap.L().Warn("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	resp, err := h.webhookSvc.HandleDepositConfirmation(r.Context(), body, r.Header.Get("X-Webhook-Signature"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			zap.L().Warn("deposit webhook rejected", zap.Error(err))
			RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
			return
		}
		respondServiceError(w, r, err, "deposit webhook")
		return
	}
	RespondJSON(w, http.StatusOK, resp)
}
