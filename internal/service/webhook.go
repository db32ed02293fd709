package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"go.uber.org/zap"
)

var ErrInvalidSignature = errors.New("invalid signature")

// WebhookService accepts payment confirmations from the mobile-money provider.
// A confirmation only flags matching deposit claims; an operator still decides.
type WebhookService struct {
	deposits *DepositService
	hmacKey  []byte
	skipSig  bool
}

func NewWebhookService(deposits *DepositService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		deposits: deposits,
		hmacKey:  []byte(hmacKey),
		skipSig:  skipSignature,
	}
}

// DepositConfirmationPayload is the provider's notification body.
type DepositConfirmationPayload struct {
	Reference string `json:"reference"`
	Confirmed bool   `json:"confirmed"`
}

type DepositConfirmationResponse struct {
	Reference     string `json:"reference"`
	Confirmed     bool   `json:"confirmed"`
	ClaimsFlagged int64  `json:"claims_flagged"`
}

// HandleDepositConfirmation verifies the signature and flags deposit claims
// carrying the reported reference. Unconfirmed notifications are acknowledged
// without changes.
func (s *WebhookService) HandleDepositConfirmation(ctx context.Context, payload []byte, signature string) (*DepositConfirmationResponse, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var body DepositConfirmationPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %v", domain.ErrInvalidInput, err)
	}
	body.Reference = strings.TrimSpace(body.Reference)
	if body.Reference == "" {
		return nil, fmt.Errorf("%w: reference is required", domain.ErrInvalidInput)
	}

	resp := &DepositConfirmationResponse{Reference: body.Reference, Confirmed: body.Confirmed}
	if !body.Confirmed {
		return resp, nil
	}

	flagged, err := s.deposits.MarkExternallyConfirmed(ctx, body.Reference)
	if err != nil {
		return nil, err
	}
	resp.ClaimsFlagged = flagged
	if flagged == 0 {
		zap.L().Warn("deposit confirmation matched no claims", zap.String("reference", body.Reference))
	}
	return resp, nil
}

// verifyHMAC checks a "sha256=<hex>" signature over the raw body.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
