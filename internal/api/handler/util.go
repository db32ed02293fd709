package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/solar-ledger/internal/api/middleware"
	"github.com/ayo6706/solar-ledger/internal/api/problem"
	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondList writes a JSON array, rendering an empty page as [] rather than null.
func respondList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	RespondJSON(w, http.StatusOK, items)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// domainProblems maps service sentinels to HTTP status and problem slug.
// Order matters only for wrapped chains carrying several sentinels.
var domainProblems = []struct {
	err    error
	status int
	slug   string
}{
	{domain.ErrInvalidAmount, http.StatusBadRequest, "ledger/invalid-amount"},
	{domain.ErrInvalidMethod, http.StatusBadRequest, "deposit/invalid-method"},
	{domain.ErrInvalidReferralCode, http.StatusBadRequest, "account/invalid-referral-code"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "request/invalid-input"},
	{domain.ErrNotFound, http.StatusNotFound, "resource/not-found"},
	{domain.ErrInvalidState, http.StatusConflict, "workflow/invalid-state"},
	{domain.ErrAccountExists, http.StatusConflict, "account/already-exists"},
	{domain.ErrBelowMinimum, http.StatusUnprocessableEntity, "ledger/below-minimum"},
	{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity, "ledger/insufficient-funds"},
	{domain.ErrLimitReached, http.StatusUnprocessableEntity, "purchase/limit-reached"},
	{domain.ErrOutsideWindow, http.StatusUnprocessableEntity, "withdrawal/outside-window"},
}

// respondServiceError renders err as a problem. Unknown errors are logged and
// reported as 500 without leaking their text.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	for _, p := range domainProblems {
		if errors.Is(err, p.err) {
			RespondError(w, r, p.status, p.slug, err.Error())
			return
		}
	}
	if status, pType, msg, ok := mapDBError(err); ok {
		RespondError(w, r, status, pType, msg)
		return
	}
	zap.L().Error(op+" failed", zap.Error(err), zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

// requestAccount returns the caller's account id or writes a 401.
func requestAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return uuid.Nil, false
	}
	return accountID, true
}

// requestActor returns the caller's id for audit records on admin actions.
func requestActor(r *http.Request) *uuid.UUID {
	if id, ok := middleware.AccountIDFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

// resolveBody is the optional payload of admin verify, reject and process calls.
type resolveBody struct {
	OperatorNote string `json:"operator_note"`
}

func decodeResolveBody(w http.ResponseWriter, r *http.Request) (resolveBody, bool) {
	var body resolveBody
	if r.ContentLength == 0 {
		return body, true
	}
	return body, decodeJSON(w, r, &body)
}
