package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestLogger emits one structured log line per request. Server errors are
// logged at error level.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			var accountID string
			// Authentication runs deeper in the chain, so the id is captured
			// through a pointer the inner handler fills in.
			r = r.WithContext(context.WithValue(r.Context(), logAccountKey, &accountID))

			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.status),
				zap.String("trace_id", TraceIDFromContext(r.Context())),
				zap.Duration("duration", time.Since(start)),
			}
			if accountID != "" {
				fields = append(fields, zap.String("account_id", accountID))
			}
			if rw.status >= http.StatusInternalServerError {
				logger.Error("http_request", fields...)
				return
			}
			logger.Info("http_request", fields...)
		})
	}
}

const logAccountKey contextKey = "log_account_id"

func noteAccountForLog(ctx context.Context, accountID string) {
	if slot, ok := ctx.Value(logAccountKey).(*string); ok {
		*slot = accountID
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}
