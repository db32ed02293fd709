package api

import (
	"net/http"

	"github.com/ayo6706/solar-ledger/internal/api/handler"
	"github.com/ayo6706/solar-ledger/internal/api/middleware"
	"github.com/ayo6706/solar-ledger/internal/api/spec"
	"github.com/ayo6706/solar-ledger/internal/config"
	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/idempotency"
	"github.com/ayo6706/solar-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services groups the domain services the HTTP layer exposes.
type Services struct {
	Accounts       *service.AccountService
	Deposits       *service.DepositService
	Withdrawals    *service.WithdrawalService
	Purchases      *service.PurchaseService
	Ledger         *service.LedgerService
	Audit          *service.AuditService
	Reconciliation *service.ReconciliationService
	Webhooks       *service.WebhookService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        handler.Pinger
	idemStore *idempotency.Store
	redis     redis.Cmdable
	svc       Services
}

// NewRouter wires handlers to routes. redis may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, idemStore *idempotency.Store, redis redis.Cmdable, svc Services) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		idemStore: idemStore,
		redis:     redis,
		svc:       svc,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Trace)
	r.Use(middleware.RequestLogger(api.logger))
	r.Use(middleware.Recoverer(api.logger))
	r.Use(middleware.Metrics)
	if len(api.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   api.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Trace-ID"},
			ExposedHeaders:   []string{"X-Trace-ID", "X-Idempotent-Replay"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	auth := middleware.NewAuthenticator(api.cfg.JWTSecret, api.cfg.JWTIssuer, api.cfg.JWTAudience)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	accountHandler := handler.NewAccountHandler(api.svc.Accounts)
	depositHandler := handler.NewDepositHandler(api.svc.Deposits)
	withdrawalHandler := handler.NewWithdrawalHandler(api.svc.Withdrawals, api.svc.Deposits.MinAmount())
	purchaseHandler := handler.NewPurchaseHandler(api.svc.Purchases)
	webhookHandler := handler.NewWebhookHandler(api.svc.Webhooks)
	adminHandler := handler.NewAdminHandler(handler.AdminServices{
		Accounts:       api.svc.Accounts,
		Deposits:       api.svc.Deposits,
		Withdrawals:    api.svc.Withdrawals,
		Ledger:         api.svc.Ledger,
		Audit:          api.svc.Audit,
		Reconciliation: api.svc.Reconciliation,
	})
	idem := middleware.Idempotency(api.idemStore, api.logger)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/webhooks/deposits/confirm", webhookHandler.ConfirmDeposit)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.With(idem).Post("/v1/accounts", accountHandler.Open)
		r.Get("/v1/accounts/me", accountHandler.Me)
		r.Get("/v1/accounts/me/statement", accountHandler.Statement)

		r.With(idem).Post("/v1/deposits", depositHandler.Submit)
		r.Get("/v1/deposits", depositHandler.List)
		r.Get("/v1/deposits/{id}", depositHandler.Get)

		r.With(idem).Post("/v1/withdrawals", withdrawalHandler.Submit)
		r.Get("/v1/withdrawals", withdrawalHandler.List)
		r.Get("/v1/withdrawals/window", withdrawalHandler.Window)
		r.Get("/v1/withdrawals/{id}", withdrawalHandler.Get)

		r.With(idem).Post("/v1/purchases", purchaseHandler.Purchase)
		r.Get("/v1/purchases", purchaseHandler.List)
		r.Get("/v1/purchases/limits/{productId}", purchaseHandler.Allowance)

		r.Get("/v1/ledger/terms", withdrawalHandler.Terms)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Get("/deposits", adminHandler.ListDeposits)
			r.With(idem).Post("/deposits/{id}/verify", adminHandler.VerifyDeposit)
			r.With(idem).Post("/deposits/{id}/reject", adminHandler.RejectDeposit)

			r.Get("/withdrawals", adminHandler.ListWithdrawals)
			r.With(idem).Post("/withdrawals/{id}/process", adminHandler.ProcessWithdrawal)
			r.With(idem).Post("/withdrawals/{id}/reject", adminHandler.RejectWithdrawal)

			r.Get("/accounts/{id}", adminHandler.GetAccount)
			r.Get("/ledger", adminHandler.Ledger)
			r.Get("/audit/{id}", adminHandler.AuditTrail)
			r.Post("/reconciliation", adminHandler.Reconcile)
		})
	})

	return r
}
