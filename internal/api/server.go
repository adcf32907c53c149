// server.go - HTTP routing, CORS and server setup for the privatepay API.

// Package api serves the payment components over HTTP.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"privatepay/internal/custody"
	"privatepay/internal/orchestrator"
	"privatepay/internal/proofcache"
	"privatepay/internal/types"
)

const (
	// AuthorizationHeader carries "Bearer <token>", either the admin token or
	// an account key.
	AuthorizationHeader = "Authorization"
	RequestIDHeader     = "X-Request-Id"
)

// Orchestrator is the request orchestrator as seen by the HTTP layer.
type Orchestrator interface {
	ExecutePrivatePayment(ctx context.Context, caller types.Address, req orchestrator.Request, decoys []orchestrator.Decoy) (*orchestrator.Receipt, error)
	DepositFunds(ctx context.Context, account types.Address, amount uint64) error
	WithdrawFunds(ctx context.Context, account types.Address, amount uint64) (types.ExecutionID, error)
	CalculatePrivacyScore(ctx context.Context, account types.Address) (uint64, error)
	PrivacyMetrics(ctx context.Context, account types.Address) (*orchestrator.PrivacyMetrics, error)
	VaultBalance(ctx context.Context, account types.Address) (uint64, error)
	GlobalStats(ctx context.Context) (orchestrator.GlobalStats, error)
	Admin() types.Address
	Paused() bool
	Pause(ctx context.Context, admin types.Address) error
	Unpause(ctx context.Context, admin types.Address) error
	SetPrivacyScore(ctx context.Context, admin, account types.Address, score uint64) error
	ForceAcceptProof(ctx context.Context, admin types.Address, proof []byte, inputs []*big.Int) error
}

type LedgerStats interface {
	Stats(ctx context.Context) (custody.Stats, error)
}

type ProofStats interface {
	Stats(ctx context.Context) (proofcache.Stats, error)
}

// Backend groups the components the server exposes.
type Backend struct {
	Orchestrator Orchestrator
	Ledger       LedgerStats
	Proofs       ProofStats
}

// Server routes the privatepay HTTP API.
type Server struct {
	backend Backend
	auth    *Authenticator
	health  *HealthChecker
	limiter *CallerRateLimiter
	origins []string
	gather  prometheus.Gatherer
	log     zerolog.Logger
	handler http.Handler
}

type Option func(*Server)

// WithRateLimit limits every caller to limit requests per second with bursts of burst.
func WithRateLimit(limit float64, burst int) Option {
	return func(s *Server) { s.limiter = NewCallerRateLimiter(limit, burst) }
}

// WithAuthenticator sets the credentials checked on account and admin
// endpoints. Without one those endpoints reject every request.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithMetrics also serves the prometheus registry at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gather = g }
}

func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// New returns a server for backend. version is reported by /status.
func New(log zerolog.Logger, backend Backend, version string, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		health:  NewHealthChecker(version),
		origins: []string{"*"},
		log:     log.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.health.RegisterComponent("ledger", func(ctx context.Context) error {
		_, err := backend.Ledger.Stats(ctx)
		return err
	})
	s.health.RegisterComponent("proof-cache", func(ctx context.Context) error {
		_, err := backend.Proofs.Stats(ctx)
		return err
	})
	s.health.RegisterComponent("orchestrator", func(ctx context.Context) error {
		if backend.Orchestrator.Paused() {
			return fmt.Errorf("%w: paused", ErrDegraded)
		}
		_, err := backend.Orchestrator.GlobalStats(ctx)
		return err
	})

	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(s.log))

	if s.gather != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}

	api := router.PathPrefix("/privatepay").Subrouter()
	if s.limiter != nil {
		api.Use(s.rateLimitMiddleware)
	}

	// deposits credit custody without an on-ledger source of funds, so only
	// the operator may record them
	api.Handle("/deposit", s.requireAdmin(http.HandlerFunc(s.deposit))).Methods(http.MethodPost)
	api.HandleFunc("/withdraw", s.requireAccount(false, s.withdraw)).Methods(http.MethodPost)
	api.HandleFunc("/execute-payment", s.requireAccount(false, s.executePayment)).Methods(http.MethodPost)
	api.HandleFunc("/vault-balance", s.requireAccount(true, s.vaultBalance)).Methods(http.MethodGet)
	api.HandleFunc("/privacy-score", s.privacyScore).Methods(http.MethodGet)
	api.HandleFunc("/privacy-metrics", s.privacyMetrics).Methods(http.MethodGet)
	api.HandleFunc("/global-stats", s.globalStats).Methods(http.MethodGet)
	api.HandleFunc("/suggest-decoys", s.suggestDecoys).Methods(http.MethodGet)
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/pause", s.pause).Methods(http.MethodPost)
	admin.HandleFunc("/unpause", s.unpause).Methods(http.MethodPost)
	admin.HandleFunc("/privacy-score", s.setPrivacyScore).Methods(http.MethodPost)
	admin.HandleFunc("/force-accept", s.forceAccept).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
			http.MethodHead},
	})
	return c.Handler(router)
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HTTPServer wraps the API in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string, timeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		WriteTimeout: timeout,
		ReadTimeout:  timeout,
		IdleTimeout:  4 * timeout,
	}
}
