package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"farmchain/integrations/eventlog"
	"farmchain/native/bank"
	"farmchain/native/collectible"
	"farmchain/native/farming"
	"farmchain/native/params"
)

var (
	errStreamDisabled   = errors.New("event stream not configured")
	errEventLogDisabled = errors.New("event log not configured")
)

// Config holds the HTTP layer settings.
type Config struct {
	Auth      AuthConfig
	RateLimit RateLimit
}

// Deps are the collaborators served by the API. Events and Hub are optional.
type Deps struct {
	Engine *farming.Engine
	Ledger *bank.Ledger
	Units  *collectible.Registry
	Params *params.Store
	Events *eventlog.Sink
	Hub    *Hub
	Logger *slog.Logger
	Clock  func() time.Time
}

// Server exposes the farming engine over HTTP.
type Server struct {
	engine  *farming.Engine
	ledger  *bank.Ledger
	units   *collectible.Registry
	params  *params.Store
	events  *eventlog.Sink
	hub     *Hub
	logger  *slog.Logger
	clock   func() time.Time
	auth    *Authenticator
	limiter *RateLimiter
	locks   *poolLocks
}

// New constructs the server from its configuration and collaborators.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("farmd: engine required")
	}
	if deps.Ledger == nil || deps.Units == nil || deps.Params == nil {
		return nil, errors.New("farmd: ledger, collateral registry and params store required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Server{
		engine:  deps.Engine,
		ledger:  deps.Ledger,
		units:   deps.Units,
		params:  deps.Params,
		events:  deps.Events,
		hub:     deps.Hub,
		logger:  logger,
		clock:   clock,
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit),
		locks:   newPoolLocks(),
	}, nil
}

func (s *Server) now() uint64 {
	return uint64(s.clock().Unix())
}

// Handler builds the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.Middleware)

		v1.Get("/pools", s.handleListPools)
		v1.Post("/pools", s.handleRegisterPool)
		v1.Route("/pools/{pool}", func(pr chi.Router) {
			pr.Get("/", s.handlePoolInfo)
			pr.Post("/rewards", s.handleDepositReward)
			pr.Post("/stake", s.handleStake)
			pr.Post("/unstake", s.handleUnstake)
			pr.Post("/harvest", s.handleHarvest)
			pr.Post("/boost", s.handleAttachBoost)
			pr.Delete("/boost", s.handleDetachBoost)
			pr.Post("/emergency/unstake", s.handleEmergencyUnstake)
			pr.Get("/stakes/{who}", s.handleStakeOf)
			pr.Get("/epochs", s.handleEpochs)
			pr.Get("/epochs/export", s.handleExportEpochs)
			pr.Get("/epochs/{index}", s.handleEpochInfo)
			pr.Group(func(admin chi.Router) {
				admin.Use(s.auth.RequireAdmin)
				admin.Post("/emergency", s.handleEnableEmergency)
				admin.Post("/treasury/withdraw", s.handleWithdrawToTreasury)
			})
		})
		v1.Get("/accounts/{who}/balances", s.handleBalances)
		v1.Get("/collateral/{unit}", s.handleCollateralUnit)
		v1.Post("/collateral/{unit}/split", s.handleSplitUnit)
		v1.Post("/collateral/{unit}/merge", s.handleMergeUnit)
		v1.Get("/events", s.handleListEvents)
		v1.Get("/events/stream", s.handleEventStream)

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(s.auth.RequireAdmin)
			admin.Get("/emergency", s.handleGlobalEmergency)
			admin.Put("/emergency", s.handleSetGlobalEmergency)
			admin.Post("/mint", s.handleMint)
			admin.Post("/collateral", s.handleMintCollateral)
		})
	})

	return otelhttp.NewHandler(r, "farmd")
}
