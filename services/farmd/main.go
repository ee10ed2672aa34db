package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"farmchain/config"
	"farmchain/core/events"
	"farmchain/integrations/eventlog"
	"farmchain/integrations/webhooks"
	"farmchain/native/bank"
	"farmchain/native/collectible"
	"farmchain/native/farming"
	"farmchain/native/params"
	"farmchain/observability/logging"
	"farmchain/observability/metrics"
	telemetry "farmchain/observability/otel"
	farmdconfig "farmchain/services/farmd/config"
	"farmchain/services/farmd/server"
	"farmchain/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/farmd/config.yaml", "path to farmd config")
	flag.Parse()

	cfg, err := farmdconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("FARM_ENV"))
	logger := logging.Setup("farmd", env, cfg.LogFile)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryConfig(cfg.Telemetry, env))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	farmCfg, err := config.Load(cfg.FarmingConfig)
	if err != nil {
		log.Fatalf("load farming config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := storage.Open(cfg.Storage, storePath(cfg.DataDir, cfg.Storage))
	if err != nil {
		log.Fatalf("open pool store: %v", err)
	}
	defer db.Close()

	paramStore := params.NewStore(params.NewDBState(db))
	ledger := bank.NewLedger()
	units := collectible.NewRegistry()

	engine := farming.NewEngine(farmCfg.Farming, farming.NewRegistry(db))
	engine.SetCustody(ledger)
	engine.SetCollateral(units)
	engine.SetEmergencyView(paramStore)
	engine.SetLogger(logger.With("component", "farming"))
	engine.SetMetrics(metrics.Farming())

	eventDB, err := eventlog.Open(cfg.Events.DSN)
	if err != nil {
		log.Fatalf("open event log: %v", err)
	}
	sink, err := eventlog.NewSink(eventDB, logger.With("component", "eventlog"))
	if err != nil {
		log.Fatalf("init event log: %v", err)
	}

	hub := server.NewHub()
	emitters := events.Fanout{sink, hub}
	if cfg.Webhook.Enabled() {
		dispatcher, err := webhooks.NewDispatcher(cfg.Webhook.URL, []byte(cfg.Webhook.Secret),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, cfg.Webhook.MinBackoff, cfg.Webhook.MaxBackoff),
			webhooks.WithLogger(logger.With("component", "webhooks")))
		if err != nil {
			log.Fatalf("init webhooks: %v", err)
		}
		defer dispatcher.Close()
		emitters = append(emitters, dispatcher)
	}
	engine.SetEmitter(emitters)

	srv, err := server.New(server.Config{
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			AdminScope: cfg.Auth.AdminScope,
			ClockSkew:  cfg.Auth.ClockSkew,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	}, server.Deps{
		Engine: engine,
		Ledger: ledger,
		Units:  units,
		Params: paramStore,
		Events: sink,
		Hub:    hub,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("farmd listening", slog.String("addr", cfg.ListenAddress), slog.String("network", farmCfg.NetworkName))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func storePath(dataDir, backend string) string {
	if backend == "bolt" {
		return filepath.Join(dataDir, "pools.db")
	}
	return filepath.Join(dataDir, "pools")
}

// telemetryConfig merges the file settings with the standard OTLP variables,
// which take precedence when set.
func telemetryConfig(cfg farmdconfig.TelemetryConfig, env string) telemetry.Config {
	endpoint := cfg.Endpoint
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
		endpoint = value
	}
	headers := cfg.Headers
	if value := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); strings.TrimSpace(value) != "" {
		headers = telemetry.ParseHeaders(value)
	}
	insecure := cfg.Insecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	return telemetry.Config{
		ServiceName: "farmd",
		Environment: env,
		Endpoint:    endpoint,
		Insecure:    insecure,
		Headers:     headers,
		Metrics:     cfg.Metrics,
		Traces:      cfg.Traces,
	}
}
