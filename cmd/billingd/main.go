package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitcore/billing/internal/adapter/cardprovider"
	"github.com/fitcore/billing/internal/adapter/email"
	bhttp "github.com/fitcore/billing/internal/adapter/http"
	"github.com/fitcore/billing/internal/adapter/instantpay"
	botel "github.com/fitcore/billing/internal/adapter/otel"
	"github.com/fitcore/billing/internal/adapter/postgres"
	"github.com/fitcore/billing/internal/adapter/ristretto"
	"github.com/fitcore/billing/internal/adapter/staticplans"
	"github.com/fitcore/billing/internal/config"
	"github.com/fitcore/billing/internal/domain/fee"
	"github.com/fitcore/billing/internal/logger"
	"github.com/fitcore/billing/internal/port/notifier"
	"github.com/fitcore/billing/internal/port/provider"
	"github.com/fitcore/billing/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	rollback := flag.Int("rollback", 0, "roll back N database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	if *rollback > 0 {
		slog.Info("rolling back migrations", "steps", *rollback)
		return postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *rollback)
	}

	// --- Infrastructure ---

	shutdownTelemetry, err := botel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint, cfg.Telemetry.Insecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	entCache, err := ristretto.New(cfg.Cache.MaxSizeMB * 1024 * 1024)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer entCache.Close()

	catalog, err := staticplans.Load(cfg.Plans.Path)
	if err != nil {
		return fmt.Errorf("plan catalog: %w", err)
	}

	metrics, err := botel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Provider adapters ---

	card := cardprovider.New(cfg.Card.WebhookSecret,
		cardprovider.NewClient(cfg.Card.APIBaseURL, cfg.Card.APIKey, cfg.Card.APITimeout))
	instant := instantpay.New(cfg.Instant.WebhookSecret,
		instantpay.NewClient(cfg.Instant.APIBaseURL, cfg.Instant.APIKey, cfg.Instant.APITimeout))
	adapters := map[string]provider.Adapter{
		cardprovider.ProviderName: card,
		instantpay.ProviderName:   instant,
	}

	// --- Services ---

	store := postgres.NewStore(pool)
	mailer := email.NewNotifier(email.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		From:       cfg.SMTP.From,
		Password:   cfg.SMTP.Password,
		AdminEmail: cfg.SMTP.AdminEmail,
	})

	notifications := service.NewNotifications([]notifier.Notifier{mailer}, cfg.SMTP.LoginURL)
	provisioner := service.NewProvisioner(store)
	entitlements := service.NewEntitlements(store, catalog, entCache, cfg.Cache.TTL)

	instantRates := make(map[string]fee.Rate, len(cfg.Instant.FeePercents))
	for method, pct := range cfg.Instant.FeePercents {
		instantRates[method] = fee.Rate{Percent: pct}
	}
	fees := service.NewFees(store,
		fee.Rate{Percent: cfg.Card.FeePercent, FixedCents: cfg.Card.FeeFixedCents},
		instantRates, metrics)

	reconciler := service.NewReconciler(store, provisioner, entitlements, fees, notifications, catalog, metrics)
	sync := service.NewSync(store, adapters, reconciler, cfg.Sync.Timeout)

	// --- HTTP ---

	handlers := &bhttp.Handlers{
		Card:         card,
		Instant:      instant,
		Reconciler:   reconciler,
		Sync:         sync,
		Entitlements: entitlements,
		Fees:         fees,
		Store:        store,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(botel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", healthHandler(pool))

	bhttp.MountRoutes(r, handlers, cfg.Server)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports liveness plus database reachability.
func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Postgres: "ok"}
		code := http.StatusOK

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			status.Status = "degraded"
			status.Postgres = "unreachable"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
