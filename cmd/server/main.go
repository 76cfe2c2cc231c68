package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/desblooms/school-crm-sub000/internal/bootstrap"
	"github.com/desblooms/school-crm-sub000/internal/config"
	feesHandler "github.com/desblooms/school-crm-sub000/internal/handlers/fees"
	"github.com/desblooms/school-crm-sub000/pkg/middleware"
	"github.com/desblooms/school-crm-sub000/pkg/observability"
	"github.com/desblooms/school-crm-sub000/pkg/resilience"
	"github.com/desblooms/school-crm-sub000/pkg/shutdown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := bootstrap.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Fatal("Fee ledger server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting fee ledger server",
		zap.Int("port", cfg.Server.Port),
		zap.Int("sessions", cfg.Database.Sessions),
		zap.Bool("serialize_sequences", cfg.Ledger.SerializeSequences),
		zap.String("timezone", cfg.Ledger.Timezone),
	)

	app, err := bootstrap.NewLedger(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}

	// Registered first so it closes last, after in-flight requests drain
	sm := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	sm.Register("ledger-sessions", app.Pool.Close)

	// Fail fast on bad credentials rather than on the first payment
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectBudget())
	err = app.Pool.Ping(connectCtx)
	cancel()
	if err != nil {
		_ = sm.Shutdown()
		return fmt.Errorf("database unreachable: %w", err)
	}
	logger.Info("Database connection established")

	healthChecker := observability.NewHealthChecker(app.Pool)
	metricsServer, err := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	if err != nil {
		_ = sm.Shutdown()
		return fmt.Errorf("start metrics server: %w", err)
	}
	sm.Register("metrics-server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(ctx, metricsServer)
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)
	sm.Register("rate-limiter", func(context.Context) error {
		rateLimiter.Shutdown()
		return nil
	})

	timeouts := resilience.DefaultTimeoutConfig()
	timeoutMiddleware := middleware.Timeout(timeouts, logger)

	mux := http.NewServeMux()
	fees := feesHandler.NewHandler(app.Pool, app.Location, logger)
	fees.RegisterRoutes(mux, func(h http.Handler) http.Handler {
		return observability.HTTPMetricsMiddleware("fees_collect", rateLimiter.Middleware(timeoutMiddleware(h)))
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           middleware.SecurityHeaders(!cfg.Logger.Development)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeouts.HTTPHandler + 5*time.Second,
	}
	sm.RegisterHTTPServer("http-server", httpServer)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := <-serveErr; err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	return sm.WaitForShutdown(waitCtx)
}
