package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	appLogger "github.com/FACorreiaa/driving-lms-auth/app/logger"
	"github.com/FACorreiaa/driving-lms-auth/app/observability/metrics"
	"github.com/FACorreiaa/driving-lms-auth/app/tracer"
	"github.com/FACorreiaa/driving-lms-auth/config"
	_ "github.com/FACorreiaa/driving-lms-auth/docs"
	"github.com/FACorreiaa/driving-lms-auth/internal/container"
	"github.com/FACorreiaa/driving-lms-auth/internal/router"
)

const (
	serviceName    = "driving-lms-auth"
	serviceVersion = "1.0.0"
)

// @title           Driving LMS Credential & Session Service
// @version         1.0
// @description     Login, signup, session tokens, password reset and profile updates for the driving school LMS.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := appLogger.New(os.Stdout, cfg.IsDevelopment())
	slog.SetDefault(logger)

	if err = run(cfg, logger); err != nil {
		logger.Error("Application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	providers, err := tracer.InitTracingAndMetrics(serviceName, serviceVersion)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()
	metrics.InitAppMetrics()

	c, err := container.NewContainer(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer c.Close()

	if !c.WaitForDB(ctx) {
		return errors.New("database not ready after waiting")
	}
	if err = c.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	apiRouter := router.SetupRouter(&router.Config{
		AuthHandler:            c.AuthHandler,
		AuthenticateMiddleware: c.AuthMiddleware(),
		AllowedOrigins:         cfg.Server.AllowedOrigins,
		RateLimit:              cfg.RateLimit,
	})

	requestTimeout := cfg.Server.Timeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(requestTimeout))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", apiRouter)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:      otelhttp.NewHandler(mux, serviceName),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", providers.MetricsHandler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Handlers.Prometheus.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, s := range []struct {
		name string
		srv  *http.Server
	}{{"api", apiServer}, {"metrics", metricsServer}} {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("server", s.name), slog.String("address", s.srv.Addr))
			if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", s.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}
