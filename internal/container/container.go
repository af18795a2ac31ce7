package container

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/driving-lms-auth/app/db"
	"github.com/FACorreiaa/driving-lms-auth/config"
	"github.com/FACorreiaa/driving-lms-auth/internal/api/auth"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Pool          *pgxpool.Pool
	ConnectionURL string
	AuthService   *auth.AuthServiceImpl
	AuthHandler   *auth.HandlerImpl
}

// NewContainer opens the database pool and wires the credential service.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	tokens := auth.NewTokenManager(cfg.JWT)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	// Reset links are only written to the log outside production.
	sender := auth.NewLogResetSender(logger, cfg.Auth.ResetURL, cfg.IsDevelopment())

	authService := auth.NewAuthService(authRepo, tokens, hasher, sender, cfg.Auth, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Pool:          pool,
		ConnectionURL: dbConfig.ConnectionURL,
		AuthService:   authService,
		AuthHandler:   authHandler,
	}, nil
}

// AuthMiddleware returns the bearer-token middleware backed by the container's service.
func (c *Container) AuthMiddleware() func(next http.Handler) http.Handler {
	return auth.Authenticate(c.Logger, c.AuthService)
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.AuthService != nil {
		c.AuthService.Wait()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations() error {
	return database.RunMigrations(c.ConnectionURL, c.Logger)
}
