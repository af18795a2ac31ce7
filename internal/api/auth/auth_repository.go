package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/driving-lms-auth/app/observability/metrics"
	"github.com/FACorreiaa/driving-lms-auth/internal/api"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo persists users, their profiles and reads tenants.
// Lookups return api.ErrNotFound when no row matches.
type AuthRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	TenantExists(ctx context.Context, tenantID string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// CreateUser inserts the user and its profile in one transaction and returns the stored record.
	// A duplicate email yields ErrEmailAlreadyExists, an unknown tenant ErrInvalidTenant.
	CreateUser(ctx context.Context, user *types.User) (*types.User, error)

	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, update types.ProfileUpdate) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
}

type PostgresAuthRepo struct {
	logger  *slog.Logger
	pgpool  DB
	metrics *metrics.AppMetrics
}

func NewPostgresAuthRepo(pgpool DB, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger:  logger,
		pgpool:  pgpool,
		metrics: metrics.Get(),
	}
}

const selectUserSQL = `
	SELECT u.id, u.tenant_id, u.email, u.password_hash, u.role::text, u.is_active,
	       u.last_login, u.created_at, u.updated_at,
	       p.first_name, p.last_name, p.phone, p.avatar_url, p.settings
	FROM users u
	JOIN user_profiles p ON p.user_id = u.id`

func startSpan(ctx context.Context, name, operation, table string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
	)
	return otel.Tracer("AuthRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func scanUser(row pgx.Row) (*types.User, error) {
	var (
		u        types.User
		role     string
		settings []byte
	)
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &role, &u.IsActive,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
		&u.Profile.FirstName, &u.Profile.LastName, &u.Profile.Phone, &u.Profile.AvatarURL, &settings,
	)
	if err != nil {
		return nil, err
	}
	u.Role = types.Role(role)
	u.Profile.Settings = map[string]any{}
	if len(settings) > 0 {
		if err = json.Unmarshal(settings, &u.Profile.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode profile settings: %w", err)
		}
	}
	return &u, nil
}

func (r *PostgresAuthRepo) getUser(ctx context.Context, span trace.Span, l *slog.Logger, where string, arg any) (*types.User, error) {
	start := time.Now()
	user, err := scanUser(r.pgpool.QueryRow(ctx, selectUserSQL+" WHERE "+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		r.metrics.ObserveQuery(ctx, "get_user", start, nil)
		l.DebugContext(ctx, "User not found")
		span.SetStatus(codes.Ok, "User not found")
		return nil, api.ErrNotFound
	}
	r.metrics.ObserveQuery(ctx, "get_user", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	span.SetStatus(codes.Ok, "User found")
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := startSpan(ctx, "GetUserByEmail", "SELECT", "users")
	defer span.End()

	l := r.logger.With(slog.String("method", "GetUserByEmail"))
	return r.getUser(ctx, span, l, "u.email = $1", email)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := startSpan(ctx, "GetUserByID", "SELECT", "users", attribute.String("db.user.id", userID.String()))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetUserByID"), slog.String("userID", userID.String()))
	return r.getUser(ctx, span, l, "u.id = $1", userID)
}

func (r *PostgresAuthRepo) exists(ctx context.Context, query, name string, arg any) (bool, error) {
	start := time.Now()
	var found bool
	err := r.pgpool.QueryRow(ctx, query, arg).Scan(&found)
	r.metrics.ObserveQuery(ctx, name, start, err)
	return found, err
}

func (r *PostgresAuthRepo) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	ctx, span := startSpan(ctx, "TenantExists", "SELECT", "tenants", attribute.String("db.tenant.id", tenantID))
	defer span.End()

	found, err := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, "tenant_exists", tenantID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check tenant", slog.String("tenantID", tenantID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("error checking tenant: %w", err)
	}
	return found, nil
}

func (r *PostgresAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	ctx, span := startSpan(ctx, "EmailExists", "SELECT", "users")
	defer span.End()

	found, err := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, "email_exists", email)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check email", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("error checking email: %w", err)
	}
	return found, nil
}

// mapConstraintError turns constraint violations raised on insert into domain errors.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrEmailAlreadyExists
	case pgForeignKeyViolation:
		return ErrInvalidTenant
	}
	return err
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, user *types.User) (created *types.User, err error) {
	ctx, span := startSpan(ctx, "CreateUser", "INSERT", "users", attribute.String("db.tenant.id", user.TenantID))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"), slog.String("tenantID", user.TenantID))
	start := time.Now()
	defer func() { r.metrics.ObserveQuery(ctx, "create_user", start, err) }()

	settings := user.Profile.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile settings: %w", err)
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Begin transaction failed")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				l.WarnContext(ctx, "Rollback failed", slog.Any("error", rbErr))
			}
		}
	}()

	out := *user
	out.Profile.Settings = settings
	err = tx.QueryRow(ctx, `
		INSERT INTO users (tenant_id, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4::user_role, $5)
		RETURNING id, created_at, updated_at`,
		user.TenantID, user.Email, user.PasswordHash, string(user.Role), user.IsActive,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		err = mapConstraintError(err)
		if errors.Is(err, ErrEmailAlreadyExists) || errors.Is(err, ErrInvalidTenant) {
			l.WarnContext(ctx, "User insert rejected by constraint", slog.Any("error", err))
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert user failed")
		return nil, fmt.Errorf("error inserting user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_profiles (user_id, first_name, last_name, phone, avatar_url, settings)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		out.ID, user.Profile.FirstName, user.Profile.LastName, user.Profile.Phone, user.Profile.AvatarURL, settingsJSON,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert user profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert profile failed")
		return nil, fmt.Errorf("error inserting user profile: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Commit failed")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	span.SetAttributes(attribute.String("db.user.id", out.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	l.InfoContext(ctx, "User created", slog.String("userID", out.ID.String()))
	return &out, nil
}

// execUpdate runs a single-row update and returns api.ErrNotFound when nothing matched.
func (r *PostgresAuthRepo) execUpdate(ctx context.Context, span trace.Span, l *slog.Logger, name, query string, args ...any) error {
	start := time.Now()
	tag, err := r.pgpool.Exec(ctx, query, args...)
	r.metrics.ObserveQuery(ctx, name, start, err)
	if err != nil {
		l.ErrorContext(ctx, "Update failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("error executing %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		l.WarnContext(ctx, "No rows affected")
		span.SetStatus(codes.Error, "User not found")
		return api.ErrNotFound
	}
	span.SetStatus(codes.Ok, "Updated")
	return nil
}

func (r *PostgresAuthRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	ctx, span := startSpan(ctx, "UpdateLastLogin", "UPDATE", "users", attribute.String("db.user.id", userID.String()))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateLastLogin"), slog.String("userID", userID.String()))
	return r.execUpdate(ctx, span, l, "update_last_login",
		`UPDATE users SET last_login = NOW(), updated_at = NOW() WHERE id = $1`, userID)
}

// UpdateProfile applies the allow-listed columns present in update and refreshes
// updated_at on both the profile and the user.
func (r *PostgresAuthRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, update types.ProfileUpdate) error {
	ctx, span := startSpan(ctx, "UpdateProfile", "UPDATE", "user_profiles", attribute.String("db.user.id", userID.String()))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	var setClauses []string
	var args []any
	argID := 1
	for _, column := range types.ProfileColumns {
		value, ok := update[column]
		if !ok {
			continue
		}
		if column == "settings" {
			encoded, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("failed to encode profile settings: %w", err)
			}
			value = encoded
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
		span.SetAttributes(attribute.Bool("update."+column, true))
	}
	if len(setClauses) == 0 {
		return ErrNoValidFields
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, userID)

	query := fmt.Sprintf(`
		WITH updated AS (
			UPDATE user_profiles SET %s WHERE user_id = $%d RETURNING user_id
		)
		UPDATE users SET updated_at = NOW() WHERE id IN (SELECT user_id FROM updated)`,
		strings.Join(setClauses, ", "), argID)

	l.DebugContext(ctx, "Updating profile", slog.Int("fields", len(setClauses)-1))
	return r.execUpdate(ctx, span, l, "update_profile", query, args...)
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	ctx, span := startSpan(ctx, "UpdatePassword", "UPDATE", "users", attribute.String("db.user.id", userID.String()))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdatePassword"), slog.String("userID", userID.String()))
	return r.execUpdate(ctx, span, l, "update_password",
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, userID)
}

func (r *PostgresAuthRepo) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	ctx, span := startSpan(ctx, "SetActive", "UPDATE", "users",
		attribute.String("db.user.id", userID.String()),
		attribute.Bool("user.active", active),
	)
	defer span.End()

	l := r.logger.With(slog.String("method", "SetActive"), slog.String("userID", userID.String()))
	return r.execUpdate(ctx, span, l, "set_active",
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, userID)
}
