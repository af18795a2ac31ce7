package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/driving-lms-auth/app/observability/metrics"
	"github.com/FACorreiaa/driving-lms-auth/config"
	"github.com/FACorreiaa/driving-lms-auth/internal/api"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService owns password verification, session tokens, password change and reset,
// and allow-listed profile updates. Every user value it returns is redacted.
type AuthService interface {
	// Login checks the password and returns the user with a fresh session token.
	// Unknown email, wrong password and inactive account all yield ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) (*types.AuthResult, error)

	// Signup creates an active user and profile in the given tenant and logs it in.
	Signup(ctx context.Context, req types.SignupRequest) (*types.AuthResult, error)

	// VerifyToken resolves a session token to the current state of its user.
	// Every failure yields ErrInvalidOrExpiredToken.
	VerifyToken(ctx context.Context, token string) (*types.UserPublic, error)

	// GetUserByID returns ErrUserNotFound when no such user exists.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserPublic, error)

	// UpdateProfile applies only first_name, last_name, phone, avatar_url and settings.
	// Other keys are ignored; if none remain the call fails with ErrNoValidFields.
	UpdateProfile(ctx context.Context, userID uuid.UUID, fields map[string]any) (*types.UserPublic, error)

	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error

	// RequestPasswordReset returns an empty token and a nil error for unknown, inactive
	// or throttled emails, so callers cannot tell accounts apart.
	RequestPasswordReset(ctx context.Context, email string) (string, error)

	// ResetPassword yields ErrInvalidOrExpiredResetToken for any token problem.
	ResetPassword(ctx context.Context, resetToken, newPassword string) error

	// SetUserActive lets super admins and same-tenant school admins (de)activate users.
	SetUserActive(ctx context.Context, actor types.UserPublic, userID uuid.UUID, active bool) error
}

type AuthServiceImpl struct {
	logger        *slog.Logger
	repo          AuthRepo
	tokens        *TokenManager
	hasher        PasswordHasher
	sender        ResetTokenSender
	tenants       *cache.Cache
	resetThrottle *ResetThrottle
	metrics       *metrics.AppMetrics
	dummyHash     string

	// deliveries tracks reset tokens still being handed to the sender.
	deliveries sync.WaitGroup
}

const resetDeliveryTimeout = 30 * time.Second

func NewAuthService(repo AuthRepo, tokens *TokenManager, hasher PasswordHasher, sender ResetTokenSender,
	cfg config.AuthConfig, logger *slog.Logger) *AuthServiceImpl {
	tenantTTL := cfg.TenantCacheTTL
	if tenantTTL <= 0 {
		tenantTTL = 10 * time.Minute
	}

	// Compared against when the email is unknown so that path costs one bcrypt run too.
	dummyHash, err := hasher.Hash("placeholder-password-for-unknown-accounts")
	if err != nil {
		logger.Warn("Failed to prepare placeholder hash", slog.Any("error", err))
	}

	return &AuthServiceImpl{
		logger:        logger,
		repo:          repo,
		tokens:        tokens,
		hasher:        hasher,
		sender:        sender,
		tenants:       cache.New(tenantTTL, 2*tenantTTL),
		resetThrottle: NewResetThrottle(cfg.ResetRequestLimit, cfg.ResetRequestWindow),
		metrics:       metrics.Get(),
		dummyHash:     dummyHash,
	}
}

func tracer() trace.Tracer {
	return otel.Tracer("AuthService")
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.AuthResult, error) {
	ctx, span := tracer().Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))

	rejected := func(reason string) (*types.AuthResult, error) {
		l.InfoContext(ctx, "Login rejected", slog.String("reason", reason))
		metrics.Outcome(ctx, s.metrics.LoginAttemptsTotal, "rejected")
		span.SetStatus(codes.Error, "Invalid credentials")
		return nil, ErrInvalidCredentials
	}

	if email == "" || password == "" {
		return rejected("missing_fields")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, api.ErrNotFound) {
		s.hasher.Matches(s.dummyHash, password)
		return rejected("unknown_email")
	}
	if err != nil {
		metrics.Outcome(ctx, s.metrics.LoginAttemptsTotal, "error")
		fail(span, err, "Failed to fetch user")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	if !s.hasher.Matches(user.PasswordHash, password) {
		return rejected("password_mismatch")
	}
	if !user.IsActive {
		return rejected("inactive")
	}

	token, err := s.tokens.IssueSession(user)
	if err != nil {
		metrics.Outcome(ctx, s.metrics.LoginAttemptsTotal, "error")
		fail(span, err, "Failed to issue token")
		return nil, err
	}

	if err = s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		metrics.Outcome(ctx, s.metrics.LoginAttemptsTotal, "error")
		fail(span, err, "Failed to update last login")
		return nil, fmt.Errorf("error updating last login: %w", err)
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	user.UpdatedAt = now

	metrics.Outcome(ctx, s.metrics.LoginAttemptsTotal, "success")
	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "Logged in")
	return &types.AuthResult{User: user.Public(), Token: token}, nil
}

func validateSignup(req *types.SignupRequest) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	switch {
	case req.Email == "":
		return missing("email")
	case req.Password == "":
		return missing("password")
	case strings.TrimSpace(req.FirstName) == "":
		return missing("first_name")
	case strings.TrimSpace(req.LastName) == "":
		return missing("last_name")
	case req.TenantID == "":
		return missing("tenant_id")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}

	if req.Role == "" {
		req.Role = types.RoleStudent
	}
	if !req.Role.Valid() || !req.Role.SelfAssignable() {
		return ErrInvalidRole
	}
	return nil
}

func (s *AuthServiceImpl) tenantExists(ctx context.Context, tenantID string) (bool, error) {
	if _, found := s.tenants.Get(tenantID); found {
		return true, nil
	}
	exists, err := s.repo.TenantExists(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if exists {
		s.tenants.SetDefault(tenantID, struct{}{})
	}
	return exists, nil
}

func (s *AuthServiceImpl) Signup(ctx context.Context, req types.SignupRequest) (result *types.AuthResult, err error) {
	ctx, span := tracer().Start(ctx, "Signup", trace.WithAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.String("user.role", string(req.Role)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Signup"), slog.String("tenantID", req.TenantID))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "rejected"
		}
		s.metrics.SignupDurationSeconds.Record(ctx, time.Since(start).Seconds())
		metrics.Outcome(ctx, s.metrics.SignupRequestsTotal, outcome)
	}()

	if err = validateSignup(&req); err != nil {
		l.InfoContext(ctx, "Signup rejected", slog.Any("error", err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	exists, err := s.tenantExists(ctx, req.TenantID)
	if err != nil {
		fail(span, err, "Failed to check tenant")
		return nil, fmt.Errorf("error checking tenant: %w", err)
	}
	if !exists {
		l.InfoContext(ctx, "Signup for unknown tenant")
		span.SetStatus(codes.Error, "Invalid tenant")
		return nil, ErrInvalidTenant
	}

	taken, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		fail(span, err, "Failed to check email")
		return nil, fmt.Errorf("error checking email: %w", err)
	}
	if taken {
		span.SetStatus(codes.Error, "Email already exists")
		return nil, ErrEmailAlreadyExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		fail(span, err, "Failed to hash password")
		return nil, err
	}

	created, err := s.repo.CreateUser(ctx, &types.User{
		TenantID:     req.TenantID,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
		Profile: types.UserProfile{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Settings:  map[string]any{},
		},
	})
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) || errors.Is(err, ErrInvalidTenant) {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		fail(span, err, "Failed to create user")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.tokens.IssueSession(created)
	if err != nil {
		fail(span, err, "Failed to issue token")
		return nil, err
	}

	l.InfoContext(ctx, "User signed up", slog.String("userID", created.ID.String()), slog.String("role", string(created.Role)))
	span.SetAttributes(attribute.String("user.id", created.ID.String()))
	span.SetStatus(codes.Ok, "Signed up")
	return &types.AuthResult{User: created.Public(), Token: token}, nil
}

func (s *AuthServiceImpl) VerifyToken(ctx context.Context, token string) (*types.UserPublic, error) {
	ctx, span := tracer().Start(ctx, "VerifyToken")
	defer span.End()

	l := s.logger.With(slog.String("method", "VerifyToken"))

	rejected := func(reason string, cause error) (*types.UserPublic, error) {
		l.DebugContext(ctx, "Token rejected", slog.String("reason", reason), slog.Any("error", cause))
		metrics.Outcome(ctx, s.metrics.TokenVerificationsTotal, "rejected")
		span.SetStatus(codes.Error, "Invalid or expired token")
		return nil, ErrInvalidOrExpiredToken
	}

	claims, err := s.tokens.ParseSession(token)
	if err != nil {
		return rejected("parse", err)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return rejected("subject", err)
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		return rejected("user_missing", err)
	}
	if err != nil {
		metrics.Outcome(ctx, s.metrics.TokenVerificationsTotal, "error")
		fail(span, err, "Failed to fetch user")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if !user.IsActive {
		return rejected("inactive", nil)
	}

	metrics.Outcome(ctx, s.metrics.TokenVerificationsTotal, "success")
	span.SetStatus(codes.Ok, "Token valid")
	pub := user.Public()
	return &pub, nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserPublic, error) {
	ctx, span := tracer().Start(ctx, "GetUserByID", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		span.SetStatus(codes.Error, "User not found")
		return nil, ErrUserNotFound
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch user", slog.String("method", "GetUserByID"), slog.Any("error", err))
		fail(span, err, "Failed to fetch user")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User found")
	pub := user.Public()
	return &pub, nil
}

// sanitizeProfileUpdate keeps the allow-listed keys and checks their value types.
func sanitizeProfileUpdate(fields map[string]any) (types.ProfileUpdate, error) {
	update := types.ProfileUpdate{}
	for _, column := range types.ProfileColumns {
		value, ok := fields[column]
		if !ok {
			continue
		}
		switch column {
		case "first_name", "last_name":
			str, isString := value.(string)
			if !isString {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, column)
			}
			if strings.TrimSpace(str) == "" {
				return nil, fmt.Errorf("%w: %s must not be blank", ErrInvalidInput, column)
			}
			update[column] = str
		case "phone", "avatar_url":
			switch v := value.(type) {
			case nil:
				update[column] = (*string)(nil)
			case string:
				update[column] = &v
			case *string:
				update[column] = v
			default:
				return nil, fmt.Errorf("%w: %s must be a string or null", ErrInvalidInput, column)
			}
		case "settings":
			switch v := value.(type) {
			case nil:
				update[column] = map[string]any{}
			case map[string]any:
				update[column] = v
			default:
				return nil, fmt.Errorf("%w: settings must be an object", ErrInvalidInput)
			}
		}
	}
	if len(update) == 0 {
		return nil, ErrNoValidFields
	}
	return update, nil
}

func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, fields map[string]any) (*types.UserPublic, error) {
	ctx, span := tracer().Start(ctx, "UpdateProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	update, err := sanitizeProfileUpdate(fields)
	if err != nil {
		l.InfoContext(ctx, "Profile update rejected", slog.Any("error", err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if dropped := len(fields) - len(update); dropped > 0 {
		l.DebugContext(ctx, "Ignored fields outside the profile allow-list", slog.Int("count", dropped))
	}

	err = s.repo.UpdateProfile(ctx, userID, update)
	if errors.Is(err, api.ErrNotFound) {
		span.SetStatus(codes.Error, "User not found")
		return nil, ErrUserNotFound
	}
	if err != nil {
		fail(span, err, "Failed to update profile")
		return nil, fmt.Errorf("error updating profile: %w", err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		fail(span, err, "Failed to reload user")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	l.InfoContext(ctx, "Profile updated")
	span.SetStatus(codes.Ok, "Profile updated")
	pub := user.Public()
	return &pub, nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	ctx, span := tracer().Start(ctx, "ChangePassword", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ChangePassword"), slog.String("userID", userID.String()))

	if newPassword == "" {
		return fmt.Errorf("%w: new_password is required", ErrInvalidInput)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		span.SetStatus(codes.Error, "User not found")
		return ErrUserNotFound
	}
	if err != nil {
		fail(span, err, "Failed to fetch user")
		return fmt.Errorf("error fetching user: %w", err)
	}

	if !s.hasher.Matches(user.PasswordHash, currentPassword) {
		l.InfoContext(ctx, "Password change rejected")
		span.SetStatus(codes.Error, "Incorrect password")
		return ErrIncorrectPassword
	}

	if err = s.setPassword(ctx, userID, newPassword); err != nil {
		fail(span, err, "Failed to store password")
		return err
	}

	l.InfoContext(ctx, "Password changed")
	span.SetStatus(codes.Ok, "Password changed")
	return nil
}

func (s *AuthServiceImpl) setPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	err = s.repo.UpdatePassword(ctx, userID, hash)
	if errors.Is(err, api.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}
	return nil
}

func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	ctx, span := tracer().Start(ctx, "RequestPasswordReset")
	defer span.End()

	l := s.logger.With(slog.String("method", "RequestPasswordReset"))

	noop := func(reason string) (string, error) {
		l.InfoContext(ctx, "Password reset not issued", slog.String("reason", reason))
		metrics.Outcome(ctx, s.metrics.PasswordResetEventsTotal, "skipped", attribute.String("stage", "request"))
		span.SetStatus(codes.Ok, "Accepted")
		return "", nil
	}

	if email == "" {
		return noop("empty_email")
	}
	if !s.resetThrottle.Allow(email) {
		return noop("throttled")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, api.ErrNotFound) {
		return noop("unknown_email")
	}
	if err != nil {
		fail(span, err, "Failed to fetch user")
		return "", fmt.Errorf("error fetching user: %w", err)
	}
	if !user.IsActive {
		return noop("inactive")
	}

	token, err := s.tokens.IssuePasswordReset(user)
	if err != nil {
		fail(span, err, "Failed to issue reset token")
		return "", err
	}

	s.deliverReset(ctx, l, user.Public(), token)

	metrics.Outcome(ctx, s.metrics.PasswordResetEventsTotal, "issued", attribute.String("stage", "request"))
	span.SetStatus(codes.Ok, "Accepted")
	return token, nil
}

// deliverReset hands the token to the sender in the background so that known and
// unknown emails take the same time to answer. The delivery outlives the request context.
func (s *AuthServiceImpl) deliverReset(ctx context.Context, l *slog.Logger, user types.UserPublic, token string) {
	deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetDeliveryTimeout)
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		defer cancel()
		if err := s.sender.SendPasswordReset(deliveryCtx, user, token); err != nil {
			l.ErrorContext(deliveryCtx, "Failed to deliver reset token", slog.String("userID", user.ID.String()), slog.Any("error", err))
		}
	}()
}

// Wait blocks until every pending reset delivery has finished.
func (s *AuthServiceImpl) Wait() {
	s.deliveries.Wait()
}

func (s *AuthServiceImpl) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	ctx, span := tracer().Start(ctx, "ResetPassword")
	defer span.End()

	l := s.logger.With(slog.String("method", "ResetPassword"))

	rejected := func(reason string, cause error) error {
		l.InfoContext(ctx, "Reset token rejected", slog.String("reason", reason), slog.Any("error", cause))
		metrics.Outcome(ctx, s.metrics.PasswordResetEventsTotal, "rejected", attribute.String("stage", "reset"))
		span.SetStatus(codes.Error, "Invalid or expired reset token")
		return ErrInvalidOrExpiredResetToken
	}

	claims, err := s.tokens.ParsePasswordReset(resetToken)
	if err != nil {
		return rejected("parse", err)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return rejected("subject", err)
	}

	if newPassword == "" {
		return fmt.Errorf("%w: new_password is required", ErrInvalidInput)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		return rejected("user_missing", err)
	}
	if err != nil {
		fail(span, err, "Failed to fetch user")
		return fmt.Errorf("error fetching user: %w", err)
	}
	if !user.IsActive {
		return rejected("inactive", nil)
	}
	if !s.tokens.FingerprintMatches(claims.Fingerprint, user.PasswordHash) {
		return rejected("already_used", nil)
	}

	if err = s.setPassword(ctx, userID, newPassword); err != nil {
		fail(span, err, "Failed to store password")
		return err
	}

	metrics.Outcome(ctx, s.metrics.PasswordResetEventsTotal, "completed", attribute.String("stage", "reset"))
	l.InfoContext(ctx, "Password reset", slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "Password reset")
	return nil
}

func (s *AuthServiceImpl) SetUserActive(ctx context.Context, actor types.UserPublic, userID uuid.UUID, active bool) error {
	ctx, span := tracer().Start(ctx, "SetUserActive", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("actor.id", actor.ID.String()),
		attribute.Bool("user.active", active),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SetUserActive"),
		slog.String("actorID", actor.ID.String()), slog.String("userID", userID.String()))

	if actor.ID == userID && !active {
		return fmt.Errorf("%w: cannot deactivate your own account", ErrInvalidInput)
	}

	target, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		span.SetStatus(codes.Error, "User not found")
		return ErrUserNotFound
	}
	if err != nil {
		fail(span, err, "Failed to fetch user")
		return fmt.Errorf("error fetching user: %w", err)
	}

	switch actor.Role {
	case types.RoleSuperAdmin:
	case types.RoleSchoolAdmin:
		if target.TenantID != actor.TenantID {
			span.SetStatus(codes.Error, "User not found")
			return ErrUserNotFound
		}
		if target.Role == types.RoleSuperAdmin {
			span.SetStatus(codes.Error, "Forbidden")
			return api.ErrForbidden
		}
	default:
		span.SetStatus(codes.Error, "Forbidden")
		return api.ErrForbidden
	}

	err = s.repo.SetActive(ctx, userID, active)
	if errors.Is(err, api.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		fail(span, err, "Failed to update status")
		return fmt.Errorf("error updating user status: %w", err)
	}

	l.InfoContext(ctx, "User status changed", slog.Bool("active", active))
	span.SetStatus(codes.Ok, "Status changed")
	return nil
}
