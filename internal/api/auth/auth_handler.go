package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/driving-lms-auth/internal/api"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

type HandlerImpl struct {
	logger      *slog.Logger
	authService AuthService
}

func NewHandlerImpl(authService AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:      logger,
		authService: authService,
	}
}

func startHandlerSpan(r *http.Request, name, route string) (trace.Span, *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return span, r.WithContext(ctx)
}

// writeServiceError maps service errors to HTTP responses. Unknown errors become a
// generic 500 so storage details never reach clients.
func (h *HandlerImpl) writeServiceError(w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, ErrInvalidOrExpiredToken):
		status, msg = http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, ErrInvalidOrExpiredResetToken):
		status, msg = http.StatusUnauthorized, "Invalid or expired reset token"
	case errors.Is(err, ErrIncorrectPassword):
		status, msg = http.StatusUnauthorized, "Current password is incorrect"
	case errors.Is(err, ErrEmailAlreadyExists):
		status, msg = http.StatusConflict, "Email already exists"
	case errors.Is(err, ErrInvalidTenant):
		status, msg = http.StatusBadRequest, "Invalid tenant"
	case errors.Is(err, ErrInvalidRole):
		status, msg = http.StatusBadRequest, "Role cannot be assigned at signup"
	case errors.Is(err, ErrNoValidFields):
		status, msg = http.StatusBadRequest, "No valid fields to update"
	case errors.Is(err, ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUserNotFound):
		status, msg = http.StatusNotFound, "User not found"
	case errors.Is(err, api.ErrForbidden):
		status, msg = http.StatusForbidden, "Insufficient permissions"
	}

	if status == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "Request failed", slog.Any("error", err))
		span.RecordError(err)
	} else {
		l.InfoContext(r.Context(), "Request rejected", slog.Int("status", status), slog.String("reason", msg))
	}
	span.SetStatus(codes.Error, msg)
	api.ErrorResponse(w, r, status, msg)
}

func (h *HandlerImpl) decode(w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span, dst any) bool {
	if err := api.DecodeJSONBody(w, r, dst); err != nil {
		l.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return false
	}
	return true
}

// Login godoc
// @Summary      Log in
// @Description  Verifies email and password and returns the user with a session token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body LoginRequest true "Credentials"
// @Success      200 {object} types.AuthResult
// @Failure      400 {object} api.ErrorBody "Invalid request"
// @Failure      401 {object} api.ErrorBody "Invalid credentials"
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "Login", "/auth/login")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
	if !h.decode(w, r, l, span, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Logged in")
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// Signup godoc
// @Summary      Sign up
// @Description  Creates a student or instructor account in an existing tenant and returns a session token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        user body SignupRequest true "New user"
// @Success      201 {object} types.AuthResult
// @Failure      400 {object} api.ErrorBody "Invalid input, tenant or role"
// @Failure      409 {object} api.ErrorBody "Email already exists"
// @Router       /auth/signup [post]
func (h *HandlerImpl) Signup(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "Signup", "/auth/signup")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Signup"))

	var req SignupRequest
	if !h.decode(w, r, l, span, &req) {
		return
	}
	span.SetAttributes(attribute.String("tenant.id", req.TenantID))

	result, err := h.authService.Signup(r.Context(), types.SignupRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		TenantID:  req.TenantID,
		Role:      types.Role(req.Role),
	})
	if err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Signed up")
	api.WriteJSONResponse(w, r, http.StatusCreated, result)
}

// ForgotPassword godoc
// @Summary      Request a password reset
// @Description  Always answers with the same message, whether or not the email belongs to an account.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email"
// @Success      202 {object} api.Response
// @Failure      400 {object} api.ErrorBody "Invalid request"
// @Router       /auth/password/forgot [post]
func (h *HandlerImpl) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "ForgotPassword", "/auth/password/forgot")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ForgotPassword"))

	var req ForgotPasswordRequest
	if !h.decode(w, r, l, span, &req) {
		return
	}

	// The token is delivered out of band and never echoed here.
	if _, err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Accepted")
	api.WriteJSONResponse(w, r, http.StatusAccepted, api.Response{
		Success: true,
		Message: resetRequestedMessage,
	})
}

// ResetPassword godoc
// @Summary      Reset password
// @Description  Sets a new password using a reset token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.ErrorBody "Invalid request"
// @Failure      401 {object} api.ErrorBody "Invalid or expired reset token"
// @Router       /auth/password/reset [post]
func (h *HandlerImpl) ResetPassword(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "ResetPassword", "/auth/password/reset")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ResetPassword"))

	var req ResetPasswordRequest
	if !h.decode(w, r, l, span, &req) {
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Password reset")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Password has been reset",
	})
}

// Me godoc
// @Summary      Current user
// @Description  Returns the user the bearer token belongs to.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.UserPublic
// @Failure      401 {object} api.ErrorBody "Invalid or expired token"
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *HandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "Me", "/auth/me")
	defer span.End()

	user, ok := GetUserFromContext(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		unauthorized(w, r, "Authentication required")
		return
	}

	span.SetStatus(codes.Ok, "Current user")
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// UpdateProfile godoc
// @Summary      Update own profile
// @Description  Applies first_name, last_name, phone, avatar_url and settings. Other keys are ignored.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        profile body object true "Profile fields"
// @Success      200 {object} types.UserPublic
// @Failure      400 {object} api.ErrorBody "No valid fields"
// @Failure      401 {object} api.ErrorBody "Invalid or expired token"
// @Security     BearerAuth
// @Router       /auth/me/profile [patch]
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "UpdateProfile", "/auth/me/profile")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateProfile"))

	user, ok := GetUserFromContext(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		unauthorized(w, r, "Authentication required")
		return
	}

	var fields map[string]any
	if !h.decode(w, r, l, span, &fields) {
		return
	}

	updated, err := h.authService.UpdateProfile(r.Context(), user.ID, fields)
	if err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Profile updated")
	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

// ChangePassword godoc
// @Summary      Change own password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body ChangePasswordRequest true "Current and new password"
// @Success      200 {object} api.Response
// @Failure      401 {object} api.ErrorBody "Current password is incorrect"
// @Security     BearerAuth
// @Router       /auth/me/password [put]
func (h *HandlerImpl) ChangePassword(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "ChangePassword", "/auth/me/password")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ChangePassword"))

	user, ok := GetUserFromContext(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		unauthorized(w, r, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, l, span, &req) {
		return
	}

	if err := h.authService.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Password changed")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Password changed",
	})
}

func parseUserIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "userID"))
}

// GetUser godoc
// @Summary      Get user
// @Description  Super admins can read any user; everyone else only users of their own tenant.
// @Tags         Users
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} types.UserPublic
// @Failure      404 {object} api.ErrorBody "User not found"
// @Security     BearerAuth
// @Router       /users/{userID} [get]
func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "GetUser", "/users/{userID}")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetUser"))

	actor, ok := GetUserFromContext(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		unauthorized(w, r, "Authentication required")
		return
	}

	userID, err := parseUserIDParam(r)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid user ID format")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}
	if actor.Role != types.RoleSuperAdmin && user.TenantID != actor.TenantID {
		h.writeServiceError(w, r, l, span, ErrUserNotFound)
		return
	}

	span.SetStatus(codes.Ok, "User found")
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// SetUserStatus godoc
// @Summary      Activate or deactivate a user
// @Description  A deactivated user's existing tokens stop verifying immediately.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        userID path string true "User ID"
// @Param        request body SetUserStatusRequest true "New status"
// @Success      200 {object} api.Response
// @Failure      403 {object} api.ErrorBody "Insufficient permissions"
// @Failure      404 {object} api.ErrorBody "User not found"
// @Security     BearerAuth
// @Router       /users/{userID}/status [patch]
func (h *HandlerImpl) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	span, r := startHandlerSpan(r, "SetUserStatus", "/users/{userID}/status")
	defer span.End()
	l := h.logger.With(slog.String("handler", "SetUserStatus"))

	actor, ok := GetUserFromContext(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		unauthorized(w, r, "Authentication required")
		return
	}

	userID, err := parseUserIDParam(r)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid user ID format")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req SetUserStatusRequest
	if !h.decode(w, r, l, span, &req) {
		return
	}
	if req.IsActive == nil {
		span.SetStatus(codes.Error, "is_active is required")
		api.ErrorResponse(w, r, http.StatusBadRequest, "is_active is required")
		return
	}

	if err = h.authService.SetUserActive(r.Context(), actor, userID, *req.IsActive); err != nil {
		h.writeServiceError(w, r, l, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Status changed")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "User status updated",
	})
}
