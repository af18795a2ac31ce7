package auth

import (
	"errors"
)

// Domain errors returned by AuthService. Messages are safe to show to clients.
var (
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrEmailAlreadyExists         = errors.New("email already exists")
	ErrInvalidTenant              = errors.New("invalid tenant")
	ErrInvalidRole                = errors.New("role cannot be assigned at signup")
	ErrInvalidInput               = errors.New("invalid input")
	ErrInvalidOrExpiredToken      = errors.New("invalid or expired token")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	ErrIncorrectPassword          = errors.New("current password is incorrect")
	ErrUserNotFound               = errors.New("user not found")
	ErrNoValidFields              = errors.New("no valid fields to update")
)

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email" example:"ana@school.pt"`
	Password string `json:"password" example:"password123"`
}

// SignupRequest represents the expected JSON body for self-signup.
type SignupRequest struct {
	Email     string  `json:"email" example:"ana@school.pt"`
	Password  string  `json:"password" example:"Str0ngP@ss!"`
	FirstName string  `json:"first_name" example:"Ana"`
	LastName  string  `json:"last_name" example:"Silva"`
	Phone     *string `json:"phone,omitempty" example:"+351910000000"`
	TenantID  string  `json:"tenant_id" example:"T1"`
	Role      string  `json:"role,omitempty" example:"student"`
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" example:"ana@school.pt"`
}

// ResetPasswordRequest completes the password reset flow.
type ResetPasswordRequest struct {
	Token       string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	NewPassword string `json:"new_password" example:"N3wStr0ngP@ss!"`
}

// ChangePasswordRequest changes the authenticated user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" example:"password123"`
	NewPassword     string `json:"new_password" example:"N3wStr0ngP@ss!"`
}

// SetUserStatusRequest activates or deactivates a user.
type SetUserStatusRequest struct {
	IsActive *bool `json:"is_active" example:"false"`
}

const resetRequestedMessage = "If the email exists, a reset link will be sent"
