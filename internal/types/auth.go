package types

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeSession       = "session"
	TokenTypePasswordReset = "password_reset"
)

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenantId"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// PasswordResetClaims is the payload of a password reset token.
// Fingerprint binds the token to the password hash it was issued against.
type PasswordResetClaims struct {
	UserID      string `json:"userId"`
	Type        string `json:"type"`
	Fingerprint string `json:"pfp"`
	jwt.RegisteredClaims
}

// SignupRequest carries the data needed to create a user and its profile.
type SignupRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
	TenantID  string
	Role      Role
}

// AuthResult is returned by login and signup.
type AuthResult struct {
	User  UserPublic `json:"user"`
	Token string     `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
}
