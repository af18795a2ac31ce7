package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/driving-lms-auth/config"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	defaultResetTTL   = time.Hour
)

var errWrongTokenType = errors.New("unexpected token type")

// TokenManager signs and verifies HS256 session and password reset tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	audience   string
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	m := &TokenManager{
		secret:     []byte(cfg.SecretKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		now:        time.Now,
	}
	if m.sessionTTL <= 0 {
		m.sessionTTL = defaultSessionTTL
	}
	if m.resetTTL <= 0 {
		m.resetTTL = defaultResetTTL
	}
	return m
}

func (m *TokenManager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	rc := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if m.audience != "" {
		rc.Audience = jwt.ClaimStrings{m.audience}
	}
	return rc
}

// IssueSession mints a session token for u.
func (m *TokenManager) IssueSession(u *types.User) (string, error) {
	claims := types.SessionClaims{
		UserID:           u.ID.String(),
		Email:            u.Email,
		Role:             u.Role,
		TenantID:         u.TenantID,
		Type:             types.TokenTypeSession,
		RegisteredClaims: m.registered(u.ID.String(), m.sessionTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ParseSession verifies signature, expiry, issuer, audience and token type.
func (m *TokenManager) ParseSession(tokenString string) (*types.SessionClaims, error) {
	claims := &types.SessionClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != types.TokenTypeSession {
		return nil, errWrongTokenType
	}
	return claims, nil
}

// IssuePasswordReset mints a reset token bound to the user's current password hash.
func (m *TokenManager) IssuePasswordReset(u *types.User) (string, error) {
	claims := types.PasswordResetClaims{
		UserID:           u.ID.String(),
		Type:             types.TokenTypePasswordReset,
		Fingerprint:      m.Fingerprint(u.PasswordHash),
		RegisteredClaims: m.registered(u.ID.String(), m.resetTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// ParsePasswordReset verifies a reset token. The fingerprint is checked by the caller
// against the stored hash.
func (m *TokenManager) ParsePasswordReset(tokenString string) (*types.PasswordResetClaims, error) {
	claims := &types.PasswordResetClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != types.TokenTypePasswordReset {
		return nil, errWrongTokenType
	}
	return claims, nil
}

// Fingerprint is a keyed digest of a password hash. It changes whenever the password does.
func (m *TokenManager) Fingerprint(passwordHash string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// FingerprintMatches compares in constant time.
func (m *TokenManager) FingerprintMatches(fingerprint, passwordHash string) bool {
	return hmac.Equal([]byte(fingerprint), []byte(m.Fingerprint(passwordHash)))
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return errors.New("token is not valid")
	}
	return nil
}
