package auth

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

// ResetTokenSender delivers a password reset token to its owner.
type ResetTokenSender interface {
	SendPasswordReset(ctx context.Context, user types.UserPublic, token string) error
}

var _ ResetTokenSender = (*LogResetSender)(nil)

// LogResetSender records reset requests in the log. The link itself is only
// logged when revealLinks is set, which is meant for local development.
type LogResetSender struct {
	logger      *slog.Logger
	resetURL    string
	revealLinks bool
}

func NewLogResetSender(logger *slog.Logger, resetURL string, revealLinks bool) *LogResetSender {
	return &LogResetSender{logger: logger, resetURL: resetURL, revealLinks: revealLinks}
}

func (s *LogResetSender) SendPasswordReset(ctx context.Context, user types.UserPublic, token string) error {
	l := s.logger.With(slog.String("method", "SendPasswordReset"), slog.String("userID", user.ID.String()))
	if !s.revealLinks {
		l.InfoContext(ctx, "Password reset issued")
		return nil
	}

	link, err := url.Parse(s.resetURL)
	if err != nil {
		return err
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()
	l.InfoContext(ctx, "Password reset issued", slog.String("reset_link", link.String()))
	return nil
}
