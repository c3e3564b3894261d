package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/email"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/requestcontext"
)

// RequestPasswordReset issues a reset token for address. Unknown addresses
// succeed silently. The token is returned only when the service exposes
// reset tokens; otherwise the result is empty.
func (s *Service) RequestPasswordReset(ctx context.Context, address string) (string, error) {
	u, err := s.users.FindByEmail(ctx, email.Normalize(address))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logAudit(ctx, "password_reset_requested", "reason", "unknown_email")
			return "", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	token, err := newResetToken()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate reset token")
	}
	if err := s.resets.Save(ctx, hashToken(token), u.ID, s.resetTokenTTL); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reset token")
	}

	s.logAudit(ctx, "password_reset_requested", "user_id", u.ID)
	if !s.exposeResetToken {
		return "", nil
	}
	s.logger.InfoContext(ctx, "password reset token issued",
		"user_id", u.ID,
		"reset_token", token,
	)
	return token, nil
}

// ConfirmPasswordReset consumes token and sets a new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := s.resets.Consume(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return dErrors.New(dErrors.CodeInvalidInput, "reset token is invalid or expired")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify reset token")
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvalidInput, "reset token is invalid or expired")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = requestcontext.Now(ctx).UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}

	s.logAudit(ctx, "password_reset_completed", "user_id", u.ID)
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
