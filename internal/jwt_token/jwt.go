// Package jwttoken issues and verifies the HS256 access tokens handed out at
// login.
package jwttoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
)

var (
	errExpired = dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	errInvalid = dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	errClaims  = dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
)

// Claims carries the user id twice: as the registered subject and as
// user_id, which clients read without knowing JWT conventions.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access tokens with one shared secret.
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

func NewIssuer(signingKey, issuer, audience string) *Issuer {
	i := &Issuer{
		key:      []byte(signingKey),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	return i
}

// GenerateAccessToken signs a token for userID valid for ttl.
func (i *Issuer) GenerateAccessToken(userID id.UserID, ttl time.Duration) (string, error) {
	now := i.now()
	subject := userID.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies raw and returns its claims. Every failure is
// CodeUnauthorized; expiry is reported separately so clients know to log in
// again.
func (i *Issuer) ParseAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errExpired
	case err != nil:
		return nil, errInvalid
	}

	if claims.Subject != claims.UserID {
		return nil, errClaims
	}
	if _, err := id.ParseUserID(claims.UserID); err != nil {
		return nil, errClaims
	}
	return claims, nil
}
