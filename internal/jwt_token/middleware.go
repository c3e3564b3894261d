package jwttoken

import (
	authmw "churnboard/pkg/platform/middleware/auth"
)

// ValidateToken lets the Issuer back authmw.RequireAuth.
func (i *Issuer) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	claims, err := i.ParseAccessToken(raw)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{UserID: claims.UserID, JTI: claims.ID}, nil
}
