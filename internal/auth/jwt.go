/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role values carried in tokens.
const (
	RoleAdmin   = "admin"
	RoleProfile = "profile"
)

// Claims extends standard registered claims with role and owning profile.
// ProfileID is empty for admin tokens.
type Claims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	ProfileID string `json:"profile_id,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants platform-wide access.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanAccess reports whether the token may act on the given profile.
func (c *Claims) CanAccess(profileID string) bool {
	return c.IsAdmin() || c.ProfileID == profileID
}

// Issue creates a signed HS256 token string.
func Issue(secret []byte, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Subject:   claims.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a token string. Only HS256 is accepted.
func Parse(secret []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
