package types

import "github.com/golang-jwt/jwt/v5"

// Claims identifies the session user. Tenant and role are read from the
// users row on every request, never from the token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
