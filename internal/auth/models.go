package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Character is the EVE character a session acts for
type Character struct {
	ID   int64  `json:"character_id"`
	Name string `json:"character_name"`
}

// EveClaims are the claims of an EVE SSO v2 access token
type EveClaims struct {
	Name   string           `json:"name"`
	Owner  string           `json:"owner"`
	Scopes jwt.ClaimStrings `json:"scp"`
	jwt.RegisteredClaims
}

// SessionClaims are carried in the session cookie
type SessionClaims struct {
	SessionID   string `json:"sid"`
	CharacterID int64  `json:"character_id"`
	jwt.RegisteredClaims
}
