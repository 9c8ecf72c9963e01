package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"holdings-server/internal/shared/errors"

	"github.com/golang-jwt/jwt/v5"
)

const characterSubjectPrefix = "CHARACTER:EVE:"

// ParseCharacterToken reads the character out of an EVE SSO access token.
// The token comes straight from the SSO token endpoint over TLS, so its
// signature is not checked here; ESI verifies it on every call.
func ParseCharacterToken(accessToken string) (*Character, *EveClaims, error) {
	claims := &EveClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, nil, errors.WrapValidation("malformed access token", err)
	}

	id, err := CharacterIDFromSubject(claims.Subject)
	if err != nil {
		return nil, nil, err
	}

	return &Character{ID: id, Name: claims.Name}, claims, nil
}

// CharacterIDFromSubject parses subjects of the form CHARACTER:EVE:<id>
func CharacterIDFromSubject(subject string) (int64, error) {
	if !strings.HasPrefix(subject, characterSubjectPrefix) {
		return 0, errors.Validationf("token subject %q is not a character", subject)
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(subject, characterSubjectPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validationf("token subject %q has no character id", subject)
	}
	return id, nil
}

func GenerateSessionJWT(secret, sessionID string, characterID int64, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("cannot generate session token: JWT secret is not configured")
	}

	now := time.Now()
	claims := SessionClaims{
		SessionID:   sessionID,
		CharacterID: characterID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%s%d", characterSubjectPrefix, characterID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateSessionJWT(secret, tokenString string) (*SessionClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("cannot validate session token: JWT secret is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
