package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Identity is the caller as proven by a verified token.
type Identity struct {
	UserID string
	Role   string
}

// TokenVerifier validates HS256 tokens issued by the auth service.
type TokenVerifier struct {
	secretKey []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenVerifier{}
	}
	return &TokenVerifier{secretKey: []byte(secret)}
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func (v *TokenVerifier) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if v == nil || v.secretKey == nil {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	})

	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// Verify returns the identity carried by tokenStr. The user id is read from "id",
// falling back to "sub".
func (v *TokenVerifier) Verify(tokenStr string) (*Identity, error) {
	claims, err := v.ParseAndValidateToken(tokenStr, "")
	if err != nil {
		return nil, err
	}

	userID, _ := claims["id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	role, _ := claims["role"].(string)
	return &Identity{UserID: userID, Role: role}, nil
}

// Sign issues a token for id. Only tests and local tooling use it; production tokens
// come from the auth service.
func (v *TokenVerifier) Sign(userID, role string, ttl time.Duration) (string, error) {
	if v == nil || v.secretKey == nil {
		return "", fmt.Errorf("JWT secret not configured")
	}
	claims := jwt.MapClaims{
		"id":  userID,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secretKey)
}
