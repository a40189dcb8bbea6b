package admin

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionCookieName = "calmcp_admin_session"
	sessionTTL        = 2 * time.Hour
)

// sessionClaims carries the admin session identity.
type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// SessionManager issues and validates signed session tokens for the
// admin interface, carried in an HTTP-only cookie.
type SessionManager struct {
	secretKey string
}

func NewSessionManager(secretKey string) *SessionManager {
	return &SessionManager{secretKey: secretKey}
}

// Issue creates a session token for the given admin username.
func (m *SessionManager) Issue(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
		Username: username,
	})

	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate checks a session token and returns the admin username.
func (m *SessionManager) Validate(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse session token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("session token is invalid")
	}
	if claims.Username == "" {
		return "", fmt.Errorf("session token carries no username")
	}
	return claims.Username, nil
}
