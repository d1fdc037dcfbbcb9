package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret  = errors.New("session token secret is empty")
	ErrInvalidToken = errors.New("invalid session token")
)

const claimSession = "session_id"

// SessionToken signs and verifies session scoped JWT tokens.
type SessionToken struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewSessionToken builds a token helper using the provided secret.
func NewSessionToken(secretKey string) *SessionToken {
	return &SessionToken{
		secretKey: []byte(secretKey),
		ttl:       24 * time.Hour,
		now:       time.Now,
	}
}

// WithTTL allows customising the expiration duration.
func (st *SessionToken) WithTTL(ttl time.Duration) *SessionToken {
	if ttl > 0 {
		st.ttl = ttl
	}
	return st
}

func (st *SessionToken) TTL() time.Duration {
	return st.ttl
}

// Issue returns a token bound to sessionID.
func (st *SessionToken) Issue(sessionID string) (string, error) {
	if st == nil || len(st.secretKey) == 0 {
		return "", ErrEmptySecret
	}

	now := st.now()
	claims := jwt.MapClaims{
		claimSession: sessionID,
		"exp":        now.Add(st.ttl).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(st.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the token and returns the session it was issued for.
func (st *SessionToken) Verify(tokenString string) (string, error) {
	if st == nil || len(st.secretKey) == 0 {
		return "", ErrEmptySecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return st.secretKey, nil
	}, jwt.WithTimeFunc(st.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sessionID, ok := claims[claimSession].(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("%w: missing %s claim", ErrInvalidToken, claimSession)
	}
	return sessionID, nil
}

// Authorize checks that tokenString was issued for sessionID.
func (st *SessionToken) Authorize(tokenString, sessionID string) error {
	got, err := st.Verify(tokenString)
	if err != nil {
		return err
	}
	if got != sessionID {
		return fmt.Errorf("%w: token bound to another session", ErrInvalidToken)
	}
	return nil
}
