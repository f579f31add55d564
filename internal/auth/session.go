package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionTTL = 12 * time.Hour

var (
	// ErrMissingSigningSecret indicates the token manager was built without a secret.
	ErrMissingSigningSecret = errors.New("auth: signing secret required")
	// ErrMissingSubject indicates the claims did not carry a user identifier.
	ErrMissingSubject = errors.New("auth: subject required")
	// ErrMissingToken indicates an empty token string was supplied.
	ErrMissingToken = errors.New("auth: token required")
)

// SessionClaims carries the identity encoded in a Fountainhead session token.
type SessionClaims struct {
	UserID          string `json:"user_id"`
	UserDisplayName string `json:"user_display_name"`
	jwt.RegisteredClaims
}

// SessionManagerConfig configures the HS256 session token manager.
type SessionManagerConfig struct {
	SigningSecret []byte
	Issuer        string
	SessionTTL    time.Duration
	Clock         func() time.Time
}

// SessionManager issues and validates session JWTs for editor clients.
type SessionManager struct {
	signingSecret []byte
	issuer        string
	sessionTTL    time.Duration
	clock         func() time.Time
}

// NewSessionManager constructs a SessionManager with sane defaults.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionManager{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        strings.TrimSpace(cfg.Issuer),
		sessionTTL:    ttl,
		clock:         clock,
	}, nil
}

// IssueToken produces a signed session JWT for the given user identity.
func (m *SessionManager) IssueToken(userID, displayName string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrMissingSubject
	}

	now := m.clock().UTC()
	claims := SessionClaims{
		UserID:          userID,
		UserDisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingSecret)
}

// ValidateToken ensures the session JWT is well formed and returns its claims.
func (m *SessionManager) ValidateToken(tokenString string) (SessionClaims, error) {
	trimmed := strings.TrimSpace(tokenString)
	if trimmed == "" {
		return SessionClaims{}, ErrMissingToken
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(
		trimmed,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return m.signingSecret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		return SessionClaims{}, err
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return SessionClaims{}, ErrMissingSubject
	}
	return *claims, nil
}
