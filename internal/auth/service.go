package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidUserID is returned when a user id doesn't meet constraints.
var ErrInvalidUserID = errors.New("invalid user id")

const maxUserIDLen = 64

// Service issues and validates session tokens. A session token is the only
// identity a chat session has; user ids inside it are informational.
type Service struct {
	jwtConfig *JWTConfig
	newID     func() string
	now       func() time.Time
}

// NewService creates a new token service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{
		jwtConfig: jwtConfig,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// NewSession starts a fresh session and returns its token.
func (s *Service) NewSession(userID string) (token, sessionID string, err error) {
	return s.issue(s.newID(), userID)
}

// Resume trades a previously issued token, expired or not, for a fresh one on the
// same session. An empty userID keeps the one carried by the old token.
func (s *Service) Resume(previous, userID string) (token, sessionID string, err error) {
	claims, err := ParseForResume(s.jwtConfig, previous, s.now())
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(userID) == "" {
		userID = claims.UserID
	}
	return s.issue(claims.SessionID, userID)
}

func (s *Service) issue(sessionID, userID string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	if len(userID) > maxUserIDLen || strings.ContainsAny(userID, "\x00\n\r") {
		return "", "", ErrInvalidUserID
	}

	token, err := GenerateToken(s.jwtConfig, sessionID, userID)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	return token, sessionID, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
