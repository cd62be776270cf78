package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultResumeWindow is used when JWTConfig.ResumeWindow is zero.
const DefaultResumeWindow = 30 * 24 * time.Hour

// ErrResumeRejected is returned when a token cannot be traded for a fresh one.
var ErrResumeRejected = errors.New("token cannot resume a session")

// Claims bind a bearer token to one chat session. UserID is informational and
// only used to attribute reactions.
type Claims struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds signing settings. ResumeWindow bounds how long after issue an
// expired token may still be exchanged for a new one.
type JWTConfig struct {
	Secret       []byte
	Issuer       string
	Audience     string
	TTL          time.Duration
	ResumeWindow time.Duration
}

// GenerateToken signs an HS256 token for sessionID.
func GenerateToken(cfg *JWTConfig, sessionID, userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// ValidateToken accepts a correctly signed, unexpired token of this issuer.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	return parseToken(cfg, tokenString)
}

// ParseForResume verifies signature, issuer and audience but tolerates expiry.
// The token must have been issued no longer than the resume window before now.
func ParseForResume(cfg *JWTConfig, tokenString string, now time.Time) (*Claims, error) {
	claims, err := parseToken(cfg, tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResumeRejected, err)
	}

	window := cfg.ResumeWindow
	if window <= 0 {
		window = DefaultResumeWindow
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: no issue time", ErrResumeRejected)
	}
	issued := claims.IssuedAt.Time
	if issued.After(now.Add(time.Minute)) || now.Sub(issued) > window {
		return nil, fmt.Errorf("%w: issued outside the resume window", ErrResumeRejected)
	}
	return claims, nil
}

func parseToken(cfg *JWTConfig, tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.SessionID == "" {
		return nil, errors.New("token has no session")
	}
	// checked by hand so resume parsing, which skips claim validation, still enforces them
	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, errors.New("invalid issuer")
	}
	if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
		return nil, errors.New("invalid audience")
	}
	return claims, nil
}
