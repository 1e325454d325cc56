package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 60 * time.Minute
	TokenTypeBearer = "bearer"
)

type TokenOutput struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Principal is the authenticated caller of a backend request.
type Principal struct {
	Username string
}

// AuthService checks the single configured credential pair and issues and
// verifies HS256 bearer tokens for it.
type AuthService struct {
	settings SettingsSource
	ttl      time.Duration
	now      func() time.Time
}

func NewAuthService(s SettingsSource, ttl time.Duration) (*AuthService, error) {
	if s == nil {
		return nil, errors.New("usecase: settings source must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{settings: s, ttl: ttl, now: time.Now}, nil
}

// IssueToken verifies username and password and returns a signed token.
func (s *AuthService) IssueToken(ctx context.Context, username, password string) (TokenOutput, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return TokenOutput{}, newError(ErrorUnauthorized, "bad_credentials", nil)
	}
	cfg, err := s.settings.Settings(ctx)
	if err != nil {
		return TokenOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		return TokenOutput{}, newError(ErrorUnauthorized, "bad_credentials", nil)
	}

	now := s.now()
	exp := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return TokenOutput{}, newError(ErrorInternal, "token_sign_error", err)
	}
	return TokenOutput{AccessToken: signed, TokenType: TokenTypeBearer, ExpiresAt: exp}, nil
}

// Authenticate validates a bearer token. The subject must be the configured
// username.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, newError(ErrorUnauthorized, "missing_token", nil)
	}
	cfg, err := s.settings.Settings(ctx)
	if err != nil {
		return Principal{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Principal{}, newError(ErrorUnauthorized, "invalid_token", err)
	}
	if claims.Subject == "" || claims.Subject != cfg.Username {
		return Principal{}, newError(ErrorUnauthorized, "unknown_subject", fmt.Errorf("subject %q", claims.Subject))
	}
	return Principal{Username: claims.Subject}, nil
}
