package service

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"towdispatch/internal/domain"
	"towdispatch/internal/repository"
)

// AuthService authenticates drivers by email and 4-digit PIN and issues
// session tokens. Sessions expire: the token carries an explicit exp
// claim instead of living forever in ambient client storage.
type AuthService struct {
	driverRepo repository.DriverRepository
	secret     []byte
	sessionTTL time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(driverRepo repository.DriverRepository, secret string, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		driverRepo: driverRepo,
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
	}
}

// Login verifies the PIN for an active driver and returns a signed
// session token. The same error is returned for unknown email and wrong
// PIN so the response does not reveal which part failed.
func (s *AuthService) Login(ctx context.Context, email, pin string) (string, *domain.Driver, error) {
	if email == "" || pin == "" {
		return "", nil, ErrInvalidCredentials
	}

	driver, err := s.driverRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !hmac.Equal([]byte(driver.PinCode), []byte(pin)) {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   driver.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}

	return signed, driver, nil
}

// Verify parses a session token and returns the driver ID it was issued
// to. Expired or tampered tokens fail.
func (s *AuthService) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidCredentials
	}

	return subject, nil
}
