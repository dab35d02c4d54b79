package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"rumble-backup/pkg/models"
)

// ErrInvalidCredentials is returned on a failed login attempt.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Service authenticates the single admin account configured in the config
// file and issues JWTs for it. There is no user database; this is a
// self-hosted tool with one operator.
type Service struct {
	username     string
	passwordHash string
	secret       []byte
	tokenExpiry  time.Duration
}

// NewService creates an auth service from the configured account.
func NewService(username, passwordHash, jwtSecret string, tokenExpiryHours int) (*Service, error) {
	if username == "" || passwordHash == "" {
		return nil, errors.New("auth enabled but username or password_hash not configured")
	}
	if jwtSecret == "" {
		return nil, errors.New("auth enabled but jwt_secret not configured")
	}
	if tokenExpiryHours <= 0 {
		tokenExpiryHours = 24
	}

	return &Service{
		username:     username,
		passwordHash: passwordHash,
		secret:       []byte(jwtSecret),
		tokenExpiry:  time.Duration(tokenExpiryHours) * time.Hour,
	}, nil
}

// Authenticate checks credentials and returns a signed token.
func (s *Service) Authenticate(username, password string) (string, error) {
	if username != s.username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  s.username,
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning the account it names.
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub != s.username {
		return nil, errors.New("token subject unknown")
	}
	role, _ := claims["role"].(string)

	return &models.User{Username: sub, Role: role}, nil
}

// HashPassword produces a bcrypt hash suitable for the password_hash config
// key. Used by the CLI helper.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
