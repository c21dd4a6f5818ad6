// Package auth issues and verifies the admin capability tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"wifi-admission-backend/config"
	"wifi-admission-backend/internal/store"
)

const RoleAdmin = "admin"

var (
	// ErrUnauthorized is returned by privileged operations called without a
	// valid admin capability.
	ErrUnauthorized = errors.New("admin capability required")
	// ErrInvalidCredentials is returned by Login for an unknown user or a bad password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Admin is the capability privileged operations take as an argument.
// The zero value grants nothing.
type Admin struct {
	Username string
	Role     string
}

// Require returns ErrUnauthorized unless a carries the admin role.
func Require(a Admin) error {
	if a.Username == "" || a.Role != RoleAdmin {
		return ErrUnauthorized
	}
	return nil
}

// Claims is the JWT payload.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	admins store.AdminStore
	secret []byte
	ttl    time.Duration
}

func NewService(admins store.AdminStore, cfg config.AuthConfig) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		admins: admins,
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
	}
}

// Login checks the password against the stored bcrypt hash and returns a
// signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, Admin, error) {
	user, err := s.admins.GetAdmin(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", Admin{}, ErrInvalidCredentials
		}
		return "", Admin{}, fmt.Errorf("failed to load admin %q: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", Admin{}, ErrInvalidCredentials
	}

	admin := Admin{Username: user.Username, Role: user.Role}
	token, err := s.Issue(admin)
	if err != nil {
		return "", Admin{}, err
	}
	return token, admin, nil
}

// Issue signs a token for admin.
func (s *Service) Issue(admin Admin) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: admin.Username,
		Role:     admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the capability it grants.
func (s *Service) Verify(tokenString string) (Admin, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Admin{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	admin := Admin{Username: claims.Username, Role: claims.Role}
	if err := Require(admin); err != nil {
		return Admin{}, err
	}
	return admin, nil
}

// EnsureDefaultAdmin creates the bootstrap account if it does not exist yet.
// An existing account keeps its password.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}
	return s.admins.EnsureAdmin(ctx, username, string(hash))
}
