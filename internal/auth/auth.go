// Package auth handles account registration, credential checks and the
// bearer tokens the HTTP layer authenticates with. The engine itself
// never sees passwords or tokens, only the Capability derived here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"yawmiya/internal/core"
	"yawmiya/internal/store"
)

// Claims is the identity a parsed token carries.
type Claims struct {
	UserID string
	Admin  bool
}

// Service issues and verifies credentials against the record store.
type Service struct {
	records  store.RecordStore
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an auth service. secret signs HS256 tokens.
func NewService(records store.RecordStore, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{records: records, secret: secret, tokenTTL: tokenTTL}
}

// Register creates an account. The first-ever registrant is granted admin;
// everyone after starts as a regular worker.
func (s *Service) Register(ctx context.Context, username, email, password string) (core.UserProfile, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := core.ValidateUsername(username); err != nil {
		return core.UserProfile{}, err
	}
	if err := core.ValidateEmail(email); err != nil {
		return core.UserProfile{}, err
	}
	if err := core.ValidatePassword(password); err != nil {
		return core.UserProfile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}

	count, err := s.records.CountUserProfiles(ctx)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("count users: %w", err)
	}

	user := core.UserProfile{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      count == 0,
		IsActive:     true,
	}
	return s.records.CreateUserProfile(ctx, user)
}

// Login checks credentials and returns the profile with a fresh token.
// Wrong email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (core.UserProfile, string, error) {
	user, err := s.records.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if core.IsNotFound(err) {
			return core.UserProfile{}, "", &core.PermissionError{Op: "invalid credentials"}
		}
		return core.UserProfile{}, "", err
	}
	if !user.IsActive {
		return core.UserProfile{}, "", &core.PermissionError{Op: "account is disabled"}
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return core.UserProfile{}, "", &core.PermissionError{Op: "invalid credentials"}
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return core.UserProfile{}, "", err
	}
	return user, token, nil
}

// CheckPassword verifies a plaintext password against the user's hash.
// Self-service password changes call this with the current password.
func (s *Service) CheckPassword(user core.UserProfile, password string) error {
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return &core.PermissionError{Op: "current password does not match"}
	}
	return nil
}

// HashPassword validates and hashes a new password.
func (s *Service) HashPassword(password string) ([]byte, error) {
	if err := core.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// IssueToken signs an HS256 token for the user.
func (s *Service) IssueToken(user core.UserProfile) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"admin": user.IsAdmin,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token and extracts its claims.
func (s *Service) ParseToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, &core.PermissionError{Op: "invalid token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, &core.PermissionError{Op: "invalid token claims"}
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Claims{}, &core.PermissionError{Op: "token missing subject"}
	}
	admin, _ := claims["admin"].(bool)
	return Claims{UserID: sub, Admin: admin}, nil
}
