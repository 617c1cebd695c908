package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/config"
	"github.com/estatedesk/backend/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Store is the slice of the storage client the auth service uses.
type Store interface {
	InsertUser(u *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	RevokeToken(token string) error
	IsTokenRevoked(token string) (bool, error)
	InsertPasswordReset(token, userID string, expiresAt time.Time) error
	ConsumePasswordReset(token string) (string, error)
	UpdatePassword(userID, passwordHash string) error
}

// Seeder provisions per-account defaults when a new user signs up. The
// pipeline and settings services both implement it.
type Seeder interface {
	SeedDefaults(userID string) error
}

type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	store    Store
	seeders  []Seeder
	secret   []byte
	tokenTTL time.Duration
}

func NewService(store Store, cfg config.AuthConfig, seeders ...Seeder) *Service {
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if ttl == 0 {
		ttl = 72 * time.Hour
	}
	return &Service{
		store:    store,
		seeders:  seeders,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: ttl,
	}
}

// SignUp registers an account and seeds its pipeline and settings
// defaults. The returned token logs the user straight in.
func (s *Service) SignUp(email, password, agencyName string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("a valid email is required")
	}
	if len(password) < 8 {
		return nil, "", fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		AgencyName:   agencyName,
		CreatedAt:    time.Now(),
	}
	if err := s.store.InsertUser(user); err != nil {
		return nil, "", err
	}

	for _, seeder := range s.seeders {
		if err := seeder.SeedDefaults(user.ID); err != nil {
			logger.Error("Failed to seed account defaults", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	logger.Info("User registered", zap.String("user_id", user.ID))
	return user, token, nil
}

// SignIn verifies credentials and issues a session token.
func (s *Service) SignIn(email, password string) (*models.User, string, error) {
	user, err := s.store.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// SignOut revokes the presented token. Verification failures are ignored
// so sign-out is always safe to call.
func (s *Service) SignOut(token string) error {
	return s.store.RevokeToken(token)
}

// VerifyToken validates a session token and returns its claims. Revoked
// tokens fail even before their expiry.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	revoked, err := s.store.IsTokenRevoked(tokenString)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser resolves the account behind a verified session.
func (s *Service) CurrentUser(userID string) (*models.User, error) {
	return s.store.GetUserByID(userID)
}

// RequestPasswordReset creates a single-use reset token valid for one
// hour. An unknown email returns no error so the endpoint does not leak
// which addresses exist.
func (s *Service) RequestPasswordReset(email string) (string, error) {
	user, err := s.store.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.store.InsertPasswordReset(token, user.ID, time.Now().Add(time.Hour)); err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword consumes a reset token and installs the new password.
func (s *Service) ResetPassword(token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	userID, err := s.store.ConsumePasswordReset(token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.UpdatePassword(userID, string(hash))
}

func (s *Service) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
