package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"loan-predictor/internal/events"
	"loan-predictor/internal/httpx"
	"loan-predictor/internal/models"
	"loan-predictor/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields      = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAdmin       = errors.New("invalid admin credentials")
)

// Login methods recorded with each login event.
const (
	MethodPassword = "password"
	MethodAdmin    = "admin"
	MethodGoogle   = "google"
	MethodGitHub   = "github"
)

type Service struct {
	store  *storage.Store
	tokens *Tokens
	events events.Publisher
	log    *zap.Logger
	cost   int
}

func NewService(store *storage.Store, tokens *Tokens, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, events: pub, log: log, cost: bcrypt.DefaultCost}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkCredentials(email, password string) error {
	err := httpx.Validate(CredentialsRequest{Email: email, Password: password})
	switch {
	case err == nil:
		return nil
	case httpx.FailedOn(err, "required"):
		return ErrMissingFields
	case httpx.FailedOn(err, "email"):
		return ErrInvalidEmail
	}
	return err
}

func (s *Service) Signup(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if err := checkCredentials(email, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.CreateUser(ctx, &models.User{Email: email, PasswordHash: string(hash)}); err != nil {
		return err
	}

	s.log.Info("user signed up", zap.String("email", email))
	s.publish(ctx, events.RKUserSignedUp, events.UserSignedUp{Email: email, Method: MethodPassword, At: time.Now().UTC()})
	return nil
}

// Login checks a password and returns a fresh access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.startSession(ctx, u, MethodPassword)
}

// AdminLogin only admits admins. A plaintext password left over from older
// deployments is accepted once and replaced by its bcrypt hash.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidAdmin
	}
	if err != nil {
		return "", err
	}
	if !u.IsAdmin || password == "" {
		return "", ErrInvalidAdmin
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		if u.PasswordHash != password {
			return "", ErrInvalidAdmin
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		if err := s.store.UpdatePasswordHash(ctx, email, string(hash)); err != nil {
			return "", err
		}
		s.log.Warn("upgraded plaintext admin password", zap.String("email", email))
	}
	return s.startSession(ctx, u, MethodAdmin)
}

// LoginExternal signs in an identity already verified by an OAuth provider,
// creating the account on first use.
func (s *Service) LoginExternal(ctx context.Context, email, method string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", ErrInvalidEmail
	}

	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		u = &models.User{Email: email}
		switch err := s.store.CreateUser(ctx, u); {
		case err == nil:
			s.log.Info("user created from oauth login", zap.String("email", email), zap.String("method", method))
			s.publish(ctx, events.RKUserSignedUp, events.UserSignedUp{Email: email, Method: method, At: time.Now().UTC()})
		case errors.Is(err, storage.ErrUserExists):
			// lost a race with a concurrent first login
			if u, err = s.store.UserByEmail(ctx, email); err != nil {
				return "", err
			}
		default:
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return s.startSession(ctx, u, method)
}

func (s *Service) startSession(ctx context.Context, u *models.User, method string) (string, error) {
	if err := s.store.RecordLogin(ctx, u.Email, method); err != nil {
		return "", fmt.Errorf("record login: %w", err)
	}
	token, err := s.tokens.Issue(u.Email, u.IsAdmin)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.log.Debug("login", zap.String("email", u.Email), zap.String("method", method))
	return token, nil
}

func (s *Service) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

// EnsureAdmin creates the given admin account when no admin exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	ok, err := s.store.HasAdmin(ctx)
	if err != nil || ok {
		return false, err
	}
	if err := s.CreateAdmin(ctx, email, password); err != nil {
		return false, err
	}
	return true, nil
}

// CreateAdmin creates an admin, or promotes an existing account and resets its password.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if err := checkCredentials(email, password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.CreateUser(ctx, &models.User{Email: email, PasswordHash: string(hash), IsAdmin: true})
	if errors.Is(err, storage.ErrUserExists) {
		if err := s.store.UpdatePasswordHash(ctx, email, string(hash)); err != nil {
			return err
		}
		return s.store.SetAdmin(ctx, email, true)
	}
	return err
}

func (s *Service) publish(ctx context.Context, key string, v any) {
	if err := s.events.PublishJSON(ctx, key, v); err != nil {
		s.log.Warn("publish event failed", zap.String("key", key), zap.Error(err))
	}
}
