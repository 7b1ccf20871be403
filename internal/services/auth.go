package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/rs/zerolog/log"
)

// Credentials is where AuthService stores the session token.
// session.CredentialCache implements it.
type Credentials interface {
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// AuthService performs signup, login and logout.
//
// A failed signup or login leaves the cached token untouched.
type AuthService struct {
	api   API
	creds Credentials
}

// NewAuthService creates a new auth service.
func NewAuthService(api API, creds Credentials) *AuthService {
	return &AuthService{api: api, creds: creds}
}

// SignUp registers a new account and stores the returned token.
func (s *AuthService) SignUp(ctx context.Context, email, password, passwordConfirm string) (*models.Session, error) {
	req := models.SignUpRequest{
		Email:           strings.TrimSpace(email),
		Password:        password,
		PasswordConfirm: passwordConfirm,
	}
	return s.authenticate(ctx, pathSignUp, req)
}

// Login authenticates an existing account and stores the returned token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	req := models.LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	return s.authenticate(ctx, pathLogin, req)
}

func (s *AuthService) authenticate(ctx context.Context, path string, body interface{}) (*models.Session, error) {
	var res models.AuthResponse
	if err := s.api.Do(ctx, http.MethodPost, path, body, &res); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Authentication failed")
		return nil, err
	}

	if strings.TrimSpace(res.Token) == "" {
		return nil, &apperrors.UnknownError{Err: errors.New("authentication response carried no token")}
	}

	if err := s.creds.Set(ctx, res.Token); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	log.Info().Str("path", path).Msg("Session established")
	return &models.Session{Token: res.Token}, nil
}

// Logout clears the local session. It does not contact the backend and is
// safe to call when no one is logged in.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	log.Info().Msg("Session cleared")
	return nil
}
