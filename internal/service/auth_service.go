package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"user-service/internal/event"
	"user-service/internal/model"
)

const LoginSuccessMessage = "Token generated successfully!"

// dummyPassword is hashed once at start-up so that logins for unknown users
// still pay for a full hash comparison.
const dummyPassword = "user-service-timing-equaliser"

type TokenIssuer interface {
	Issue(subject string, userID string) (string, error)
	Verify(token string) (model.TokenClaims, error)
}

type AuthService struct {
	users       *UserService
	hasher      PasswordHasher
	tokens      TokenIssuer
	events      event.Publisher
	dummyDigest string
}

func NewAuthService(users *UserService, hasher PasswordHasher, tokens TokenIssuer) (*AuthService, error) {
	digest, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}

	return &AuthService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		events:      event.Discard{},
		dummyDigest: digest,
	}, nil
}

// WithEvents publishes login outcomes to p.
func (s *AuthService) WithEvents(p event.Publisher) *AuthService {
	if p != nil {
		s.events = p
	}
	return s
}

// Login verifies the credentials and issues a token for the username. Unknown
// users, password-less accounts and wrong passwords all fail with
// model.ErrAuthenticationFailed.
func (s *AuthService) Login(ctx context.Context, request model.LoginRequest) (model.LoginResponse, error) {
	user, err := s.users.FindByUsername(ctx, request.Username)
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		s.hasher.Verify(request.Password, s.dummyDigest)
		slog.Debug("login rejected", "reason", "unknown user")
		s.loginFailed(request.Username)
		return model.LoginResponse{}, model.ErrAuthenticationFailed
	case err != nil:
		return model.LoginResponse{}, err
	}

	if !user.HasPassword() {
		s.hasher.Verify(request.Password, s.dummyDigest)
		slog.Debug("login rejected", "reason", "no password set", "user_id", user.ID)
		s.loginFailed(request.Username)
		return model.LoginResponse{}, model.ErrAuthenticationFailed
	}

	if !s.hasher.Verify(request.Password, user.PasswordHash) {
		slog.Debug("login rejected", "reason", "password mismatch", "user_id", user.ID)
		s.loginFailed(request.Username)
		return model.LoginResponse{}, model.ErrAuthenticationFailed
	}

	token, err := s.tokens.Issue(user.Username, user.ID)
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}

	s.events.Publish(event.New(event.TypeLoginSuccess, user.ID, map[string]string{"username": user.Username}))
	return model.LoginResponse{Token: token, Message: LoginSuccessMessage}, nil
}

func (s *AuthService) loginFailed(username string) {
	s.events.Publish(event.New(event.TypeLoginFailure, "", map[string]string{"username": username}))
}

// ValidateToken verifies a bearer token. Every failure is reported as
// model.ErrUnauthorized; the specific reason is only logged.
func (s *AuthService) ValidateToken(token string) (model.TokenClaims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		slog.Warn("token rejected", "reason", err.Error())
		return model.TokenClaims{}, model.ErrUnauthorized
	}
	return claims, nil
}

// CurrentUser resolves the user a verified token was issued to. The account
// is looked up by the immutable user id; the username subject must still
// belong to it.
func (s *AuthService) CurrentUser(ctx context.Context, claims model.TokenClaims) (model.UserView, error) {
	if claims.UserID == "" {
		return model.UserView{}, model.ErrUnauthorized
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserView{}, model.ErrUnauthorized
	}
	if err != nil {
		return model.UserView{}, err
	}

	if !strings.EqualFold(user.Username, claims.Subject) {
		slog.Warn("token rejected", "reason", "subject no longer matches account", "user_id", user.ID)
		return model.UserView{}, model.ErrUnauthorized
	}
	return user, nil
}
