package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
	"github.com/AnshRaj112/globalchat/pkg/utils"
)

// AccountStore is the persistence AuthService needs. *IdentityStore
// implements it.
type AccountStore interface {
	Create(ctx context.Context, email, passwordHash string) (models.Account, error)
	ByEmail(ctx context.Context, email string) (models.Account, error)
	ByID(ctx context.Context, id string) (models.Account, error)
	UpsertFederated(ctx context.Context, ext models.ExternalAccount) (models.Account, error)
}

// TokenStore issues and resolves sign-in tokens. *SessionStore implements it.
type TokenStore interface {
	Create(ctx context.Context, userID string) (string, error)
	Resolve(ctx context.Context, token string) (string, bool, error)
	Refresh(ctx context.Context, token string) error
	Invalidate(ctx context.Context, token string) error
}

// AuthService is the identity service: account creation, password and
// federated sign-in, and token-based session restore.
type AuthService struct {
	accounts AccountStore
	tokens   TokenStore
	hash     func(string) (string, error)
	logger   zerolog.Logger
}

func NewAuthService(accounts AccountStore, tokens TokenStore, logger zerolog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		hash:     utils.HashPassword,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password string) (models.Account, string, error) {
	email = utils.NormalizeEmail(email)
	if verr := utils.ValidateSignUp(email, password); verr != nil {
		return models.Account{}, "", verr
	}
	hash, err := s.hash(password)
	if err != nil {
		return models.Account{}, "", err
	}
	acc, err := s.accounts.Create(ctx, email, hash)
	if err != nil {
		return models.Account{}, "", err
	}
	token, err := s.tokens.Create(ctx, acc.ID)
	if err != nil {
		return models.Account{}, "", err
	}
	s.logger.Info().Str("user_id", acc.ID).Msg("account registered")
	return acc, token, nil
}

// Authenticate checks email/password. Unknown emails and wrong passwords
// yield the same ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (models.Account, string, error) {
	acc, err := s.accounts.ByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return models.Account{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, "", err
	}
	if acc.PasswordHash == "" {
		return models.Account{}, "", ErrInvalidCredentials
	}
	ok, err := utils.VerifyPassword(password, acc.PasswordHash)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", acc.ID).Msg("stored password hash unreadable")
		return models.Account{}, "", ErrInvalidCredentials
	}
	if !ok {
		return models.Account{}, "", ErrInvalidCredentials
	}
	token, err := s.tokens.Create(ctx, acc.ID)
	if err != nil {
		return models.Account{}, "", err
	}
	return acc, token, nil
}

// SignInFederated signs in the account linked to a verified external
// assertion, creating it on first use.
func (s *AuthService) SignInFederated(ctx context.Context, ext models.ExternalAccount) (models.Account, string, error) {
	ext.Email = utils.NormalizeEmail(ext.Email)
	acc, err := s.accounts.UpsertFederated(ctx, ext)
	if err != nil {
		return models.Account{}, "", err
	}
	token, err := s.tokens.Create(ctx, acc.ID)
	if err != nil {
		return models.Account{}, "", err
	}
	s.logger.Info().Str("user_id", acc.ID).Str("provider", ext.Provider).Msg("federated sign-in")
	return acc, token, nil
}

// Restore resolves a previously issued token and extends its lifetime.
func (s *AuthService) Restore(ctx context.Context, token string) (models.Account, error) {
	userID, ok, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		return models.Account{}, ErrSessionNotFound
	}
	acc, err := s.accounts.ByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		_ = s.tokens.Invalidate(ctx, token)
		return models.Account{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	if err := s.tokens.Refresh(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("session refresh failed")
	}
	return acc, nil
}

// UserID resolves token without loading the account.
func (s *AuthService) UserID(ctx context.Context, token string) (string, error) {
	userID, ok, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotSignedIn
	}
	return userID, nil
}

// SignOut invalidates token.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	return s.tokens.Invalidate(ctx, token)
}
