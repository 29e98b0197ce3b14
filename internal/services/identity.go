package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/globalchat/internal/models"
)

const pgUniqueViolation = "23505"

// IdentityStore keeps accounts in PostgreSQL (users + federated_identities).
type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// Create inserts a password account. Emails are unique.
func (s *IdentityStore) Create(ctx context.Context, email, passwordHash string) (models.Account, error) {
	acc := models.Account{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, Provider: "password"}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, acc.ID, email, passwordHash).Scan(&acc.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return models.Account{}, ErrEmailInUse
		}
		return models.Account{}, fmt.Errorf("insert user: %w", err)
	}
	return acc, nil
}

// ByEmail looks up an account by normalized email.
func (s *IdentityStore) ByEmail(ctx context.Context, email string) (models.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(email, ''), COALESCE(display_name, ''), COALESCE(password_hash, ''), created_at
		FROM users WHERE email = $1
	`, email))
}

// ByID looks up an account by id.
func (s *IdentityStore) ByID(ctx context.Context, id string) (models.Account, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.Account{}, ErrNotFound
	}
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(email, ''), COALESCE(display_name, ''), COALESCE(password_hash, ''), created_at
		FROM users WHERE id = $1
	`, parsed))
}

// UpsertFederated returns the account linked to ext, linking or creating one
// on first sign-in. An existing account with the same email is reused.
func (s *IdentityStore) UpsertFederated(ctx context.Context, ext models.ExternalAccount) (models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Account{}, err
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `
		SELECT user_id FROM federated_identities WHERE provider = $1 AND subject = $2
	`, ext.Provider, ext.Subject).Scan(&userID)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		userID, err = linkOrCreate(ctx, tx, ext)
		if err != nil {
			return models.Account{}, err
		}
	default:
		return models.Account{}, fmt.Errorf("lookup federated identity: %w", err)
	}

	if ext.Name != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET display_name = $1 WHERE id = $2 AND (display_name IS NULL OR display_name = '')
		`, ext.Name, userID); err != nil {
			return models.Account{}, fmt.Errorf("update display name: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Account{}, err
	}

	acc, err := s.ByID(ctx, userID)
	if err != nil {
		return models.Account{}, err
	}
	acc.Provider = ext.Provider
	return acc, nil
}

func linkOrCreate(ctx context.Context, tx *sql.Tx, ext models.ExternalAccount) (string, error) {
	var userID string
	var err error
	if ext.Email != "" {
		err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, ext.Email).Scan(&userID)
	} else {
		err = sql.ErrNoRows
	}
	if errors.Is(err, sql.ErrNoRows) {
		userID = uuid.NewString()
		var email sql.NullString
		if ext.Email != "" {
			email = sql.NullString{String: ext.Email, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, display_name) VALUES ($1, $2, $3)
		`, userID, email, ext.Name); err != nil {
			return "", fmt.Errorf("insert federated user: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("lookup user by email: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO federated_identities (provider, subject, user_id) VALUES ($1, $2, $3)
	`, ext.Provider, ext.Subject, userID); err != nil {
		return "", fmt.Errorf("link federated identity: %w", err)
	}
	return userID, nil
}

func (s *IdentityStore) scanOne(row *sql.Row) (models.Account, error) {
	var acc models.Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.DisplayName, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	if acc.PasswordHash != "" {
		acc.Provider = "password"
	}
	return acc, nil
}
