package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/AnshRaj112/globalchat/internal/models"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleVerifier turns a Google Identity Services ID token into an
// ExternalAccount. Tokens are checked locally against Google's signing keys.
type GoogleVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	return newGoogleVerifier(ctx, clientID, &http.Client{Timeout: 10 * time.Second})
}

// newGoogleVerifier fetches signing keys through client.
func newGoogleVerifier(ctx context.Context, clientID string, client *http.Client) (*GoogleVerifier, error) {
	validator, err := idtoken.NewValidator(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("google id token validator: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: validator}, nil
}

// ClientID is the OAuth client the page requests tokens for.
func (v *GoogleVerifier) ClientID() string { return v.clientID }

// Verify checks the signature, audience, expiry and issuer of idToken. The
// email is kept only when Google reports it verified.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (models.ExternalAccount, error) {
	if idToken == "" {
		return models.ExternalAccount{}, ErrInvalidIDToken
	}
	payload, err := v.validator.Validate(ctx, idToken, v.clientID)
	if err != nil {
		return models.ExternalAccount{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if payload.Subject == "" || !googleIssuers[payload.Issuer] {
		return models.ExternalAccount{}, ErrInvalidIDToken
	}

	ext := models.ExternalAccount{Provider: "Google", Subject: payload.Subject}
	if name, ok := payload.Claims["name"].(string); ok {
		ext.Name = name
	}
	if emailVerified(payload.Claims["email_verified"]) {
		ext.Email, _ = payload.Claims["email"].(string)
	}
	return ext, nil
}

// emailVerified accepts the boolean of ID tokens and the string form some
// Google endpoints return.
func emailVerified(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}
