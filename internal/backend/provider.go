package backend

import (
	"context"

	"github.com/AnshRaj112/globalchat/internal/chat"
	"github.com/AnshRaj112/globalchat/internal/models"
)

// IDTokenVerifier is implemented by *services.GoogleVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (models.ExternalAccount, error)
}

// GoogleProvider completes a Google sign-in whose popup ran in the page and
// produced idToken.
type GoogleProvider struct {
	verifier IDTokenVerifier
	idToken  string
}

var _ chat.Provider = GoogleProvider{}

func NewGoogleProvider(verifier IDTokenVerifier, idToken string) GoogleProvider {
	return GoogleProvider{verifier: verifier, idToken: idToken}
}

func (GoogleProvider) Name() string { return "Google" }

func (p GoogleProvider) Authorize(ctx context.Context) (models.ExternalAccount, error) {
	return p.verifier.Verify(ctx, p.idToken)
}
