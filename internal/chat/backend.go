package chat

import (
	"context"
	"io"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// Auth is the identity half of the platform client bound to one browser session.
type Auth interface {
	Register(ctx context.Context, email, password string) (models.Identity, error)
	Authenticate(ctx context.Context, email, password string) (models.Identity, error)
	SignInWithProvider(ctx context.Context, provider Provider) (models.Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChanged registers fn and immediately reports the current state.
	// fn receives nil when nobody is signed in.
	OnIdentityChanged(fn func(*models.Identity)) (unsubscribe func())
}

// Provider runs a federated sign-in flow and reports the external account.
type Provider interface {
	Name() string
	Authorize(ctx context.Context) (models.ExternalAccount, error)
}

// Messages is the shared room's document collection.
type Messages interface {
	// Add appends a record; the backend assigns its id and timestamp.
	Add(ctx context.Context, msg models.NewMessage) (string, error)
	Delete(ctx context.Context, id string) error
	// Subscribe delivers change batches ordered by timestamp, starting with
	// every existing record as "added".
	Subscribe(ctx context.Context, handler func([]models.Change)) (Subscription, error)
}

// Subscription is a live handle on a change stream.
type Subscription interface {
	Cancel()
}

// Objects is blob storage with durable retrieval URLs.
type Objects interface {
	Upload(ctx context.Context, path string, file File) (string, error)
	DownloadURL(ctx context.Context, ref string) (string, error)
}

// Challenge is an optional human-verification step in front of sign-up.
type Challenge interface {
	Render(ctx context.Context) error
	Verify(ctx context.Context) error
	Reset()
}

// File is a user-selected upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
