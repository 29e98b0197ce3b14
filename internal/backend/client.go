// Package backend binds the shared services to one browser connection: it
// holds that connection's session token and current identity and exposes
// them through the interfaces the chat controllers consume.
package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/chat"
	"github.com/AnshRaj112/globalchat/internal/models"
	"github.com/AnshRaj112/globalchat/internal/services"
)

// AuthService is implemented by *services.AuthService.
type AuthService interface {
	Register(ctx context.Context, email, password string) (models.Account, string, error)
	Authenticate(ctx context.Context, email, password string) (models.Account, string, error)
	SignInFederated(ctx context.Context, ext models.ExternalAccount) (models.Account, string, error)
	Restore(ctx context.Context, token string) (models.Account, error)
	SignOut(ctx context.Context, token string) error
}

// Feed is implemented by *services.MessageFeed.
type Feed interface {
	Add(ctx context.Context, msg models.NewMessage) (models.Message, error)
	Delete(ctx context.Context, id, userID string) error
	Subscribe(ctx context.Context, handler func([]models.Change)) (func(), error)
}

// Services are shared by every connection.
type Services struct {
	Auth    AuthService
	Feed    Feed
	Objects services.ObjectStore
}

// Client is the platform client of one connection. It implements
// chat.Auth, chat.Messages and chat.Objects.
type Client struct {
	svc    Services
	logger zerolog.Logger

	mu        sync.Mutex
	token     string
	current   *models.Identity
	listeners map[int]func(*models.Identity)
	nextID    int
	onToken   func(string)

	// serializes listener delivery
	notifyMu sync.Mutex
}

// NewClient returns a signed-out client. onToken, if set, is called with
// the new session token after every sign-in and with "" after sign-out.
func NewClient(svc Services, onToken func(string), logger zerolog.Logger) *Client {
	return &Client{
		svc:       svc,
		logger:    logger,
		listeners: make(map[int]func(*models.Identity)),
		onToken:   onToken,
	}
}

var (
	_ chat.Auth     = (*Client)(nil)
	_ chat.Messages = (*Client)(nil)
	_ chat.Objects  = (*Client)(nil)
)

func (c *Client) Register(ctx context.Context, email, password string) (models.Identity, error) {
	acc, token, err := c.svc.Auth.Register(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	return c.signedIn(acc, token), nil
}

func (c *Client) Authenticate(ctx context.Context, email, password string) (models.Identity, error) {
	acc, token, err := c.svc.Auth.Authenticate(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	return c.signedIn(acc, token), nil
}

func (c *Client) SignInWithProvider(ctx context.Context, provider chat.Provider) (models.Identity, error) {
	ext, err := provider.Authorize(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	acc, token, err := c.svc.Auth.SignInFederated(ctx, ext)
	if err != nil {
		return models.Identity{}, err
	}
	return c.signedIn(acc, token), nil
}

// Restore signs in with a token issued to an earlier connection.
func (c *Client) Restore(ctx context.Context, token string) (models.Identity, error) {
	acc, err := c.svc.Auth.Restore(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}
	return c.signedIn(acc, token), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		if err := c.svc.Auth.SignOut(ctx, token); err != nil {
			return err
		}
	}
	c.set("", nil)
	return nil
}

func (c *Client) OnIdentityChanged(fn func(*models.Identity)) func() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.nextID++
	key := c.nextID
	c.listeners[key] = fn
	cur := c.current
	c.mu.Unlock()

	fn(cur)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, key)
	}
}

// Identity returns the signed-in identity, or nil.
func (c *Client) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Client) signedIn(acc models.Account, token string) models.Identity {
	id := acc.Identity()
	c.set(token, &id)
	return id
}

func (c *Client) set(token string, id *models.Identity) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.token = token
	c.current = id
	fns := make([]func(*models.Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	onToken := c.onToken
	c.mu.Unlock()

	if onToken != nil {
		onToken(token)
	}
	for _, fn := range fns {
		fn(id)
	}
}

func (c *Client) requireIdentity() (*models.Identity, error) {
	id := c.Identity()
	if id == nil {
		return nil, services.ErrNotSignedIn
	}
	return id, nil
}

// Add stores msg. Records may only be written under the caller's own id.
func (c *Client) Add(ctx context.Context, msg models.NewMessage) (string, error) {
	id, err := c.requireIdentity()
	if err != nil {
		return "", err
	}
	if msg.UserID != id.ID {
		return "", services.ErrPermissionDenied
	}
	stored, err := c.svc.Feed.Add(ctx, msg)
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (c *Client) Delete(ctx context.Context, messageID string) error {
	id, err := c.requireIdentity()
	if err != nil {
		return err
	}
	return c.svc.Feed.Delete(ctx, messageID, id.ID)
}

func (c *Client) Subscribe(ctx context.Context, handler func([]models.Change)) (chat.Subscription, error) {
	if _, err := c.requireIdentity(); err != nil {
		return nil, err
	}
	cancel, err := c.svc.Feed.Subscribe(ctx, handler)
	if err != nil {
		return nil, err
	}
	return subscription{cancel: cancel}, nil
}

type subscription struct {
	cancel func()
}

func (s subscription) Cancel() { s.cancel() }

// Upload stores file under path, which must sit in the caller's own
// "chats/<uid>/" folder.
func (c *Client) Upload(ctx context.Context, path string, file chat.File) (string, error) {
	id, err := c.requireIdentity()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(path, "chats/"+id.ID+"/") {
		return "", services.ErrPermissionDenied
	}
	return c.svc.Objects.Put(ctx, path, file.ContentType, file.Body)
}

func (c *Client) DownloadURL(ctx context.Context, ref string) (string, error) {
	return c.svc.Objects.URL(ctx, ref)
}
