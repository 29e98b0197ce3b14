package backend

import (
	"context"
	"errors"
	"sync"

	"github.com/AnshRaj112/globalchat/internal/chat"
	"github.com/AnshRaj112/globalchat/internal/services"
)

// ChallengeVerifier is implemented by *services.RecaptchaVerifier.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
	SiteKey() string
}

// Challenge adapts a server-side verifier to chat.Challenge. The page posts
// the solved token with the sign-up request; render and reset are relayed
// back to the page.
type Challenge struct {
	verifier ChallengeVerifier
	remoteIP string
	onRender func(siteKey string)
	onReset  func()

	mu    sync.Mutex
	token string
}

var _ chat.Challenge = (*Challenge)(nil)

func NewChallenge(verifier ChallengeVerifier, remoteIP string, onRender func(string), onReset func()) *Challenge {
	return &Challenge{verifier: verifier, remoteIP: remoteIP, onRender: onRender, onReset: onReset}
}

// SetToken records the token the page produced.
func (c *Challenge) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Challenge) Render(ctx context.Context) error {
	if c.onRender != nil {
		c.onRender(c.verifier.SiteKey())
	}
	return nil
}

func (c *Challenge) Verify(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	err := c.verifier.Verify(ctx, token, c.remoteIP)
	if errors.Is(err, services.ErrChallengeExpired) {
		return chat.ErrChallengeExpired
	}
	return err
}

// Reset drops the token; a solved challenge is single-use.
func (c *Challenge) Reset() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	if c.onReset != nil {
		c.onReset()
	}
}
