package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// Session is the per-connection state shared by the controllers: who is
// signed in. It is reset on every sign-out.
type Session struct {
	mu       sync.RWMutex
	identity *models.Identity
}

// Identity returns the signed-in identity, if any.
func (s *Session) Identity() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return models.Identity{}, false
	}
	return *s.identity, true
}

func (s *Session) viewer() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// set stores id and reports the previous identity.
func (s *Session) set(id *models.Identity) *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.identity
	if id == nil {
		s.identity = nil
	} else {
		cp := *id
		s.identity = &cp
	}
	return prev
}

// SessionManager reacts to identity changes. It is the only component that
// starts or stops the feed subscription.
type SessionManager struct {
	mu      sync.Mutex
	ctx     context.Context
	session *Session
	feed    *FeedController
	view    View
	log     zerolog.Logger
}

func NewSessionManager(ctx context.Context, session *Session, feed *FeedController, view View, logger zerolog.Logger) *SessionManager {
	return &SessionManager{ctx: ctx, session: session, feed: feed, view: view, log: logger}
}

// HandleIdentityChange applies a signed-in (id != nil) or signed-out (id == nil)
// transition. Repeating the same transition is harmless.
func (m *SessionManager) HandleIdentityChange(id *models.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == nil {
		m.signedOut()
	} else {
		m.signedIn(*id)
	}
	m.view.ShowForm(FormLogin)
}

func (m *SessionManager) signedIn(id models.Identity) {
	prev := m.session.set(&id)
	if prev != nil && prev.ID != id.ID {
		// Ownership of every rendered message changes with the viewer.
		m.feed.StopListening()
		m.feed.Clear()
	}

	m.view.SetUserLabel(UserLabel(id))
	m.view.ShowChat()
	m.view.SetAuthMessage("")

	if err := m.feed.StartListening(m.ctx); err != nil {
		m.log.Error().Err(err).Str("user_id", id.ID).Msg("start message listener failed")
	}
}

func (m *SessionManager) signedOut() {
	m.session.set(nil)
	m.view.SetUserLabel("")
	m.view.ShowAuth()
	m.view.SetAuthMessage(PromptSignIn)

	m.feed.StopListening()
	m.feed.Clear()
}
