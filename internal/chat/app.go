package chat

import (
	"context"

	"github.com/rs/zerolog"
)

// Options wires one chat session to its platform client and screen.
type Options struct {
	Auth      Auth
	Messages  Messages
	Objects   Objects
	Challenge Challenge // nil disables human verification
	View      View
	Logger    zerolog.Logger

	MaxUploadBytes int64
}

// App is one browser session: the controllers sharing a Session.
type App struct {
	Session    *Session
	Manager    *SessionManager
	Auth       *AuthFlows
	Feed       *FeedController
	Composer   *Composer
	Retraction *Retraction

	unsubscribe func()
}

// New builds the controllers and subscribes the session manager to identity
// changes. ctx bounds the feed subscription.
func New(ctx context.Context, opts Options) *App {
	session := &Session{}
	feed := NewFeedController(opts.Messages, session, opts.View, opts.Logger)
	composer := NewComposer(opts.Messages, opts.Objects, session, opts.View, opts.Logger)
	composer.MaxUploadBytes = opts.MaxUploadBytes

	app := &App{
		Session:    session,
		Manager:    NewSessionManager(ctx, session, feed, opts.View, opts.Logger),
		Auth:       NewAuthFlows(opts.Auth, opts.Challenge, opts.View, opts.Logger),
		Feed:       feed,
		Composer:   composer,
		Retraction: NewRetraction(opts.Messages, opts.View, opts.Logger),
	}
	app.unsubscribe = opts.Auth.OnIdentityChanged(app.Manager.HandleIdentityChange)
	return app
}

// Close stops listening for identity changes and cancels the feed.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.Feed.StopListening()
}
