package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// FeedController keeps the rendered feed in sync with the message change
// stream. State machine: Idle -> Subscribed -> Idle.
type FeedController struct {
	messages Messages
	session  *Session
	view     View
	log      zerolog.Logger

	mu     sync.Mutex
	active bool
	gen    uint64
	sub    Subscription

	// rendered is an ordered map from message id to its rendering.
	rendered map[string]Rendered
	order    []string
}

func NewFeedController(messages Messages, session *Session, view View, logger zerolog.Logger) *FeedController {
	return &FeedController{
		messages: messages,
		session:  session,
		view:     view,
		log:      logger,
		rendered: make(map[string]Rendered),
	}
}

// StartListening opens the ordered change subscription. No-op when already subscribed.
func (f *FeedController) StartListening(ctx context.Context) error {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return nil
	}
	f.active = true
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	// Subscribe may deliver the first batch before it returns, so the lock
	// is not held across the call.
	sub, err := f.messages.Subscribe(ctx, func(changes []models.Change) {
		f.apply(gen, changes)
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		if f.gen == gen {
			f.active = false
		}
		return fmt.Errorf("subscribe to messages: %w", err)
	}
	if !f.active || f.gen != gen {
		// Stopped while subscribing.
		sub.Cancel()
		return nil
	}
	f.sub = sub
	subscriptionsActive.Inc()
	return nil
}

// StopListening cancels the subscription. No-op when idle.
func (f *FeedController) StopListening() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()

	if sub != nil {
		sub.Cancel()
		subscriptionsActive.Dec()
	}
}

// Listening reports whether a subscription is active.
func (f *FeedController) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Clear drops every rendered message.
func (f *FeedController) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rendered = make(map[string]Rendered)
	f.order = nil
	f.view.ClearMessages()
}

// Rendered returns the rendered messages in display order.
func (f *FeedController) Rendered() []Rendered {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Rendered, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.rendered[id])
	}
	return out
}

func (f *FeedController) apply(gen uint64, changes []models.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active || f.gen != gen {
		return
	}

	viewer := f.session.viewer()
	for _, ch := range changes {
		id := ch.Message.ID
		switch ch.Type {
		case models.ChangeAdded:
			// The stream may redeliver an addition after a reconnect.
			if _, ok := f.rendered[id]; ok {
				continue
			}
			r := Render(ch.Message, viewer)
			f.rendered[id] = r
			f.order = append(f.order, id)
			f.view.AppendMessage(r)
		case models.ChangeRemoved:
			if _, ok := f.rendered[id]; !ok {
				continue
			}
			delete(f.rendered, id)
			f.removeFromOrder(id)
			f.view.RemoveMessage(id)
		default:
			f.log.Warn().Str("type", string(ch.Type)).Msg("ignoring unknown change type")
		}
	}
	f.view.ScrollToEnd()
}

func (f *FeedController) removeFromOrder(id string) {
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}
