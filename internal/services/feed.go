package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// MessageRepository is the persistence MessageFeed writes through.
// *MessageStore implements it.
type MessageRepository interface {
	Insert(ctx context.Context, msg models.NewMessage) (models.Message, error)
	List(ctx context.Context) ([]models.Message, error)
	DeleteOwned(ctx context.Context, id, userID string) error
}

// MessageFeed is the message collection as clients see it: writes are
// persisted then published as change batches, and subscribers get the
// ordered snapshot followed by live changes.
type MessageFeed struct {
	repo   MessageRepository
	cache  *RecentCache
	bus    ChangeBus
	logger zerolog.Logger
}

// NewMessageFeed wires the feed. cache may be nil.
func NewMessageFeed(repo MessageRepository, cache *RecentCache, bus ChangeBus, logger zerolog.Logger) *MessageFeed {
	return &MessageFeed{
		repo:   repo,
		cache:  cache,
		bus:    bus,
		logger: logger.With().Str("component", "message_feed").Logger(),
	}
}

// Add persists msg and publishes an added change.
func (f *MessageFeed) Add(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	stored, err := f.repo.Insert(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}
	f.published(ctx, models.Change{Type: models.ChangeAdded, Message: stored})
	return stored, nil
}

// Delete removes id if userID authored it and publishes a removed change.
func (f *MessageFeed) Delete(ctx context.Context, id, userID string) error {
	if err := f.repo.DeleteOwned(ctx, id, userID); err != nil {
		return err
	}
	f.published(ctx, models.Change{Type: models.ChangeRemoved, Message: models.Message{ID: id}})
	return nil
}

func (f *MessageFeed) published(ctx context.Context, change models.Change) {
	if f.cache != nil {
		f.cache.Invalidate(ctx)
	}
	if err := f.bus.Publish(ctx, []models.Change{change}); err != nil {
		f.logger.Error().Err(err).Str("message_id", change.Message.ID).Msg("publish change failed")
	}
}

// Snapshot returns the whole collection, oldest first.
func (f *MessageFeed) Snapshot(ctx context.Context) ([]models.Message, error) {
	if f.cache == nil {
		return f.repo.List(ctx)
	}
	if msgs, ok := f.cache.Get(ctx); ok {
		return msgs, nil
	}
	version, err := f.cache.Version(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Msg("recent cache unavailable")
		return f.repo.List(ctx)
	}
	msgs, err := f.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	f.cache.Warm(ctx, version, msgs)
	return msgs, nil
}

// Subscribe delivers the current snapshot as one batch of added changes,
// then every later batch, until cancel is called. Live changes are
// captured before the snapshot is read, so a message may arrive twice
// across that seam; consumers de-duplicate by id.
func (f *MessageFeed) Subscribe(ctx context.Context, handler func([]models.Change)) (cancel func(), err error) {
	sub := f.bus.Hub().subscribe(handler, true)
	msgs, err := f.Snapshot(ctx)
	if err != nil {
		sub.stop()
		return nil, err
	}
	batch := make([]models.Change, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, models.Change{Type: models.ChangeAdded, Message: m})
	}
	sub.start(batch)
	return sub.stop, nil
}
