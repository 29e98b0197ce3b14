package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// ChangesChannel is the Redis channel and NATS subject change batches are
// published on.
const ChangesChannel = "chat.room.changes"

// ChangeBus carries change batches between server instances. Received
// batches are dispatched to the bus Hub.
type ChangeBus interface {
	Publish(ctx context.Context, batch []models.Change) error
	Hub() *Hub
	Close() error
}

func encodeBatch(batch []models.Change) ([]byte, error) {
	for _, c := range batch {
		changesPublished.WithLabelValues(string(c.Type)).Inc()
	}
	return json.Marshal(batch)
}

func dispatchPayload(hub *Hub, logger zerolog.Logger, payload []byte) {
	var batch []models.Change
	if err := json.Unmarshal(payload, &batch); err != nil {
		logger.Warn().Err(err).Msg("dropping malformed change batch")
		return
	}
	hub.Dispatch(batch)
}

// RedisBus publishes over Redis pub/sub and keeps one shared subscriber
// per process, reconnecting with backoff.
type RedisBus struct {
	rdb    *redis.Client
	hub    *Hub
	logger zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisBus(rdb *redis.Client, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		rdb:    rdb,
		hub:    NewHub(),
		logger: logger.With().Str("component", "redis_bus").Logger(),
		done:   make(chan struct{}),
	}
}

// Start subscribes and returns once the subscription is confirmed.
func (b *RedisBus) Start(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, ChangesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}
	ctx, b.cancel = context.WithCancel(context.Background())
	go b.run(ctx, pubsub)
	b.logger.Info().Str("channel", ChangesChannel).Msg("change subscriber started")
	return nil
}

func (b *RedisBus) run(ctx context.Context, pubsub *redis.PubSub) {
	defer close(b.done)
	backoff := time.Second

	for {
		b.receive(ctx, pubsub, &backoff)
		pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		pubsub = b.rdb.Subscribe(ctx, ChangesChannel)
	}
}

func (b *RedisBus) receive(ctx context.Context, pubsub *redis.PubSub, backoff *time.Duration) {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warn().Err(err).Dur("retry_in", *backoff).Msg("change subscriber error")
			}
			return
		}
		*backoff = time.Second
		dispatchPayload(b.hub, b.logger, []byte(msg.Payload))
	}
}

func (b *RedisBus) Publish(ctx context.Context, batch []models.Change) error {
	data, err := encodeBatch(batch)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, ChangesChannel, data).Err()
}

func (b *RedisBus) Hub() *Hub { return b.hub }

func (b *RedisBus) Close() error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	b.hub.Close()
	return nil
}

// LocalBus dispatches straight to its hub. Used when a single instance
// serves every connection.
type LocalBus struct {
	hub *Hub
}

func NewLocalBus() *LocalBus {
	return &LocalBus{hub: NewHub()}
}

func (b *LocalBus) Publish(ctx context.Context, batch []models.Change) error {
	if _, err := encodeBatch(batch); err != nil {
		return err
	}
	b.hub.Dispatch(batch)
	return nil
}

func (b *LocalBus) Hub() *Hub { return b.hub }

func (b *LocalBus) Close() error {
	b.hub.Close()
	return nil
}
