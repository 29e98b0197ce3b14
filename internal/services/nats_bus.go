package services

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
)

const natsFlushTimeout = 5 * time.Second

// NatsBus publishes change batches on a NATS subject.
type NatsBus struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	hub    *Hub
	logger zerolog.Logger
}

func NewNatsBus(nc *nats.Conn, logger zerolog.Logger) *NatsBus {
	return &NatsBus{
		nc:     nc,
		hub:    NewHub(),
		logger: logger.With().Str("component", "nats_bus").Logger(),
	}
}

// Start subscribes and flushes so the subscription is registered on the
// server before returning.
func (b *NatsBus) Start(ctx context.Context) error {
	sub, err := b.nc.Subscribe(ChangesChannel, func(m *nats.Msg) {
		dispatchPayload(b.hub, b.logger, m.Data)
	})
	if err != nil {
		return err
	}
	// FlushWithContext refuses a context without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		sub.Unsubscribe()
		return err
	}
	b.sub = sub
	b.logger.Info().Str("subject", ChangesChannel).Msg("change subscriber started")
	return nil
}

func (b *NatsBus) Publish(ctx context.Context, batch []models.Change) error {
	data, err := encodeBatch(batch)
	if err != nil {
		return err
	}
	return b.nc.Publish(ChangesChannel, data)
}

func (b *NatsBus) Hub() *Hub { return b.hub }

func (b *NatsBus) Close() error {
	var err error
	if b.sub != nil {
		err = b.sub.Unsubscribe()
	}
	b.hub.Close()
	return err
}
