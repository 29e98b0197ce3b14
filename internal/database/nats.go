package database

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

var NatsConn *nats.Conn

// ConnectNats connects to NATS with unlimited reconnects.
func ConnectNats(url string) error {
	nc, err := nats.Connect(url,
		nats.Name("globalchat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return err
	}
	NatsConn = nc
	log.Info().Str("url", url).Msg("connected to NATS")
	return nil
}

// DisconnectNats drains and closes the NATS connection.
func DisconnectNats() {
	if NatsConn != nil {
		NatsConn.Drain()
	}
}
