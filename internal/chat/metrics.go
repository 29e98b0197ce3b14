package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "globalchat_feed_subscriptions_active",
		Help: "Feed subscriptions currently open across sessions.",
	})
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "globalchat_messages_sent_total",
		Help: "Messages written by composers, by kind and result.",
	}, []string{"kind", "result"})
	retractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "globalchat_retractions_total",
		Help: "Retraction attempts by result.",
	}, []string{"result"})
)
