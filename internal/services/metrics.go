package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	changesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "globalchat_change_events_published_total",
		Help: "Change events published to the change bus, by type.",
	}, []string{"type"})

	objectsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "globalchat_objects_stored_total",
		Help: "Object uploads by backend and result.",
	}, []string{"backend", "result"})

	challengeVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "globalchat_challenge_verifications_total",
		Help: "Human-verification checks by result.",
	}, []string{"result"})
)
