package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	replayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boq_replay_duration_seconds",
		Help:    "Time spent replaying the approved ledger over a contract tree",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	addendumTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boq_addendum_transitions_total",
		Help: "Addendum lifecycle transitions by target status",
	}, []string{"transition"})

	vigentCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boq_vigent_cache_requests_total",
		Help: "Vigent state cache lookups by result",
	}, []string{"result"})
)
