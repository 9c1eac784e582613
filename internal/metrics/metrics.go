package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution and binary retrieval counters, partitioned by device generation.

var (
	ResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollout",
		Subsystem: "resolver",
		Name:      "decisions_total",
		Help:      "Total update decisions by outcome (offered, none)",
	}, []string{"generation", "outcome"})

	BinaryRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollout",
		Subsystem: "resolver",
		Name:      "binary_refusals_total",
		Help:      "Total binary requests refused before any fetch",
	}, []string{"generation", "reason"})

	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollout",
		Subsystem: "fetcher",
		Name:      "fetches_total",
		Help:      "Total firmware fetches by result (ok, error)",
	}, []string{"kind", "result"})

	FetchBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollout",
		Subsystem: "fetcher",
		Name:      "bytes_total",
		Help:      "Total firmware bytes fetched",
	})
)
