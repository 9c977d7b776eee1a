package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vault_rebalancer",
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Total analysis runs by outcome.",
	}, []string{"status"})

	SuggestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vault_rebalancer",
		Subsystem: "engine",
		Name:      "suggestions_total",
		Help:      "Total rebalance actions suggested.",
	})

	RouteLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vault_rebalancer",
		Subsystem: "routes",
		Name:      "lookups_total",
		Help:      "Total route quote lookups by outcome.",
	}, []string{"status"})

	ReserveMicro = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vault_rebalancer",
		Subsystem: "vault",
		Name:      "reserve_micro",
		Help:      "Last observed total reserve per chain, in micro-units.",
	}, []string{"chain"})

	ConfidenceScore = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vault_rebalancer",
		Subsystem: "engine",
		Name:      "confidence_score",
		Help:      "Confidence score of the most recent analysis.",
	})

	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vault_rebalancer",
		Subsystem: "executor",
		Name:      "executions_total",
		Help:      "Total rebalance executions by outcome.",
	}, []string{"status"})
)
