package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "equipment_dash"

	outcomeApplied   = "applied"
	outcomeFailed    = "failed"
	outcomeDiscarded = "discarded"
	outcomeSucceeded = "succeeded"
	outcomeRejected  = "rejected"
)

var (
	fetchCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "fetch_cycles_total",
			Help:      "Fetch cycles by outcome (applied, failed, discarded)",
		},
		[]string{"outcome"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "fetch_duration_seconds",
			Help:      "Time until all three requests of a fetch cycle settled",
		},
	)

	equipmentRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "equipment_records",
			Help:      "Equipment records in the applied snapshot",
		},
	)

	uploadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "attempts_total",
			Help:      "Upload submissions by outcome (succeeded, failed, rejected)",
		},
		[]string{"outcome"},
	)
)
