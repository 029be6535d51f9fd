package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts transition attempts by action and result (applied, rejected, failed).
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edms_transitions_total",
		Help: "Workflow transition attempts by action and result",
	}, []string{"action", "result"})

	// TransitionRefusals counts refusals by error kind.
	TransitionRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edms_transition_refusals_total",
		Help: "Refused workflow transitions by error kind",
	}, []string{"kind"})

	TransitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edms_transition_duration_seconds",
		Help:    "Time spent applying a workflow transition",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// EventsDelivered counts emitter deliveries by sink and result (delivered, dropped, failed).
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edms_events_total",
		Help: "Transition events handed to sinks",
	}, []string{"sink", "result"})

	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edms_event_queue_depth",
		Help: "Transition records waiting for delivery",
	})

	// SweepPromotions counts documents moved by the scheduled sweeps.
	SweepPromotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edms_sweep_promotions_total",
		Help: "Documents promoted by scheduled sweeps",
	}, []string{"sweep", "result"})

	CapabilityCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edms_capability_cache_lookups_total",
		Help: "Capability cache lookups by outcome",
	}, []string{"outcome"})
)
