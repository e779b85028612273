// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the orchestrator core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the full set of orchestrator metric families.
type Metrics struct {
	MainQueueDepth   *prometheus.GaugeVec
	WindowQueueDepth *prometheus.GaugeVec

	LimiterInUse     prometheus.Gauge
	LimiterWaiting   prometheus.Gauge
	MonitorBudgetInUse *prometheus.GaugeVec

	ReloadCacheHits       prometheus.Counter
	ReloadCacheMisses     prometheus.Counter
	ReloadCacheInvalidations prometheus.Counter

	AgentSessionsCreated  *prometheus.CounterVec
	AgentSessionsDisposed *prometheus.CounterVec
	AgentSessionsActive   prometheus.Gauge

	BroadcastDelivered prometheus.Counter
	BroadcastDropped   prometheus.Counter

	TaskHandleDuration *prometheus.HistogramVec
}

// NewMetrics registers every metric family against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MainQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "deskmux", Subsystem: "main_queue", Name: "depth",
			Help: "Current number of queued main tasks.",
		}, []string{"monitor_id"}),
		WindowQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "deskmux", Subsystem: "window_queue", Name: "depth",
			Help: "Current number of queued window tasks.",
		}, []string{"window_id"}),
		LimiterInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "deskmux", Subsystem: "agent_limiter", Name: "in_use",
			Help: "Slots currently held out of AgentLimiter capacity.",
		}),
		LimiterWaiting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "deskmux", Subsystem: "agent_limiter", Name: "waiting",
			Help: "Callers currently blocked in Limiter.Acquire.",
		}),
		MonitorBudgetInUse: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "deskmux", Subsystem: "monitor_budget", Name: "in_use",
			Help: "In-flight action slots held per monitor.",
		}, []string{"monitor_id"}),
		ReloadCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "deskmux", Subsystem: "reload_cache", Name: "hits_total",
			Help: "Exact-match cache hits.",
		}),
		ReloadCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "deskmux", Subsystem: "reload_cache", Name: "misses_total",
			Help: "Lookups with no exact or fuzzy match.",
		}),
		ReloadCacheInvalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "deskmux", Subsystem: "reload_cache", Name: "invalidations_total",
			Help: "Entries invalidated due to a missing required window.",
		}),
		AgentSessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskmux", Subsystem: "agent_sessions", Name: "created_total",
			Help: "AgentSessions created, by role prefix.",
		}, []string{"role_prefix"}),
		AgentSessionsDisposed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskmux", Subsystem: "agent_sessions", Name: "disposed_total",
			Help: "AgentSessions disposed, by role prefix.",
		}, []string{"role_prefix"}),
		AgentSessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "deskmux", Subsystem: "agent_sessions", Name: "active",
			Help: "Non-disposed AgentSessions.",
		}),
		BroadcastDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "deskmux", Subsystem: "broadcast", Name: "delivered_total",
			Help: "Events successfully handed to a sink.",
		}),
		BroadcastDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "deskmux", Subsystem: "broadcast", Name: "dropped_total",
			Help: "Events dropped because a sink was full or closed.",
		}),
		TaskHandleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deskmux", Subsystem: "task", Name: "handle_duration_seconds",
			Help:    "Wall-clock duration of ContextPool.HandleTask.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}
