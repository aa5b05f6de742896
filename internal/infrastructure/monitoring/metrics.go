package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the core. Each Metrics value
// carries its own registry so tests can create them freely.
type Metrics struct {
	registry *prometheus.Registry

	// Action metrics
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec

	// Tree metrics
	RealmsLive      prometheus.Gauge
	RealmsCreated   prometheus.Counter
	RealmsDestroyed prometheus.Counter

	// Routing metrics
	RoutesTotal *prometheus.CounterVec

	// Resolution metrics
	ResolutionsTotal *prometheus.CounterVec

	// Event metrics
	EventsDispatched *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds current metric values for the JSON API.
type Snapshot struct {
	LiveRealms       int64 `json:"live_realms"`
	TotalActions     int64 `json:"total_actions"`
	FailedActions    int64 `json:"failed_actions"`
	TotalRoutes      int64 `json:"total_routes"`
	FailedRoutes     int64 `json:"failed_routes"`
	EventsDispatched int64 `json:"events_dispatched"`
	UptimeSeconds    int64 `json:"uptime_seconds"`
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "componentd_actions_total",
			Help: "Lifecycle actions by kind and result",
		}, []string{"action", "result"}),
		ActionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "componentd_action_duration_seconds",
			Help:    "Lifecycle action duration by kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		RealmsLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "componentd_realms_live",
			Help: "Realms currently attached to the instance tree",
		}),
		RealmsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "componentd_realms_created_total",
			Help: "Realms created since start",
		}),
		RealmsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "componentd_realms_destroyed_total",
			Help: "Realms destroyed since start",
		}),
		RoutesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "componentd_routes_total",
			Help: "Capability routing walks by source kind and result",
		}, []string{"kind", "result"}),
		ResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "componentd_resolutions_total",
			Help: "Declaration resolutions by result",
		}, []string{"result"}),
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "componentd_events_dispatched_total",
			Help: "Events dispatched by type",
		}, []string{"event"}),
		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "componentd_uptime_seconds",
			Help: "Seconds since the orchestrator started",
		}),
		startTime: time.Now(),
	}
}

// Registry exposes the metrics registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAction records one completed lifecycle action.
func (m *Metrics) RecordAction(action string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ActionsTotal.WithLabelValues(action, result).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalActions++
	if err != nil {
		m.snapshot.FailedActions++
	}
	m.mu.Unlock()
}

// RecordRoute records one capability routing walk.
func (m *Metrics) RecordRoute(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RoutesTotal.WithLabelValues(kind, result).Inc()

	m.mu.Lock()
	m.snapshot.TotalRoutes++
	if err != nil {
		m.snapshot.FailedRoutes++
	}
	m.mu.Unlock()
}

// RecordResolution records one resolver round-trip.
func (m *Metrics) RecordResolution(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ResolutionsTotal.WithLabelValues(result).Inc()
}

// RecordEvent records one dispatched event.
func (m *Metrics) RecordEvent(event string) {
	m.EventsDispatched.WithLabelValues(event).Inc()

	m.mu.Lock()
	m.snapshot.EventsDispatched++
	m.mu.Unlock()
}

// RealmCreated tracks a realm attached to the tree.
func (m *Metrics) RealmCreated() {
	m.RealmsLive.Inc()
	m.RealmsCreated.Inc()

	m.mu.Lock()
	m.snapshot.LiveRealms++
	m.mu.Unlock()
}

// RealmDestroyed tracks a realm detached from the tree.
func (m *Metrics) RealmDestroyed() {
	m.RealmsLive.Dec()
	m.RealmsDestroyed.Inc()

	m.mu.Lock()
	m.snapshot.LiveRealms--
	m.mu.Unlock()
}

// GetSnapshot returns current values for the JSON API.
func (m *Metrics) GetSnapshot() Snapshot {
	m.Uptime.Set(time.Since(m.startTime).Seconds())

	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.snapshot
	snap.UptimeSeconds = int64(time.Since(m.startTime).Seconds())
	return snap
}
