package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the watch agent.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	errorsTotal          prometheus.Counter
	navigationsTotal     prometheus.Counter
	commitsTotal         prometheus.Counter
	staleDiscardedTotal  prometheus.Counter
	sourceFailuresTotal  prometheus.Counter
	engineErrorsTotal    prometheus.Counter
	expectedRacesTotal   *prometheus.CounterVec
	renditionSwitchTotal prometheus.Counter
	autoplayFiredTotal   *prometheus.CounterVec
	playing              prometheus.Gauge
}

// New creates and registers Prometheus metrics for the watch agent.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_requests_total",
			Help: "Total number of control API requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_errors_total",
			Help: "Total number of control API responses with error status (4xx or 5xx)",
		}),
		navigationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_navigations_total",
			Help: "Navigations that started a new video transition",
		}),
		commitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_commits_total",
			Help: "Pending video bundles committed to the visible state",
		}),
		staleDiscardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_stale_results_discarded_total",
			Help: "Async results dropped because a newer navigation superseded them",
		}),
		sourceFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_source_resolution_failures_total",
			Help: "Identities that could not be turned into a playable manifest",
		}),
		engineErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_engine_errors_total",
			Help: "Errors reported by the media engine after a source was loaded",
		}),
		expectedRacesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "player_expected_races_total",
			Help: "Play attempts rejected for expected reasons (aborted, not allowed)",
		}, []string{"reason"}),
		renditionSwitchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_rendition_switches_total",
			Help: "Manual quality switches",
		}),
		autoplayFiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoplay_fired_total",
			Help: "Autoplay countdowns that fired, by trigger",
		}, []string{"trigger"}),
		playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_playing",
			Help: "1 while the player is playing, 0 otherwise",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.navigationsTotal,
		m.commitsTotal,
		m.staleDiscardedTotal,
		m.sourceFailuresTotal,
		m.engineErrorsTotal,
		m.expectedRacesTotal,
		m.renditionSwitchTotal,
		m.autoplayFiredTotal,
		m.playing,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

func (m *Metrics) IncNavigations() {
	if m == nil {
		return
	}
	m.navigationsTotal.Inc()
}

func (m *Metrics) IncCommits() {
	if m == nil {
		return
	}
	m.commitsTotal.Inc()
}

func (m *Metrics) IncStaleDiscarded() {
	if m == nil {
		return
	}
	m.staleDiscardedTotal.Inc()
}

func (m *Metrics) IncSourceFailures() {
	if m == nil {
		return
	}
	m.sourceFailuresTotal.Inc()
}

func (m *Metrics) IncEngineErrors() {
	if m == nil {
		return
	}
	m.engineErrorsTotal.Inc()
}

// IncExpectedRace counts a swallowed play rejection; reason is "aborted" or
// "not_allowed".
func (m *Metrics) IncExpectedRace(reason string) {
	if m == nil {
		return
	}
	m.expectedRacesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncRenditionSwitches() {
	if m == nil {
		return
	}
	m.renditionSwitchTotal.Inc()
}

// IncAutoplayFired counts a countdown fire; trigger is "timer" or "manual".
func (m *Metrics) IncAutoplayFired(trigger string) {
	if m == nil {
		return
	}
	m.autoplayFiredTotal.WithLabelValues(trigger).Inc()
}

// SetPlaying sets the playing gauge.
func (m *Metrics) SetPlaying(playing bool) {
	if m == nil {
		return
	}
	if playing {
		m.playing.Set(1)
		return
	}
	m.playing.Set(0)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
