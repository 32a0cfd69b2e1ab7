package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ChatTurns         *prometheus.CounterVec
	Commands          *prometheus.CounterVec
	MemoriesSaved     *prometheus.CounterVec
	GenerationLatency *prometheus.HistogramVec
	ProviderErrors    *prometheus.CounterVec
	StoreErrors       *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	ActiveStreams     prometheus.Gauge
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	Turns *LatencyWindow
}

// NewMetrics registers on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registers on reg, which lets tests use a fresh registry.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChatTurns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by persona and outcome.",
		}, []string{"persona", "outcome"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_commands_total",
			Help:      "Slash commands by persona and command.",
		}, []string{"persona", "command"}),
		MemoriesSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_saved_total",
			Help:      "Memories saved by persona and origin (command or directive).",
		}, []string{"persona", "origin"}),
		GenerationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_ms",
			Help:      "Generation call latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}, []string{"persona"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Generation backend errors by persona and code.",
		}, []string{"persona", "code"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store writes that failed after a reply was produced.",
		}, []string{"op"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_chat_streams",
			Help:      "Open streaming chat websockets.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Turns: NewLatencyWindow(256),
	}
}

func (m *Metrics) ObserveTurn(persona, outcome string) {
	if m == nil {
		return
	}
	m.ChatTurns.WithLabelValues(persona, outcome).Inc()
}

func (m *Metrics) ObserveCommand(persona, command string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(persona, command).Inc()
}

func (m *Metrics) ObserveMemorySaved(persona, origin string) {
	if m == nil {
		return
	}
	m.MemoriesSaved.WithLabelValues(persona, origin).Inc()
}

func (m *Metrics) ObserveGeneration(persona string, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationLatency.WithLabelValues(persona).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveProviderError(persona, code string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(persona, code).Inc()
}

func (m *Metrics) ObserveStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.Turns.Observe(stage, float64(d.Microseconds())/1000)
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
