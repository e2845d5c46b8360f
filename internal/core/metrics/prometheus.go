package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements MetricsCollector using Prometheus metrics.
// Each collector owns its registry so several can coexist in one process.
type PrometheusCollector struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// HTTP Metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket Metrics
	websocketConnections prometheus.Gauge
	websocketMessages    *prometheus.CounterVec

	// Device Metrics
	pollsTotal      *prometheus.CounterVec
	pollDuration    *prometheus.HistogramVec
	deviceAvailable *prometheus.GaugeVec
	activeFixedIDs  *prometheus.GaugeVec

	// Service Metrics
	serviceCalls *prometheus.CounterVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector
func NewPrometheusCollector(config *MetricsConfig) *PrometheusCollector {
	if config == nil {
		config = &MetricsConfig{
			Enabled: true,
			Prefix:  "tvoverlay",
		}
	}

	prefix := config.Prefix
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	collector := &PrometheusCollector{
		config:   config,
		registry: registry,
	}

	collector.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	collector.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	collector.websocketConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	collector.websocketMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)

	collector.pollsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_polls_total",
			Help: "Total number of device config polls",
		},
		[]string{"device", "success"},
	)

	collector.pollDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_poll_duration_seconds",
			Help:    "Device config poll duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"device"},
	)

	collector.deviceAvailable = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_device_available",
			Help: "Whether the last poll of a device succeeded (1) or not (0)",
		},
		[]string{"device"},
	)

	collector.activeFixedIDs = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_active_fixed_notifications",
			Help: "Number of fixed notification ids tracked per device",
		},
		[]string{"device"},
	)

	collector.serviceCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_service_calls_total",
			Help: "Total number of notification service calls by outcome",
		},
		[]string{"service", "result"},
	)

	return collector
}

// Registry exposes the underlying registry for gathering
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the collected metrics in the Prometheus text format
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (p *PrometheusCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if !p.config.Enabled {
		return
	}

	p.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebSocketConnection records WebSocket connection metrics
func (p *PrometheusCollector) RecordWebSocketConnection(action string) {
	if !p.config.Enabled {
		return
	}

	switch action {
	case "connect":
		p.websocketConnections.Inc()
	case "disconnect":
		p.websocketConnections.Dec()
	case "message_sent":
		p.websocketMessages.WithLabelValues("outbound").Inc()
	case "message_received":
		p.websocketMessages.WithLabelValues("inbound").Inc()
	}
}

// RecordPoll records the outcome of one coordinator refresh
func (p *PrometheusCollector) RecordPoll(device string, success bool, duration time.Duration) {
	if !p.config.Enabled {
		return
	}

	p.pollsTotal.WithLabelValues(device, strconv.FormatBool(success)).Inc()
	p.pollDuration.WithLabelValues(device).Observe(duration.Seconds())
}

// SetDeviceAvailable records device availability
func (p *PrometheusCollector) SetDeviceAvailable(device string, available bool) {
	if !p.config.Enabled {
		return
	}

	value := 0.0
	if available {
		value = 1
	}
	p.deviceAvailable.WithLabelValues(device).Set(value)
}

// RecordServiceCall records a notify, notify_fixed or clear_fixed call
func (p *PrometheusCollector) RecordServiceCall(service, result string) {
	if !p.config.Enabled {
		return
	}

	p.serviceCalls.WithLabelValues(service, result).Inc()
}

// SetActiveNotificationIDs records the size of a device's fixed id set
func (p *PrometheusCollector) SetActiveNotificationIDs(device string, count int) {
	if !p.config.Enabled {
		return
	}

	p.activeFixedIDs.WithLabelValues(device).Set(float64(count))
}

// RemoveDevice drops the per-device series of a removed registration
func (p *PrometheusCollector) RemoveDevice(device string) {
	p.deviceAvailable.DeleteLabelValues(device)
	p.activeFixedIDs.DeleteLabelValues(device)
	p.pollDuration.DeleteLabelValues(device)
	p.pollsTotal.DeleteLabelValues(device, "true")
	p.pollsTotal.DeleteLabelValues(device, "false")
}
