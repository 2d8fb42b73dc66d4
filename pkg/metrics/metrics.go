// Package metrics provides Prometheus metrics collection for the bridge.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lewisedginton/livechat-bridge/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "bridge"

// Outcome labels for webhook request counters.
const (
	OutcomeRelayed = "relayed"
	OutcomeIgnored = "ignored"
	OutcomeError   = "error"
)

// Close-reason labels for the rooms-closed counter.
const (
	CloseReasonInactivity = "inactivity"
	CloseReasonAdmin      = "admin"
)

// Drop-reason labels for the dropped-messages counter.
const (
	DropReasonDuplicate  = "duplicate"
	DropReasonLoop       = "loop"
	DropReasonSendFailed = "send_failed"
)

// Metrics provides Prometheus collectors for webhook and room lifecycle events.
type Metrics struct {
	reg *prometheus.Registry

	WebhookRequests      *prometheus.CounterVec
	MessagesRelayed      *prometheus.CounterVec
	RoomsOpened          prometheus.Counter
	RoomsClosed          *prometheus.CounterVec
	DroppedMessages      *prometheus.CounterVec
	OpenRooms            prometheus.Gauge
	PlatformCallDuration *prometheus.HistogramVec

	server *http.Server
	log    logger.Logger
}

// NewMetrics creates a Metrics instance with all bridge collectors registered.
func NewMetrics(l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	m.WebhookRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "webhook_requests_total",
		Help:      "Inbound webhook requests by direction and outcome",
	}, []string{"direction", "outcome"})

	m.MessagesRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "messages_relayed_total",
		Help:      "Messages relayed between the user channel and livechat",
	}, []string{"direction"})

	m.RoomsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "rooms_opened_total",
		Help:      "Livechat rooms created",
	})

	m.RoomsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "rooms_closed_total",
		Help:      "Livechat rooms closed by reason",
	}, []string{"reason"})

	m.DroppedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "dropped_messages_total",
		Help:      "Inbound messages dropped before relay by reason",
	}, []string{"reason"})

	m.OpenRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "open_rooms",
		Help:      "Livechat rooms currently open",
	})

	m.PlatformCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "platform_call_duration_seconds",
		Help:      "Duration of Rocket.Chat REST calls by operation",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1.0, 3.0, 5.0, 10.0},
	}, []string{"operation"})

	m.reg.MustRegister(
		m.WebhookRequests,
		m.MessagesRelayed,
		m.RoomsOpened,
		m.RoomsClosed,
		m.DroppedMessages,
		m.OpenRooms,
		m.PlatformCallDuration,
	)

	return m
}

// ObservePlatformCall records the duration of a single platform REST call.
func (m *Metrics) ObservePlatformCall(operation string, start time.Time) {
	m.PlatformCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts the metrics HTTP server on the specified port.
// It returns a channel delivering the server's terminal error.
func (m *Metrics) Listen(port int) chan error {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))

	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()
	return errChan
}

// Shutdown stops the metrics HTTP server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	m.log.Info("Stopping metrics listener")
	return m.server.Shutdown(ctx)
}
