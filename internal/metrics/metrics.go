// Package metrics provides Prometheus metrics for rchat.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "rchat"
)

// Metrics contains all Prometheus metrics for the relay and client engine.
// No metric ever carries a chat code, derived key, room ID, username, or
// message content as a label or value: see spec.md §7.
type Metrics struct {
	// Room/participant metrics (relay).
	RoomsActive         prometheus.Gauge
	RoomsCreatedTotal   prometheus.Counter
	RoomsDestroyedTotal prometheus.Counter
	ParticipantsActive  prometheus.Gauge
	JoinsTotal          prometheus.Counter
	LeavesTotal         *prometheus.CounterVec

	// Message fan-out metrics (relay).
	MessagesReceived  prometheus.Counter
	MessagesFannedOut prometheus.Counter
	FanOutDropped     *prometheus.CounterVec

	// Frame/connection metrics (relay + client engine).
	FramesTotal       *prometheus.CounterVec
	FramesRejected    *prometheus.CounterVec
	ConnectionsActive prometheus.Gauge

	// CryptoCore metrics (client engine).
	KDFLatency           prometheus.Histogram
	AEADFailures         *prometheus.CounterVec
	SignatureFailures    prometheus.Counter
	CommitmentMismatches prometheus.Counter
	StaleMessages        prometheus.Counter
	ReplayRejections     prometheus.Counter

	// Retry/reconnect metrics (client engine).
	SendRetries       prometheus.Counter
	SendFailuresTotal prometheus.Counter
	ReconnectAttempts prometheus.Counter

	// Ambient.
	PanicsRecovered *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered
// against the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms currently held open by the relay",
		}),
		RoomsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total rooms created",
		}),
		RoomsDestroyedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_destroyed_total",
			Help:      "Total rooms destroyed after their last participant left",
		}),
		ParticipantsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants_active",
			Help:      "Number of participants currently connected across all rooms",
		}),
		JoinsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Total successful room joins, including room creation",
		}),
		LeavesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaves_total",
			Help:      "Total room departures by reason",
		}, []string{"reason"}),
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total SendMessage requests accepted by the relay",
		}),
		MessagesFannedOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_fanned_out_total",
			Help:      "Total MessageReceived frames delivered to recipients",
		}),
		FanOutDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_dropped_total",
			Help:      "Fan-out deliveries dropped by reason",
		}, []string{"reason"}),
		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames processed by direction",
		}, []string{"direction"}),
		FramesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Frames rejected by reason",
		}, []string{"reason"}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of live relay connections",
		}),
		KDFLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kdf_latency_seconds",
			Help:      "Histogram of Argon2id derivation latency",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		AEADFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aead_failures_total",
			Help:      "AEAD seal/open failures by operation",
		}, []string{"op"}),
		SignatureFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_failures_total",
			Help:      "Ed25519 signature verification failures",
		}),
		CommitmentMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commitment_mismatches_total",
			Help:      "BLAKE3 commitment verification failures",
		}),
		StaleMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_messages_total",
			Help:      "Messages dropped for failing the timestamp freshness window",
		}),
		ReplayRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_rejections_total",
			Help:      "Messages dropped for non-monotonic sequence numbers",
		}),
		SendRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_retries_total",
			Help:      "Outbound message resend attempts",
		}),
		SendFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Outbound messages that exhausted their retry budget",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Client engine reconnect attempts",
		}),
		PanicsRecovered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_recovered_total",
			Help:      "Panics recovered by goroutine name",
		}, []string{"goroutine"}),
	}

	return m
}

// RecordRoomCreated records a new room.
func (m *Metrics) RecordRoomCreated() {
	m.RoomsActive.Inc()
	m.RoomsCreatedTotal.Inc()
}

// RecordRoomDestroyed records a room being torn down.
func (m *Metrics) RecordRoomDestroyed() {
	m.RoomsActive.Dec()
	m.RoomsDestroyedTotal.Inc()
}

// RecordJoin records a participant joining a room.
func (m *Metrics) RecordJoin() {
	m.ParticipantsActive.Inc()
	m.JoinsTotal.Inc()
}

// RecordLeave records a participant leaving a room for the given reason.
func (m *Metrics) RecordLeave(reason string) {
	m.ParticipantsActive.Dec()
	m.LeavesTotal.WithLabelValues(reason).Inc()
}

// RecordMessageReceived records a SendMessage request accepted by the relay.
func (m *Metrics) RecordMessageReceived() {
	m.MessagesReceived.Inc()
}

// RecordMessageFannedOut records one MessageReceived delivery.
func (m *Metrics) RecordMessageFannedOut() {
	m.MessagesFannedOut.Inc()
}

// RecordFanOutDropped records a dropped fan-out delivery.
func (m *Metrics) RecordFanOutDropped(reason string) {
	m.FanOutDropped.WithLabelValues(reason).Inc()
}

// RecordFrame records a processed frame by direction ("inbound"/"outbound").
func (m *Metrics) RecordFrame(direction string) {
	m.FramesTotal.WithLabelValues(direction).Inc()
}

// RecordFrameRejected records a rejected frame by reason.
func (m *Metrics) RecordFrameRejected(reason string) {
	m.FramesRejected.WithLabelValues(reason).Inc()
}

// RecordKDF records Argon2id derivation latency.
func (m *Metrics) RecordKDF(latencySeconds float64) {
	m.KDFLatency.Observe(latencySeconds)
}

// RecordAEADFailure records an AEAD seal/open failure.
func (m *Metrics) RecordAEADFailure(op string) {
	m.AEADFailures.WithLabelValues(op).Inc()
}

// RecordSignatureFailure records an Ed25519 verification failure.
func (m *Metrics) RecordSignatureFailure() {
	m.SignatureFailures.Inc()
}

// RecordCommitmentMismatch records a BLAKE3 commitment mismatch.
func (m *Metrics) RecordCommitmentMismatch() {
	m.CommitmentMismatches.Inc()
}

// RecordStaleMessage records a message dropped by the freshness window.
func (m *Metrics) RecordStaleMessage() {
	m.StaleMessages.Inc()
}

// RecordReplayRejection records a message dropped for non-monotonic sequencing.
func (m *Metrics) RecordReplayRejection() {
	m.ReplayRejections.Inc()
}

// RecordSendRetry records an outbound resend attempt.
func (m *Metrics) RecordSendRetry() {
	m.SendRetries.Inc()
}

// RecordSendFailure records an outbound send that exhausted its retry budget.
func (m *Metrics) RecordSendFailure() {
	m.SendFailuresTotal.Inc()
}

// RecordReconnectAttempt records a client engine reconnect attempt.
func (m *Metrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// RecordPanicRecovered records a recovered panic from the named goroutine.
func (m *Metrics) RecordPanicRecovered(goroutine string) {
	m.PanicsRecovered.WithLabelValues(goroutine).Inc()
}
