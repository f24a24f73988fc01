package relay

import "github.com/rchat-io/rchat/internal/metrics"

// Metric recording is nil-safe throughout: a Manager built with a nil
// *metrics.Metrics (as most unit tests do) simply skips instrumentation
// instead of panicking.

func recordConnectionOpened(m *metrics.Metrics) {
	if m != nil {
		m.ConnectionsActive.Inc()
	}
}

func recordConnectionClosed(m *metrics.Metrics) {
	if m != nil {
		m.ConnectionsActive.Dec()
	}
}

func recordFrame(m *metrics.Metrics, direction string) {
	if m != nil {
		m.RecordFrame(direction)
	}
}

func recordFrameRejected(m *metrics.Metrics, reason string) {
	if m != nil {
		m.RecordFrameRejected(reason)
	}
}

func recordRoomCreated(m *metrics.Metrics) {
	if m != nil {
		m.RecordRoomCreated()
	}
}

func recordRoomDestroyed(m *metrics.Metrics) {
	if m != nil {
		m.RecordRoomDestroyed()
	}
}

func recordJoin(m *metrics.Metrics) {
	if m != nil {
		m.RecordJoin()
	}
}

func recordLeave(m *metrics.Metrics, reason string) {
	if m != nil {
		m.RecordLeave(reason)
	}
}

func recordMessageReceived(m *metrics.Metrics) {
	if m != nil {
		m.RecordMessageReceived()
	}
}

func recordMessageFannedOut(m *metrics.Metrics) {
	if m != nil {
		m.RecordMessageFannedOut()
	}
}

func recordFanOutDropped(m *metrics.Metrics, reason string) {
	if m != nil {
		m.RecordFanOutDropped(reason)
	}
}
