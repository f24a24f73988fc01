package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.RoomsActive == nil {
		t.Error("RoomsActive metric is nil")
	}
	if m.ConnectionsActive == nil {
		t.Error("ConnectionsActive metric is nil")
	}
	if m.FramesTotal == nil {
		t.Error("FramesTotal metric is nil")
	}
}

func TestRecordRoomLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordRoomCreated()
	m.RecordRoomCreated()
	m.RecordRoomDestroyed()

	active := testutil.ToFloat64(m.RoomsActive)
	if active != 1 {
		t.Errorf("RoomsActive = %v, want 1", active)
	}

	created := testutil.ToFloat64(m.RoomsCreatedTotal)
	if created != 2 {
		t.Errorf("RoomsCreatedTotal = %v, want 2", created)
	}

	destroyed := testutil.ToFloat64(m.RoomsDestroyedTotal)
	if destroyed != 1 {
		t.Errorf("RoomsDestroyedTotal = %v, want 1", destroyed)
	}
}

func TestRecordJoinLeave(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordJoin()
	m.RecordJoin()
	m.RecordLeave("explicit")

	participants := testutil.ToFloat64(m.ParticipantsActive)
	if participants != 1 {
		t.Errorf("ParticipantsActive = %v, want 1", participants)
	}

	leaves := testutil.ToFloat64(m.LeavesTotal.WithLabelValues("explicit"))
	if leaves != 1 {
		t.Errorf("LeavesTotal[explicit] = %v, want 1", leaves)
	}
}

func TestRecordMessages(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordMessageReceived()
	m.RecordMessageFannedOut()
	m.RecordMessageFannedOut()
	m.RecordFanOutDropped("sink_full")

	received := testutil.ToFloat64(m.MessagesReceived)
	if received != 1 {
		t.Errorf("MessagesReceived = %v, want 1", received)
	}

	fannedOut := testutil.ToFloat64(m.MessagesFannedOut)
	if fannedOut != 2 {
		t.Errorf("MessagesFannedOut = %v, want 2", fannedOut)
	}

	dropped := testutil.ToFloat64(m.FanOutDropped.WithLabelValues("sink_full"))
	if dropped != 1 {
		t.Errorf("FanOutDropped[sink_full] = %v, want 1", dropped)
	}
}

func TestRecordFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordFrame("inbound")
	m.RecordFrame("inbound")
	m.RecordFrame("outbound")
	m.RecordFrameRejected("oversize")

	inbound := testutil.ToFloat64(m.FramesTotal.WithLabelValues("inbound"))
	if inbound != 2 {
		t.Errorf("FramesTotal[inbound] = %v, want 2", inbound)
	}

	rejected := testutil.ToFloat64(m.FramesRejected.WithLabelValues("oversize"))
	if rejected != 1 {
		t.Errorf("FramesRejected[oversize] = %v, want 1", rejected)
	}
}

func TestRecordCryptoFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordAEADFailure("open")
	m.RecordSignatureFailure()
	m.RecordSignatureFailure()
	m.RecordCommitmentMismatch()
	m.RecordStaleMessage()
	m.RecordReplayRejection()
	m.RecordKDF(0.05)

	sigFailures := testutil.ToFloat64(m.SignatureFailures)
	if sigFailures != 2 {
		t.Errorf("SignatureFailures = %v, want 2", sigFailures)
	}

	aeadFailures := testutil.ToFloat64(m.AEADFailures.WithLabelValues("open"))
	if aeadFailures != 1 {
		t.Errorf("AEADFailures[open] = %v, want 1", aeadFailures)
	}

	mismatches := testutil.ToFloat64(m.CommitmentMismatches)
	if mismatches != 1 {
		t.Errorf("CommitmentMismatches = %v, want 1", mismatches)
	}
}

func TestRecordRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordSendRetry()
	m.RecordSendRetry()
	m.RecordSendFailure()
	m.RecordReconnectAttempt()

	retries := testutil.ToFloat64(m.SendRetries)
	if retries != 2 {
		t.Errorf("SendRetries = %v, want 2", retries)
	}

	failures := testutil.ToFloat64(m.SendFailuresTotal)
	if failures != 1 {
		t.Errorf("SendFailuresTotal = %v, want 1", failures)
	}

	reconnects := testutil.ToFloat64(m.ReconnectAttempts)
	if reconnects != 1 {
		t.Errorf("ReconnectAttempts = %v, want 1", reconnects)
	}
}

func TestRecordPanicRecovered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordPanicRecovered("relay.readLoop")
	m.RecordPanicRecovered("relay.readLoop")

	count := testutil.ToFloat64(m.PanicsRecovered.WithLabelValues("relay.readLoop"))
	if count != 2 {
		t.Errorf("PanicsRecovered[relay.readLoop] = %v, want 2", count)
	}
}

func TestDefaultMetrics(t *testing.T) {
	m1 := Default()
	m2 := Default()

	if m1 != m2 {
		t.Error("Default() should return same instance")
	}
	if m1 == nil {
		t.Error("Default() returned nil")
	}
}
