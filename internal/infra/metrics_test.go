package infra

import (
	"errors"
	"testing"
)

func TestMetrics_RecordFanout(t *testing.T) {
	m := &Metrics{}

	m.RecordFanout(3, 1, 1000)
	m.RecordFanout(2, 0, 2000)
	m.RecordFanout(0, 2, 3000)

	snap := m.Snapshot()

	if snap.DeliveriesQueued != 5 {
		t.Errorf("Expected 5 queued deliveries, got %d", snap.DeliveriesQueued)
	}
	if snap.DeliveriesDropped != 3 {
		t.Errorf("Expected 3 dropped deliveries, got %d", snap.DeliveriesDropped)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgFanoutLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgFanoutLatencyNs)
	}
}

func TestMetrics_RecordSnapshot(t *testing.T) {
	m := &Metrics{}

	m.RecordSnapshot(false)
	m.RecordSnapshot(true)
	m.RecordSnapshot(false)

	snap := m.Snapshot()
	if snap.SnapshotsGenerated != 3 {
		t.Errorf("Expected 3 snapshots, got %d", snap.SnapshotsGenerated)
	}
	if snap.SnapshotsSuperseded != 1 {
		t.Errorf("Expected 1 superseded snapshot, got %d", snap.SnapshotsSuperseded)
	}
}

func TestMetrics_RecordSend(t *testing.T) {
	m := &Metrics{}

	m.RecordSend(nil)
	m.RecordSend(nil)
	m.RecordSend(errors.New("network unreachable"))

	snap := m.Snapshot()
	if snap.DatagramsSent != 2 {
		t.Errorf("Expected 2 datagrams, got %d", snap.DatagramsSent)
	}
	if snap.SendFailures != 1 {
		t.Errorf("Expected 1 send failure, got %d", snap.SendFailures)
	}
}

func TestMetrics_Subscribers(t *testing.T) {
	m := &Metrics{}

	m.SetActiveSubscribers(3)
	snap := m.Snapshot()
	if snap.ActiveSubscribers != 3 {
		t.Errorf("Expected 3 subscribers, got %d", snap.ActiveSubscribers)
	}

	m.SetActiveSubscribers(2)
	snap = m.Snapshot()
	if snap.ActiveSubscribers != 2 {
		t.Errorf("Expected 2 subscribers, got %d", snap.ActiveSubscribers)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordFanout(1, 1, 1000)
	m.RecordRegistration()
	m.RecordRejection()
	m.RecordPing()
	m.RecordEvictions(2)
	m.RecordSweepSkipped()
	m.SetActiveSubscribers(4)

	m.Reset()
	snap := m.Snapshot()

	if snap.DeliveriesQueued != 0 || snap.DeliveriesDropped != 0 {
		t.Error("Expected 0 deliveries after reset")
	}
	if snap.Registrations != 0 || snap.Rejections != 0 {
		t.Error("Expected 0 control-plane counts after reset")
	}
	if snap.Pings != 0 || snap.Evictions != 0 || snap.SweepsSkipped != 0 {
		t.Error("Expected 0 liveness counts after reset")
	}
	if snap.ActiveSubscribers != 0 {
		t.Error("Expected 0 subscribers after reset")
	}
	if snap.AvgFanoutLatencyNs != 0 {
		t.Error("Expected 0 latency after reset")
	}
}
