package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Generation
	snapshotsGenerated  atomic.Uint64
	snapshotsSuperseded atomic.Uint64

	// Delivery
	deliveriesQueued  atomic.Uint64
	deliveriesDropped atomic.Uint64
	datagramsSent     atomic.Uint64
	sendFailures      atomic.Uint64

	// Control plane
	registrations atomic.Uint64
	rejections    atomic.Uint64

	// Liveness
	pings         atomic.Uint64
	evictions     atomic.Uint64
	sweepsSkipped atomic.Uint64

	// Broadcast latency (generation to fan-out complete)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeSubscribers atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordSnapshot records a generated snapshot. superseded is true when it
// replaced one the broadcaster had not consumed yet.
func (m *Metrics) RecordSnapshot(superseded bool) {
	m.snapshotsGenerated.Add(1)
	if superseded {
		m.snapshotsSuperseded.Add(1)
	}
}

// RecordFanout records one broadcast cycle with its latency.
func (m *Metrics) RecordFanout(queued, dropped int, latencyNs int64) {
	m.deliveriesQueued.Add(uint64(queued))
	m.deliveriesDropped.Add(uint64(dropped))
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordSend records one datagram send attempt.
func (m *Metrics) RecordSend(err error) {
	if err != nil {
		m.sendFailures.Add(1)
		return
	}
	m.datagramsSent.Add(1)
}

// RecordRegistration records an accepted subscription.
func (m *Metrics) RecordRegistration() {
	m.registrations.Add(1)
}

// RecordRejection records a request answered with an Error response.
func (m *Metrics) RecordRejection() {
	m.rejections.Add(1)
}

// RecordPing records a liveness datagram.
func (m *Metrics) RecordPing() {
	m.pings.Add(1)
}

// RecordEvictions records subscribers removed by the eviction scan.
func (m *Metrics) RecordEvictions(n int) {
	m.evictions.Add(uint64(n))
}

// RecordSweepSkipped records a scan skipped on table contention.
func (m *Metrics) RecordSweepSkipped() {
	m.sweepsSkipped.Add(1)
}

// SetActiveSubscribers sets the current subscriber count.
func (m *Metrics) SetActiveSubscribers(count int) {
	m.activeSubscribers.Store(int32(count))
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	SnapshotsGenerated  uint64    `json:"snapshots_generated"`
	SnapshotsSuperseded uint64    `json:"snapshots_superseded"`
	DeliveriesQueued    uint64    `json:"deliveries_queued"`
	DeliveriesDropped   uint64    `json:"deliveries_dropped"`
	DatagramsSent       uint64    `json:"datagrams_sent"`
	SendFailures        uint64    `json:"send_failures"`
	Registrations       uint64    `json:"registrations"`
	Rejections          uint64    `json:"rejections"`
	Pings               uint64    `json:"pings"`
	Evictions           uint64    `json:"evictions"`
	SweepsSkipped       uint64    `json:"sweeps_skipped"`
	AvgFanoutLatencyNs  int64     `json:"avg_fanout_latency_ns"`
	ActiveSubscribers   int32     `json:"active_subscribers"`
	Timestamp           time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		SnapshotsGenerated:  m.snapshotsGenerated.Load(),
		SnapshotsSuperseded: m.snapshotsSuperseded.Load(),
		DeliveriesQueued:    m.deliveriesQueued.Load(),
		DeliveriesDropped:   m.deliveriesDropped.Load(),
		DatagramsSent:       m.datagramsSent.Load(),
		SendFailures:        m.sendFailures.Load(),
		Registrations:       m.registrations.Load(),
		Rejections:          m.rejections.Load(),
		Pings:               m.pings.Load(),
		Evictions:           m.evictions.Load(),
		SweepsSkipped:       m.sweepsSkipped.Load(),
		AvgFanoutLatencyNs:  avgLatency,
		ActiveSubscribers:   m.activeSubscribers.Load(),
		Timestamp:           time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.snapshotsGenerated.Store(0)
	m.snapshotsSuperseded.Store(0)
	m.deliveriesQueued.Store(0)
	m.deliveriesDropped.Store(0)
	m.datagramsSent.Store(0)
	m.sendFailures.Store(0)
	m.registrations.Store(0)
	m.rejections.Store(0)
	m.pings.Store(0)
	m.evictions.Store(0)
	m.sweepsSkipped.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeSubscribers.Store(0)
}
