package orchestrator

import (
	"sync"
	"time"
)

// Metrics tracks real-time performance data for one streaming session's
// tick loop.
type Metrics struct {
	mu sync.RWMutex

	TicksCaptured uint64
	TicksEncoded  uint64
	TicksSent     uint64
	TicksSkipped  uint64 // no damage: nothing submitted this tick
	TicksDropped  uint64 // TransientError dropped the tick
	AuxOmitted    uint64 // 4:4:4 ticks where Auxiliary was omitted

	lastDamageTime  time.Duration
	lastConvertTime time.Duration
	lastEncodeTime  time.Duration
	lastFrameSize   int

	totalBytesSent uint64
	startTime      time.Time
}

// NewMetrics builds a Metrics with its uptime clock started.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) RecordCapture() {
	m.mu.Lock()
	m.TicksCaptured++
	m.mu.Unlock()
}

func (m *Metrics) RecordSkip() {
	m.mu.Lock()
	m.TicksSkipped++
	m.mu.Unlock()
}

func (m *Metrics) RecordDamage(d time.Duration) {
	m.mu.Lock()
	m.lastDamageTime = d
	m.mu.Unlock()
}

func (m *Metrics) RecordConvert(d time.Duration) {
	m.mu.Lock()
	m.lastConvertTime = d
	m.mu.Unlock()
}

func (m *Metrics) RecordEncode(d time.Duration, size int) {
	m.mu.Lock()
	m.TicksEncoded++
	m.lastEncodeTime = d
	m.lastFrameSize = size
	m.mu.Unlock()
}

func (m *Metrics) RecordSend(size int) {
	m.mu.Lock()
	m.TicksSent++
	m.totalBytesSent += uint64(size)
	m.mu.Unlock()
}

func (m *Metrics) RecordDrop() {
	m.mu.Lock()
	m.TicksDropped++
	m.mu.Unlock()
}

func (m *Metrics) RecordAuxOmitted() {
	m.mu.Lock()
	m.AuxOmitted++
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of Metrics for logging.
type Snapshot struct {
	TicksCaptured uint64
	TicksEncoded  uint64
	TicksSent     uint64
	TicksSkipped  uint64
	TicksDropped  uint64
	AuxOmitted    uint64
	DamageMs      float64
	ConvertMs     float64
	EncodeMs      float64
	LastFrameSize int
	BandwidthKBps float64
	Uptime        time.Duration
}

// Snapshot returns a consistent copy of the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := time.Since(m.startTime)
	bw := float64(0)
	if uptime.Seconds() > 0 {
		bw = float64(m.totalBytesSent) / uptime.Seconds() / 1024.0
	}

	return Snapshot{
		TicksCaptured: m.TicksCaptured,
		TicksEncoded:  m.TicksEncoded,
		TicksSent:     m.TicksSent,
		TicksSkipped:  m.TicksSkipped,
		TicksDropped:  m.TicksDropped,
		AuxOmitted:    m.AuxOmitted,
		DamageMs:      float64(m.lastDamageTime.Microseconds()) / 1000.0,
		ConvertMs:     float64(m.lastConvertTime.Microseconds()) / 1000.0,
		EncodeMs:      float64(m.lastEncodeTime.Microseconds()) / 1000.0,
		LastFrameSize: m.lastFrameSize,
		BandwidthKBps: bw,
		Uptime:        uptime,
	}
}
