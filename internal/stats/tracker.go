// Package stats counts what happens to events between the tracing backend
// and the consumer.
package stats

import (
	"sync/atomic"
	"time"
)

// SessionStats is a point-in-time view of a Tracker. Fields are read
// independently, so a snapshot taken while events flow is only eventually
// consistent across counters.
type SessionStats struct {
	EventsReceived  uint64        `json:"events_received"`
	EventsProcessed uint64        `json:"events_processed"`
	EventsLost      uint64        `json:"events_lost"`
	EventsFiltered  uint64        `json:"events_filtered"`
	BuffersLost     uint64        `json:"buffers_lost"`
	BuffersRead     uint64        `json:"buffers_read"`
	BufferSizeKB    uint32        `json:"buffer_size_kb"`
	BufferCount     uint32        `json:"buffer_count"`
	StartTime       time.Time     `json:"start_time"`
	Elapsed         time.Duration `json:"elapsed"`
	EventsPerSecond float64       `json:"events_per_second"`
}

// HasLoss reports whether any event or buffer was lost.
func (s SessionStats) HasLoss() bool {
	return s.EventsLost > 0 || s.BuffersLost > 0
}

// LossPercentage is lost / (received + lost) * 100, or 0 with no traffic.
func (s SessionStats) LossPercentage() float64 {
	total := s.EventsReceived + s.EventsLost
	if total == 0 {
		return 0
	}
	return float64(s.EventsLost) / float64(total) * 100
}

// Tracker holds the live counters of one session. All methods are safe for
// concurrent use and never block.
type Tracker struct {
	received  atomic.Uint64
	processed atomic.Uint64
	lost      atomic.Uint64
	filtered  atomic.Uint64

	buffersLost atomic.Uint64
	buffersRead atomic.Uint64

	bufferSizeKB atomic.Uint32
	bufferCount  atomic.Uint32

	start time.Time // carries a monotonic reading
}

func NewTracker() *Tracker {
	return &Tracker{start: time.Now()}
}

func (t *Tracker) RecordEventReceived()       { t.received.Add(1) }
func (t *Tracker) RecordEventProcessed()      { t.processed.Add(1) }
func (t *Tracker) RecordEventFiltered()       { t.filtered.Add(1) }
func (t *Tracker) RecordEventsLost(n uint64)  { t.lost.Add(n) }
func (t *Tracker) RecordBuffersLost(n uint64) { t.buffersLost.Add(n) }
func (t *Tracker) RecordBuffersRead(n uint64) { t.buffersRead.Add(n) }

// SetBufferInfo records the configured backend buffer geometry.
func (t *Tracker) SetBufferInfo(sizeKB, count uint32) {
	t.bufferSizeKB.Store(sizeKB)
	t.bufferCount.Store(count)
}

// Reset zeroes every counter. The start instant is kept.
func (t *Tracker) Reset() {
	t.received.Store(0)
	t.processed.Store(0)
	t.lost.Store(0)
	t.filtered.Store(0)
	t.buffersLost.Store(0)
	t.buffersRead.Store(0)
}

// Snapshot reads the counters. StartTime is derived as now minus elapsed, so
// it moves slightly between calls.
func (t *Tracker) Snapshot() SessionStats {
	elapsed := time.Since(t.start)
	s := SessionStats{
		EventsReceived:  t.received.Load(),
		EventsProcessed: t.processed.Load(),
		EventsLost:      t.lost.Load(),
		EventsFiltered:  t.filtered.Load(),
		BuffersLost:     t.buffersLost.Load(),
		BuffersRead:     t.buffersRead.Load(),
		BufferSizeKB:    t.bufferSizeKB.Load(),
		BufferCount:     t.bufferCount.Load(),
		StartTime:       time.Now().Add(-elapsed),
		Elapsed:         elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.EventsPerSecond = float64(s.EventsProcessed) / secs
	}
	return s
}
