package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"etwtap/internal/etwerr"
	"etwtap/internal/event"
	"etwtap/internal/stats"
)

// pipeline is the bounded channel between the backend callback and the
// owner. The data channel is never closed; done is closed when the producer
// of the current run exits, so a receiver knows it is disconnected once done
// is closed and the buffer is empty.
type pipeline struct {
	ch       chan *event.Event
	stats    *stats.Tracker
	detached atomic.Bool

	mu   sync.Mutex // guards done
	done chan struct{}
}

func newPipeline(capacity int, st *stats.Tracker) *pipeline {
	done := make(chan struct{})
	close(done) // no producer yet
	return &pipeline{
		ch:    make(chan *event.Event, capacity),
		stats: st,
		done:  done,
	}
}

// arm opens a new run. Buffered events from a previous run stay readable.
func (p *pipeline) arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = make(chan struct{})
}

// finish marks the current producer as exited. It is idempotent.
func (p *pipeline) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

func (p *pipeline) doneCh() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// offer is the real-time send. It never blocks: a full buffer counts the
// event as lost, a detached consumer discards it without counting.
func (p *pipeline) offer(ev *event.Event) {
	if p.detached.Load() {
		return
	}
	select {
	case p.ch <- ev:
		p.stats.RecordEventProcessed()
	default:
		p.stats.RecordEventsLost(1)
	}
}

// deliver is the replay send. It waits for the consumer and gives up only
// when abort is closed. It reports whether the event was delivered.
func (p *pipeline) deliver(ev *event.Event, abort <-chan struct{}) bool {
	if p.detached.Load() {
		return false
	}
	select {
	case p.ch <- ev:
		p.stats.RecordEventProcessed()
		return true
	case <-abort:
		return false
	}
}

// detach drops the consumer side. Buffered events are released.
func (p *pipeline) detach() {
	if !p.detached.CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case <-p.ch:
		default:
			return
		}
	}
}

func (p *pipeline) drainOne() (*event.Event, bool) {
	select {
	case ev := <-p.ch:
		return ev, true
	default:
		return nil, false
	}
}

func (p *pipeline) next() (*event.Event, bool) {
	select {
	case ev := <-p.ch:
		return ev, true
	case <-p.doneCh():
		return p.drainOne()
	}
}

func (p *pipeline) nextTimeout(d time.Duration) (*event.Event, bool) {
	if d <= 0 {
		return p.drainOne()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case ev := <-p.ch:
		return ev, true
	case <-p.doneCh():
		return p.drainOne()
	case <-timer.C:
		return nil, false
	}
}

func (p *pipeline) nextContext(ctx context.Context) (*event.Event, error) {
	select {
	case ev := <-p.ch:
		return ev, nil
	case <-p.doneCh():
		if ev, ok := p.drainOne(); ok {
			return ev, nil
		}
		return nil, etwerr.Channel("producer finished")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len and Cap report buffer occupancy.
func (p *pipeline) Len() int { return len(p.ch) }
func (p *pipeline) Cap() int { return cap(p.ch) }
