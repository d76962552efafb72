package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"etwtap/internal/backend"
	"etwtap/internal/etwerr"
	"etwtap/internal/event"
	"etwtap/internal/logger"
	"etwtap/internal/provider"
	"etwtap/internal/stats"
)

// ProcessNamer resolves a process id to its image name. It backs
// ProcessName filters, which the backend cannot apply itself.
type ProcessNamer interface {
	ProcessName(pid uint32) string
}

type options struct {
	backend backend.Backend
	log     *log.Logger
	namer   ProcessNamer

	capacity int // FileReader only
}

// Option customizes a Session, KernelSession or FileReader.
type Option func(*options)

// WithBackend replaces the platform backend.
func WithBackend(b backend.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLogger replaces the component logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.log = &l }
}

// WithChannelCapacity sets the FileReader buffer size. Sessions take it from
// their Config.
func WithChannelCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithProcessNamer sets the resolver used by ProcessName filters.
func WithProcessNamer(n ProcessNamer) Option {
	return func(o *options) { o.namer = n }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = backend.New()
	}
	if o.log == nil {
		l := logger.NewLoggerWithContext("session")
		o.log = &l
	}
	return o
}

// recheckSet holds the providers whose filters are re-applied to every
// delivered event.
type recheckSet map[uuid.UUID]provider.Provider

func newRecheckSet(providers []provider.Provider) recheckSet {
	set := recheckSet{}
	for _, p := range providers {
		if len(p.Filters) > 0 {
			set[p.GUID] = p
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// launchFunc validates and starts the backend trace. It returns the release
// func for the name reservation.
type launchFunc func(cb backend.Callback) (backend.Trace, func(), error)

// stopWaitTimeout bounds the wait for Process after the backend failed to
// stop the trace. A successful Stop always unblocks Process.
var stopWaitTimeout = 5 * time.Second

var errStillProcessing = errors.New("previous trace is still processing")

// core is the lifecycle shared by live sessions. Only core is referenced by
// the processing goroutine, so an unreachable owner can still be finalized.
type core struct {
	backend backend.Backend
	log     log.Logger
	namer   ProcessNamer
	stats   *stats.Tracker
	pipe    *pipeline
	recheck atomic.Pointer[recheckSet]

	lifecycle sync.Mutex // serializes start, stop and close

	mu        sync.RWMutex
	state     State
	trace     backend.Trace
	release   func()
	lastStats backend.TraceStats
	baseline  backend.TraceStats // backend counters at the last ResetStats
	closed    bool

	stopping atomic.Bool
	wg       sync.WaitGroup
}

func newCore(capacity int, o options) *core {
	st := stats.NewTracker()
	if capacity <= 0 {
		// Validate rejects this at Start; the buffer only needs to exist.
		capacity = 1
	}
	return &core{
		backend: o.backend,
		log:     *o.log,
		namer:   o.namer,
		stats:   st,
		pipe:    newPipeline(capacity, st),
	}
}

// callback runs on backend threads. It takes no lock the consumer takes and
// never logs.
func (c *core) callback(rec *backend.Record, schema backend.Schema) {
	c.stats.RecordEventReceived()
	ev := normalize(rec, schema)
	if !c.accept(ev) {
		c.stats.RecordEventFiltered()
		return
	}
	c.pipe.offer(ev)
}

func (c *core) accept(ev *event.Event) bool {
	set := c.recheck.Load()
	if set == nil {
		return true
	}
	p, ok := (*set)[ev.ProviderID]
	if !ok {
		return true
	}
	if !p.MatchesEvent(ev.EventID, ev.Opcode, ev.Level, ev.Keywords) {
		return false
	}
	if !p.HasProcessFilters() {
		return true
	}
	var name string
	if p.NeedsProcessName() {
		name = processNameOf(ev, c.namer)
	}
	return p.MatchesProcess(ev.ProcessID, name)
}

func (c *core) setRecheck(providers []provider.Provider) {
	set := newRecheckSet(providers)
	if set == nil {
		c.recheck.Store(nil)
		return
	}
	c.recheck.Store(&set)
}

func (c *core) start(launch launchFunc) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	state, closed := c.state, c.closed
	c.mu.RUnlock()
	if state == StateRunning {
		return etwerr.ErrAlreadyRunning
	}
	if state == StateError {
		return etwerr.StartTraceFailed(errStillProcessing)
	}
	if closed {
		return etwerr.Channel("session is closed")
	}

	trace, release, err := launch(c.callback)
	if err != nil {
		return err
	}

	c.stopping.Store(false)
	c.pipe.arm()

	c.mu.Lock()
	c.state = StateRunning
	c.trace = trace
	c.release = release
	c.lastStats = backend.TraceStats{}
	c.baseline = backend.TraceStats{}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(trace)

	c.log.Info().Str("session", trace.Name()).Msg("Trace session started")
	return nil
}

// run drives the backend until the trace stops or ends on its own.
func (c *core) run(trace backend.Trace) {
	defer c.wg.Done()
	defer c.pipe.finish()

	if err := trace.Process(); err != nil && !c.stopping.Load() {
		c.log.Error().Err(err).Str("session", trace.Name()).Msg("Trace processing failed")
	}

	st := trace.Stats()
	c.mu.Lock()
	c.lastStats = st
	c.state = StateStopped
	c.releaseLocked()
	c.mu.Unlock()
}

func (c *core) releaseLocked() {
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

func (c *core) stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.stopLocked()
}

func (c *core) stopLocked() error {
	c.mu.RLock()
	state, trace := c.state, c.trace
	c.mu.RUnlock()
	if state != StateRunning {
		return etwerr.ErrNotRunning
	}

	c.stopping.Store(true)
	err := trace.Stop()
	if err == nil {
		c.wg.Wait()
	} else {
		c.log.Warn().Err(err).Str("session", trace.Name()).Msg("Failed to stop trace cleanly")
		if !c.waitProcess(stopWaitTimeout) {
			c.log.Error().Str("session", trace.Name()).Dur("waited", stopWaitTimeout).
				Msg("Processing goroutine still running after failed stop")
			c.mu.Lock()
			c.state = StateError
			c.releaseLocked()
			c.mu.Unlock()
			return etwerr.StopTraceFailed(err)
		}
	}

	c.mu.Lock()
	c.state = StateStopped
	c.releaseLocked()
	c.mu.Unlock()

	c.log.Info().Str("session", trace.Name()).Msg("Trace session stopped")
	if err != nil {
		return etwerr.StopTraceFailed(err)
	}
	return nil
}

// waitProcess reports whether the processing goroutine exited within d.
func (c *core) waitProcess(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// close stops when running and detaches the consumer side.
func (c *core) close() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	err := c.stopLocked()
	if errors.Is(err, etwerr.ErrNotRunning) {
		err = nil
	}
	c.pipe.detach()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

// stopByNameQuietly is the best-effort stop before start.
func (c *core) stopByNameQuietly(name string) {
	if err := c.backend.StopByName(name); err != nil {
		c.log.Debug().Err(err).Str("session", name).Msg("No existing session stopped")
	}
}

func (c *core) currentState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// traceStatsLocked returns the live backend counters, or the final ones once
// the trace has ended. c.mu must be held.
func (c *core) traceStatsLocked() backend.TraceStats {
	if c.state == StateRunning && c.trace != nil {
		return c.trace.Stats()
	}
	return c.lastStats
}

// resetStats zeroes the tracker and rebases the backend counters so both
// sides of the snapshot restart from zero.
func (c *core) resetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseline = c.traceStatsLocked()
	c.stats.Reset()
}

func (c *core) snapshot() stats.SessionStats {
	c.mu.RLock()
	ts, base := c.traceStatsLocked(), c.baseline
	c.mu.RUnlock()
	st := c.stats.Snapshot()

	// Backend-side losses count with channel drops.
	st.EventsLost += since(ts.EventsLost, base.EventsLost)
	st.BuffersLost += since(ts.BuffersLost, base.BuffersLost)
	st.BuffersRead += since(ts.BuffersRead, base.BuffersRead)
	if ts.BufferCount > 0 {
		st.BufferCount = ts.BufferCount
	}
	return st
}

// since is cur-base, clamped at zero for a backend that restarted its
// counters.
func since(cur, base uint64) uint64 {
	if cur < base {
		return cur
	}
	return cur - base
}

func (c *core) next() (*event.Event, bool) { return c.pipe.next() }

func (c *core) nextTimeout(d time.Duration) (*event.Event, bool) { return c.pipe.nextTimeout(d) }

func (c *core) tryNext() (*event.Event, bool) { return c.pipe.drainOne() }

func (c *core) nextContext(ctx context.Context) (*event.Event, error) {
	return c.pipe.nextContext(ctx)
}
