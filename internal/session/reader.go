package session

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phuslu/log"

	"etwtap/internal/backend"
	"etwtap/internal/etwerr"
	"etwtap/internal/event"
	"etwtap/internal/stats"
)

// ErrExhausted is returned when a consumed FileReader is started again.
var ErrExhausted = fmt.Errorf("%w: trace file already consumed", etwerr.ErrInvalidConfig)

// FileReader replays a recorded trace file. It is single-pass: once the end
// of the file is reached the reader is Consumed and cannot be restarted.
//
// Unlike live sessions, replay never drops events. The backend callback
// waits for the consumer, and only Close releases it.
type FileReader struct {
	path    string
	backend backend.Backend
	log     log.Logger
	stats   *stats.Tracker
	pipe    *pipeline

	mu    sync.RWMutex
	state State
	trace backend.Trace
	err   error

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFileReader checks that path exists. Nothing is read until Start or the
// first Next.
func NewFileReader(path string, opts ...Option) (*FileReader, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, etwerr.FileNotFound(path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	o := buildOptions(opts)
	capacity := o.capacity
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	st := stats.NewTracker()
	return &FileReader{
		path:    path,
		backend: o.backend,
		log:     *o.log,
		stats:   st,
		pipe:    newPipeline(capacity, st),
		closing: make(chan struct{}),
	}, nil
}

func (r *FileReader) Path() string { return r.path }

// Name is the file's base name, used as a metrics label.
func (r *FileReader) Name() string { return filepath.Base(r.path) }

func (r *FileReader) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Start opens the file and begins delivering events.
func (r *FileReader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRunning:
		return etwerr.ErrAlreadyRunning
	case StateConsumed:
		return ErrExhausted
	case StateStopped:
		return etwerr.Channel("reader is closed")
	case StateError:
		return r.err
	}

	trace, err := r.backend.OpenFile(r.path, r.callback)
	if err != nil {
		r.err = etwerr.StartTraceFailed(err)
		r.state = StateError
		return r.err
	}
	r.pipe.arm()
	r.state = StateRunning
	r.trace = trace

	r.wg.Add(1)
	go r.run(trace)

	r.log.Debug().Str("path", r.path).Msg("Replay started")
	return nil
}

func (r *FileReader) callback(rec *backend.Record, schema backend.Schema) {
	r.stats.RecordEventReceived()
	r.pipe.deliver(normalize(rec, schema), r.closing)
}

func (r *FileReader) run(trace backend.Trace) {
	defer r.wg.Done()
	defer r.pipe.finish()

	err := trace.Process()
	if err != nil {
		r.log.Error().Err(err).Str("path", r.path).Msg("Replay failed")
	}

	ts := trace.Stats()
	r.stats.RecordEventsLost(ts.EventsLost)
	r.stats.RecordBuffersLost(ts.BuffersLost)
	r.stats.RecordBuffersRead(ts.BuffersRead)

	r.mu.Lock()
	if r.state == StateRunning {
		r.state = StateConsumed
	}
	if err != nil && r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// Next returns the next event, starting the replay on first use. It returns
// false at the end of the file or when the reader could not start; Err
// tells the two apart.
func (r *FileReader) Next() (*event.Event, bool) {
	if r.State() == StateCreated {
		if err := r.Start(); err != nil && !errors.Is(err, etwerr.ErrAlreadyRunning) {
			return nil, false
		}
	}
	return r.pipe.next()
}

// NextEventTimeout is Next bounded by d. It does not start the replay.
func (r *FileReader) NextEventTimeout(d time.Duration) (*event.Event, bool) {
	return r.pipe.nextTimeout(d)
}

// TryNext returns a buffered event without blocking or starting.
func (r *FileReader) TryNext() (*event.Event, bool) { return r.pipe.drainOne() }

// ReadAll drains the remaining events and waits for the replay to finish.
func (r *FileReader) ReadAll() ([]*event.Event, error) {
	var events []*event.Event
	for ev := range r.All() {
		events = append(events, ev)
	}
	r.Wait()
	return events, r.Err()
}

// All iterates over the remaining events.
func (r *FileReader) All() iter.Seq[*event.Event] {
	return func(yield func(*event.Event) bool) {
		for {
			ev, ok := r.Next()
			if !ok || !yield(ev) {
				return
			}
		}
	}
}

// Wait blocks until the replay goroutine exits.
func (r *FileReader) Wait() { r.wg.Wait() }

// IsFinished reports whether the producer is done.
func (r *FileReader) IsFinished() bool {
	s := r.State()
	return s == StateConsumed || s == StateStopped || s == StateError
}

// Err returns the first start or replay error.
func (r *FileReader) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *FileReader) Stats() stats.SessionStats { return r.stats.Snapshot() }

// Close aborts a replay in progress and discards buffered events.
func (r *FileReader) Close() error {
	r.closeOnce.Do(func() { close(r.closing) })

	r.mu.Lock()
	trace := r.trace
	running := r.state == StateRunning
	if r.state == StateCreated || r.state == StateRunning {
		r.state = StateStopped
	}
	r.mu.Unlock()

	var err error
	if running {
		if serr := trace.Stop(); serr != nil {
			err = etwerr.StopTraceFailed(serr)
		}
	}
	r.wg.Wait()
	r.pipe.detach()
	return err
}
