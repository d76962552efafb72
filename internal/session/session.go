// Package session runs trace sessions and file replays and delivers their
// events through a bounded, lossy channel.
//
// A Session or KernelSession moves Created -> Running -> Stopped and may be
// started again. The backend callback never blocks: when the consumer falls
// behind, events are dropped and counted in Stats().EventsLost.
package session

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"

	"etwtap/internal/backend"
	"etwtap/internal/etwerr"
	"etwtap/internal/event"
	"etwtap/internal/provider"
	"etwtap/internal/stats"
)

const kindUser = "session"

// Session is a user-mode trace session over one or more providers.
type Session struct {
	cfg       Config
	providers []provider.Provider // guarded by c.mu
	c         *core
}

// New creates a session. Nothing is validated or started until Start.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg: cfg,
		c:   newCore(cfg.ChannelCapacity, buildOptions(opts)),
	}
	runtime.SetFinalizer(s, func(s *Session) { _ = s.c.close() })
	return s
}

// Name returns the session name.
func (s *Session) Name() string { return s.cfg.Name }

// Config returns the configuration the session was created with.
func (s *Session) Config() Config { return s.cfg }

// AddProvider adds p, replacing any provider with the same GUID.
func (s *Session) AddProvider(p provider.Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.state == StateRunning {
		return etwerr.ErrAlreadyRunning
	}
	for i := range s.providers {
		if s.providers[i].GUID == p.GUID {
			s.providers[i] = p
			return nil
		}
	}
	s.providers = append(s.providers, p)
	return nil
}

// RemoveProvider removes the provider with guid, if present.
func (s *Session) RemoveProvider(guid uuid.UUID) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.state == StateRunning {
		return etwerr.ErrAlreadyRunning
	}
	for i := range s.providers {
		if s.providers[i].GUID == guid {
			s.providers = append(s.providers[:i], s.providers[i+1:]...)
			break
		}
	}
	return nil
}

// Providers returns a copy of the configured providers.
func (s *Session) Providers() []provider.Provider {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	return append([]provider.Provider(nil), s.providers...)
}

// Start validates the configuration and starts the trace.
func (s *Session) Start() error {
	return s.c.start(s.launch)
}

func (s *Session) launch(cb backend.Callback) (backend.Trace, func(), error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var enabled []provider.Provider
	for _, p := range s.Providers() {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return nil, nil, etwerr.InvalidConfig("session %q has no enabled providers", s.cfg.Name)
	}

	release, ok := acquireName(kindUser, s.cfg.Name)
	if !ok {
		return nil, nil, etwerr.InvalidConfig("session name %q is already in use", s.cfg.Name)
	}

	if s.cfg.StopIfExists {
		s.c.stopByNameQuietly(s.cfg.Name)
	}

	maxPID := s.c.backend.MaxFilterPID()
	specs := make([]backend.ProviderSpec, 0, len(enabled))
	for _, p := range enabled {
		specs = append(specs, providerSpec(p, maxPID))
	}
	s.c.setRecheck(enabled)
	s.c.stats.SetBufferInfo(s.cfg.BufferSizeKB, s.cfg.MaxBuffers)

	cfg := backend.TraceConfig{
		Name:          s.cfg.Name,
		BufferSizeKB:  s.cfg.BufferSizeKB,
		MinBuffers:    s.cfg.MinBuffers,
		MaxBuffers:    s.cfg.MaxBuffers,
		FlushInterval: flushSeconds(s.cfg.FlushInterval),
		Providers:     specs,
	}
	if s.cfg.Mode == ModeFile {
		cfg.LogFile = s.cfg.LogFile
	}

	trace, err := s.c.backend.StartTrace(cfg, cb)
	if err != nil {
		release()
		return nil, nil, etwerr.StartTraceFailed(err)
	}
	return trace, release, nil
}

// providerSpec builds the backend enable request. Process ids above maxPID
// cannot be pushed down and are left to the downstream re-check.
func providerSpec(p provider.Provider, maxPID uint32) backend.ProviderSpec {
	spec := backend.ProviderSpec{
		GUID:             p.GUID,
		Name:             p.Name,
		Level:            uint8(p.Level),
		KeywordsAny:      p.KeywordsAny,
		KeywordsAll:      p.KeywordsAll,
		EnableProperties: p.EnableFlags(),
		EventIDs:         p.EventIDHints(),
	}
	for _, pid := range p.ProcessIDHints() {
		if pid <= maxPID {
			spec.ProcessIDs = append(spec.ProcessIDs, pid)
		}
	}
	return spec
}

// Stop stops the trace and waits for the processing goroutine. A failed
// backend stop still leaves the session Stopped.
func (s *Session) Stop() error { return s.c.stop() }

// Close stops the session if it is running and detaches the consumer.
// Events still buffered are discarded.
func (s *Session) Close() error {
	runtime.SetFinalizer(s, nil)
	return s.c.close()
}

func (s *Session) State() State    { return s.c.currentState() }
func (s *Session) IsRunning() bool { return s.State() == StateRunning }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() stats.SessionStats { return s.c.snapshot() }

// ResetStats zeroes the counters. Elapsed time keeps counting.
func (s *Session) ResetStats() { s.c.resetStats() }

// Done is closed when the processing goroutine of the current run exits.
// Before the first Start it is already closed.
func (s *Session) Done() <-chan struct{} { return s.c.pipe.doneCh() }

// Pending returns the number of buffered events and the buffer capacity.
func (s *Session) Pending() (int, int) { return s.c.pipe.Len(), s.c.pipe.Cap() }

// NextEvent blocks until an event is available. It returns false once the
// producer has exited and the buffer is drained.
func (s *Session) NextEvent() (*event.Event, bool) { return s.c.next() }

// NextEventTimeout is NextEvent bounded by d.
func (s *Session) NextEventTimeout(d time.Duration) (*event.Event, bool) {
	return s.c.nextTimeout(d)
}

// TryNextEvent returns a buffered event without blocking.
func (s *Session) TryNextEvent() (*event.Event, bool) { return s.c.tryNext() }

// NextEventContext blocks until an event arrives or ctx ends. It returns an
// ErrChannel error once the producer has exited and the buffer is drained.
func (s *Session) NextEventContext(ctx context.Context) (*event.Event, error) {
	return s.c.nextContext(ctx)
}
