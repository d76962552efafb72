// Package procinfo resolves process ids to image names for process-name
// filtering and enrichment.
package procinfo

import (
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"

	"etwtap/internal/logger"
	"etwtap/internal/maps"
)

// Info describes one running process.
type Info struct {
	PID       uint32 `json:"pid"`
	ParentPID uint32 `json:"parent_pid"`
	Name      string `json:"name"`
	// Service is the hosted service name, when the process runs one.
	Service string `json:"service,omitempty"`
}

// DefaultTTL bounds how long a resolved name is trusted. Process ids are
// recycled, so entries must expire.
const DefaultTTL = 30 * time.Second

// negativeTTL is how long a failed lookup is remembered.
const negativeTTL = 2 * time.Second

type entry struct {
	name    string
	expires time.Time
}

// Resolver maps pids to lower-cased image names through a concurrent cache.
// Misses fall back to a per-pid OS lookup.
type Resolver struct {
	cache    maps.ConcurrentMap[uint32, entry]
	lookup   func(pid uint32) (string, error)
	snapshot func() (map[uint32]Info, error)
	ttl      time.Duration
	now      func() time.Time
	log      log.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithTTL sets the cache lifetime of a resolved name.
func WithTTL(d time.Duration) Option { return func(r *Resolver) { r.ttl = d } }

// WithLookup replaces the per-pid OS lookup.
func WithLookup(f func(pid uint32) (string, error)) Option {
	return func(r *Resolver) { r.lookup = f }
}

// WithSnapshot replaces the whole-system enumeration.
func WithSnapshot(f func() (map[uint32]Info, error)) Option {
	return func(r *Resolver) { r.snapshot = f }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		cache:    maps.NewConcurrentMap[uint32, entry](),
		lookup:   lookupName,
		snapshot: Snapshot,
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      logger.NewLoggerWithContext("procinfo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProcessName returns the lower-cased image name of pid, or "" when it
// cannot be resolved.
func (r *Resolver) ProcessName(pid uint32) string {
	now := r.now()
	if e, ok := r.cache.Load(pid); ok && now.Before(e.expires) {
		return e.name
	}

	name, err := r.lookup(pid)
	ttl := r.ttl
	if err != nil {
		name, ttl = "", negativeTTL
	}
	name = strings.ToLower(name)
	r.cache.Store(pid, entry{name: name, expires: now.Add(ttl)})
	return name
}

// Refresh loads every running process into the cache.
func (r *Resolver) Refresh() error {
	procs, err := r.snapshot()
	if err != nil {
		return err
	}
	expires := r.now().Add(r.ttl)
	for pid, info := range procs {
		r.cache.Store(pid, entry{name: strings.ToLower(info.Name), expires: expires})
	}
	r.log.Debug().Int("processes", len(procs)).Msg("Process cache refreshed")
	return nil
}

// Forget drops pid, typically on a process-exit event.
func (r *Resolver) Forget(pid uint32) { r.cache.Delete(pid) }

// Len returns the number of cached entries, expired ones included.
func (r *Resolver) Len() int { return r.cache.Len() }

// List returns a snapshot of the running processes ordered by pid.
func List() ([]Info, error) {
	procs, err := Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(procs))
	for _, info := range procs {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}
