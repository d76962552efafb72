package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tebeka/atexit"
	"golang.org/x/sync/errgroup"

	"etwtap/internal/etwerr"
	"etwtap/internal/event"
	"etwtap/internal/export"
	"etwtap/internal/logger"
	"etwtap/internal/metrics"
	"etwtap/internal/session"
)

// errLimitReached stops the consumers once --max-events is hit.
var errLimitReached = errors.New("event limit reached")

type runOptions struct {
	duration      time.Duration
	maxEvents     int
	json          bool
	quiet         bool
	statsInterval time.Duration
}

// liveSource is satisfied by Session and KernelSession.
type liveSource interface {
	metrics.Source
	Start() error
	Close() error
	NextEventContext(ctx context.Context) (*event.Event, error)
}

// consumer fans events from every source into the printer, the sink and
// the per-event metrics.
type consumer struct {
	opts    runOptions
	out     io.Writer
	sink    export.Sink
	counter *metrics.EventCounter
	log     log.Logger

	mu   sync.Mutex
	enc  *json.Encoder
	seen atomic.Int64
}

func (a *app) newConsumer(opts runOptions) (*consumer, error) {
	c := &consumer{
		opts:    opts,
		out:     a.out,
		counter: metrics.NewEventCounter(),
		log:     logger.NewLoggerWithContext("cli"),
		enc:     json.NewEncoder(a.out),
	}
	if ecfg := a.exportConfig(); ecfg.Path != "" {
		sink, err := export.Open(ecfg)
		if err != nil {
			return nil, err
		}
		c.sink = sink
		c.log.Info().Str("path", ecfg.Path).Str("format", string(ecfg.Format)).Msg("Exporting events")
	}
	return c, nil
}

// handle processes one event. It returns errLimitReached once the event
// limit has been consumed; events past the limit are dropped.
func (c *consumer) handle(ev *event.Event) error {
	n := c.seen.Add(1)
	if c.opts.maxEvents > 0 && n > int64(c.opts.maxEvents) {
		return errLimitReached
	}
	c.counter.Observe(ev)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opts.quiet {
		if c.opts.json {
			if err := c.enc.Encode(ev); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(c.out, ev.String())
		}
	}
	if c.sink != nil {
		if err := c.sink.Write(ev); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if c.opts.maxEvents > 0 && n == int64(c.opts.maxEvents) {
		return errLimitReached
	}
	return nil
}

// Consumed is the number of events handled, including any over the limit.
func (c *consumer) consumed() int64 {
	n := c.seen.Load()
	if c.opts.maxEvents > 0 && n > int64(c.opts.maxEvents) {
		return int64(c.opts.maxEvents)
	}
	return n
}

func (c *consumer) close() error {
	if c.sink == nil {
		return nil
	}
	return c.sink.Close()
}

// runContext applies signal handling and --duration to ctx.
func runContext(ctx context.Context, opts runOptions) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	if opts.duration <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	return ctx, func() { cancel(); stop() }
}

// runLive starts every source, consumes until a stop condition and closes
// the sources.
func (a *app) runLive(ctx context.Context, sources ...liveSource) error {
	opts := a.runOptions()
	l := logger.NewLoggerWithContext("cli")

	c, err := a.newConsumer(opts)
	if err != nil {
		return err
	}

	collector := metrics.NewSessionCollector()
	var started []liveSource
	closeAll := func() {
		for _, src := range started {
			if err := src.Close(); err != nil {
				l.Error().Err(err).Str("session", src.Name()).Msg("Failed to close session")
			}
		}
		started = nil
	}
	// A fatal exit elsewhere must still stop the OS sessions.
	atexit.Register(closeAll)

	for _, src := range sources {
		if err := src.Start(); err != nil {
			closeAll()
			c.close()
			return fmt.Errorf("starting %s: %w", src.Name(), err)
		}
		started = append(started, src)
		collector.Add(src)
		l.Info().Str("session", src.Name()).Msg("Session started")
	}

	ctx, cancel := runContext(ctx, opts)
	defer cancel()

	var srv *server
	if a.serverEnabled() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector, c.counter)
		srv = a.startServer(reg, collector)
	}

	statsDone := make(chan struct{})
	if opts.statsInterval > 0 {
		go logStats(l, collector, opts.statsInterval, statsDone)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range started {
		g.Go(func() error { return consume(gctx, src, c) })
	}
	err = g.Wait()
	close(statsDone)
	if errors.Is(err, errLimitReached) {
		err = nil
	}

	if srv != nil {
		srv.shutdown()
	}
	for _, src := range started {
		logFinalStats(l, src)
	}
	closeAll()
	err = errors.Join(err, c.close())

	l.Info().Int64("events", c.consumed()).Msg("Tracing finished")
	return err
}

// consume reads src until its producer finishes or ctx ends.
func consume(ctx context.Context, src liveSource, c *consumer) error {
	for {
		ev, err := src.NextEventContext(ctx)
		if err != nil {
			if errors.Is(err, etwerr.ErrChannel) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.handle(ev); err != nil {
			return err
		}
	}
}

func logStats(l log.Logger, sources *metrics.SessionCollector, every time.Duration, done <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			for _, src := range sources.Sources() {
				s := src.Stats()
				l.Info().Str("session", src.Name()).
					Uint64("received", s.EventsReceived).
					Uint64("processed", s.EventsProcessed).
					Uint64("lost", s.EventsLost).
					Uint64("filtered", s.EventsFiltered).
					Float64("events_per_sec", s.EventsPerSecond).
					Msg("Session stats")
			}
		}
	}
}

func logFinalStats(l log.Logger, src metrics.Source) {
	s := src.Stats()
	e := l.Info()
	if s.HasLoss() {
		e = l.Warn()
	}
	e.Str("session", src.Name()).
		Uint64("received", s.EventsReceived).
		Uint64("processed", s.EventsProcessed).
		Uint64("lost", s.EventsLost).
		Uint64("buffers_lost", s.BuffersLost).
		Float64("loss_pct", s.LossPercentage()).
		Msg("Session summary")
}

// replay consumes a FileReader until the end of the file or a stop
// condition.
func (a *app) replay(ctx context.Context, r *session.FileReader) error {
	opts := a.runOptions()
	l := logger.NewLoggerWithContext("cli")

	c, err := a.newConsumer(opts)
	if err != nil {
		return err
	}

	ctx, cancel := runContext(ctx, opts)
	defer cancel()
	// Close unblocks a replay waiting on a full channel.
	stopAfter := context.AfterFunc(ctx, func() { r.Close() })
	defer stopAfter()

	if err := r.Start(); err != nil {
		c.close()
		return err
	}

	var handleErr error
	for ev := range r.All() {
		if handleErr = c.handle(ev); handleErr != nil {
			break
		}
	}
	if errors.Is(handleErr, errLimitReached) {
		handleErr = nil
	}

	closeErr := r.Close()
	logFinalStats(l, r)
	l.Info().Int64("events", c.consumed()).Str("path", r.Path()).Msg("Replay finished")
	return errors.Join(handleErr, r.Err(), closeErr, c.close())
}
