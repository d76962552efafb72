// Package metrics exposes session pipeline statistics to Prometheus.
package metrics

import (
	"sync"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"

	"etwtap/internal/logger"
	"etwtap/internal/stats"
)

// Source is anything with session statistics: Session, KernelSession and
// FileReader all qualify.
type Source interface {
	Name() string
	Stats() stats.SessionStats
}

// pendingSource is implemented by live sessions with a bounded channel.
type pendingSource interface {
	Pending() (length, capacity int)
}

type runningSource interface {
	IsRunning() bool
}

// SessionCollector implements prometheus.Collector over registered sources.
// Values are read on each scrape; nothing is cached between scrapes.
type SessionCollector struct {
	mu      sync.RWMutex
	sources []Source
	log     log.Logger

	receivedDesc    *prometheus.Desc
	processedDesc   *prometheus.Desc
	lostDesc        *prometheus.Desc
	filteredDesc    *prometheus.Desc
	buffersLostDesc *prometheus.Desc
	buffersReadDesc *prometheus.Desc
	bufferCountDesc *prometheus.Desc
	rateDesc        *prometheus.Desc
	pendingDesc     *prometheus.Desc
	capacityDesc    *prometheus.Desc
	runningDesc     *prometheus.Desc
}

func NewSessionCollector(sources ...Source) *SessionCollector {
	label := []string{"session"}
	return &SessionCollector{
		sources: sources,
		log:     logger.NewLoggerWithContext("metrics"),

		receivedDesc: prometheus.NewDesc(
			"etwtap_events_received_total",
			"Total number of events delivered by the tracing backend.",
			label, nil,
		),
		processedDesc: prometheus.NewDesc(
			"etwtap_events_processed_total",
			"Total number of events placed on the session channel.",
			label, nil,
		),
		lostDesc: prometheus.NewDesc(
			"etwtap_events_lost_total",
			"Total number of events dropped, by a full channel or by the backend.",
			label, nil,
		),
		filteredDesc: prometheus.NewDesc(
			"etwtap_events_filtered_total",
			"Total number of events rejected by provider filters.",
			label, nil,
		),
		buffersLostDesc: prometheus.NewDesc(
			"etwtap_buffers_lost_total",
			"Total number of backend buffers lost.",
			label, nil,
		),
		buffersReadDesc: prometheus.NewDesc(
			"etwtap_buffers_read_total",
			"Total number of backend buffers read.",
			label, nil,
		),
		bufferCountDesc: prometheus.NewDesc(
			"etwtap_session_buffers",
			"Number of buffers allocated by the backend session.",
			label, nil,
		),
		rateDesc: prometheus.NewDesc(
			"etwtap_events_per_second",
			"Average processed events per second since the session was created.",
			label, nil,
		),
		pendingDesc: prometheus.NewDesc(
			"etwtap_channel_pending",
			"Events waiting in the session channel.",
			label, nil,
		),
		capacityDesc: prometheus.NewDesc(
			"etwtap_channel_capacity",
			"Capacity of the session channel.",
			label, nil,
		),
		runningDesc: prometheus.NewDesc(
			"etwtap_session_running",
			"1 while the session is running, 0 otherwise.",
			label, nil,
		),
	}
}

// Add registers another source. Sources are never removed; a stopped session
// keeps reporting its final counters.
func (c *SessionCollector) Add(s Source) {
	c.mu.Lock()
	c.sources = append(c.sources, s)
	c.mu.Unlock()
}

// Sources returns the registered sources in registration order.
func (c *SessionCollector) Sources() []Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Source(nil), c.sources...)
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.receivedDesc
	ch <- c.processedDesc
	ch <- c.lostDesc
	ch <- c.filteredDesc
	ch <- c.buffersLostDesc
	ch <- c.buffersReadDesc
	ch <- c.bufferCountDesc
	ch <- c.rateDesc
	ch <- c.pendingDesc
	ch <- c.capacityDesc
	ch <- c.runningDesc
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.Sources() {
		c.collectSource(ch, src)
	}
}

func (c *SessionCollector) collectSource(ch chan<- prometheus.Metric, src Source) {
	name := src.Name()
	s := src.Stats()

	counter := func(desc *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), name)
	}
	gauge := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, name)
	}

	counter(c.receivedDesc, s.EventsReceived)
	counter(c.processedDesc, s.EventsProcessed)
	counter(c.lostDesc, s.EventsLost)
	counter(c.filteredDesc, s.EventsFiltered)
	counter(c.buffersLostDesc, s.BuffersLost)
	counter(c.buffersReadDesc, s.BuffersRead)
	gauge(c.bufferCountDesc, float64(s.BufferCount))
	gauge(c.rateDesc, s.EventsPerSecond)

	if p, ok := src.(pendingSource); ok {
		length, capacity := p.Pending()
		gauge(c.pendingDesc, float64(length))
		gauge(c.capacityDesc, float64(capacity))
	}
	if r, ok := src.(runningSource); ok {
		running := 0.0
		if r.IsRunning() {
			running = 1
		}
		gauge(c.runningDesc, running)
	}

	if s.HasLoss() {
		c.log.Trace().Str("session", name).Uint64("events_lost", s.EventsLost).
			Float64("loss_pct", s.LossPercentage()).Msg("Session reporting loss")
	}
}
