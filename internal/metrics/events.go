package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"etwtap/internal/event"
)

// EventCounter counts consumed events per provider and event id.
type EventCounter struct {
	events *prometheus.CounterVec
}

func NewEventCounter() *EventCounter {
	return &EventCounter{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etwtap_events_consumed_total",
				Help: "Events read from a session, by provider and event id.",
			},
			[]string{"provider", "event_id"},
		),
	}
}

// Observe counts ev. The provider label falls back to the GUID.
func (e *EventCounter) Observe(ev *event.Event) {
	provider := ev.ProviderName
	if provider == "" {
		provider = ev.ProviderID.String()
	}
	e.events.WithLabelValues(provider, strconv.Itoa(int(ev.EventID))).Inc()
}

func (e *EventCounter) Describe(ch chan<- *prometheus.Desc) { e.events.Describe(ch) }
func (e *EventCounter) Collect(ch chan<- prometheus.Metric) { e.events.Collect(ch) }
