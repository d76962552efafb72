package metrics

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etwtap/internal/event"
	"etwtap/internal/stats"
)

type fakeSource struct {
	name    string
	tracker *stats.Tracker
	running bool
}

func (f *fakeSource) Name() string              { return f.name }
func (f *fakeSource) Stats() stats.SessionStats { return f.tracker.Snapshot() }
func (f *fakeSource) Pending() (int, int)       { return 2, 10 }
func (f *fakeSource) IsRunning() bool           { return f.running }

type statsOnly struct{ tracker *stats.Tracker }

func (s statsOnly) Name() string              { return "replay" }
func (s statsOnly) Stats() stats.SessionStats { return s.tracker.Snapshot() }

func TestSessionCollector(t *testing.T) {
	tr := stats.NewTracker()
	for range 5 {
		tr.RecordEventReceived()
	}
	tr.RecordEventProcessed()
	tr.RecordEventsLost(3)
	tr.RecordEventFiltered()

	c := NewSessionCollector(&fakeSource{name: "s1", tracker: tr, running: true})

	expected := `
# HELP etwtap_events_lost_total Total number of events dropped, by a full channel or by the backend.
# TYPE etwtap_events_lost_total counter
etwtap_events_lost_total{session="s1"} 3
# HELP etwtap_events_received_total Total number of events delivered by the tracing backend.
# TYPE etwtap_events_received_total counter
etwtap_events_received_total{session="s1"} 5
# HELP etwtap_channel_pending Events waiting in the session channel.
# TYPE etwtap_channel_pending gauge
etwtap_channel_pending{session="s1"} 2
# HELP etwtap_session_running 1 while the session is running, 0 otherwise.
# TYPE etwtap_session_running gauge
etwtap_session_running{session="s1"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"etwtap_events_lost_total", "etwtap_events_received_total",
		"etwtap_channel_pending", "etwtap_session_running"))
}

func TestSessionCollectorOptionalGauges(t *testing.T) {
	c := NewSessionCollector()
	assert.Zero(t, testutil.CollectAndCount(c))

	c.Add(statsOnly{tracker: stats.NewTracker()})
	// Eight series without the pending, capacity and running gauges.
	assert.Equal(t, 8, testutil.CollectAndCount(c))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
}

func TestEventCounter(t *testing.T) {
	e := NewEventCounter()
	guid := uuid.MustParse("22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716")

	named := event.New(guid, 1)
	named.ProviderName = "Microsoft-Windows-Kernel-Process"
	e.Observe(named)
	e.Observe(named)
	e.Observe(event.New(guid, 2))

	assert.Equal(t, 2, testutil.CollectAndCount(e))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.events.WithLabelValues("Microsoft-Windows-Kernel-Process", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.events.WithLabelValues(guid.String(), "2")))
}
