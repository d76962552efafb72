package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etwtap/internal/backend"
	"etwtap/internal/backend/backendtest"
	"etwtap/internal/etwerr"
	"etwtap/internal/event"
	"etwtap/internal/export"
	"etwtap/internal/maps"
	"etwtap/internal/metrics"
	"etwtap/internal/provider"
	"etwtap/internal/stats"
)

func tcpRecord(id uint16, pid uint32) backendtest.Emit {
	return backendtest.Emit{Record: backend.Record{
		ProviderID: provider.TCPIPGUID,
		EventID:    id,
		Level:      4,
		ProcessID:  pid,
		ThreadID:   pid + 1,
		Timestamp:  event.TimeToFiletime(time.Now()),
	}}
}

// run executes args against a fresh command tree backed by fake.
func run(t *testing.T, fake *backendtest.Fake, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&app{v: viper.New(), backend: fake, out: &out})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", "", "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if sc.Text() != "" {
			out = append(out, sc.Text())
		}
	}
	return out
}

func TestTraceMaxEvents(t *testing.T) {
	fake := backendtest.New()
	fake.Script = []backendtest.Emit{tcpRecord(10, 100), tcpRecord(11, 100), tcpRecord(12, 100)}

	out, err := run(t, fake, "trace", "Microsoft-Windows-TCPIP", "--max-events", "2", "--name", "cli-test")
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "Microsoft-Windows-TCPIP id=10")
	assert.Contains(t, got[1], "id=11")

	cfgs := fake.TraceConfigs()
	require.Len(t, cfgs, 1)
	assert.Equal(t, "cli-test", cfgs[0].Name)
	assert.True(t, fake.LastTrace().Stopped())
}

func TestTraceJSON(t *testing.T) {
	fake := backendtest.New()
	fake.Script = []backendtest.Emit{tcpRecord(10, 100), tcpRecord(11, 200)}

	out, err := run(t, fake, "trace", provider.TCPIPGUID.String(), "--json", "--max-events", "1", "--pid", "200")
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 1)
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[0]), &ev))
	assert.EqualValues(t, 11, ev["event_id"])
	assert.EqualValues(t, 200, ev["process_id"])
}

func TestTraceExport(t *testing.T) {
	fake := backendtest.New()
	fake.Script = []backendtest.Emit{tcpRecord(1, 100), tcpRecord(2, 100), tcpRecord(3, 100)}
	path := filepath.Join(t.TempDir(), "out.jsonl")

	out, err := run(t, fake, "trace", "Microsoft-Windows-TCPIP", "-q", "--max-events", "3", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, lines(out))

	events, err := export.ReadJSONL(path)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint16(3), events[2].EventID)
}

func TestTraceErrors(t *testing.T) {
	_, err := run(t, backendtest.New(), "trace")
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)

	_, err = run(t, backendtest.New(), "trace", "Not-A-Provider")
	assert.ErrorIs(t, err, etwerr.ErrInvalidProviderGUID)

	_, err = run(t, backendtest.New(), "trace", "Microsoft-Windows-TCPIP", "--event-id", "70000")
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)

	fake := backendtest.New()
	fake.StartErr = errors.New("access denied")
	_, err = run(t, fake, "trace", "Microsoft-Windows-TCPIP", "--max-events", "1")
	assert.ErrorIs(t, err, etwerr.ErrStartTraceFailed)
}

func TestTraceWithKernel(t *testing.T) {
	fake := backendtest.New()
	fake.Script = []backendtest.Emit{tcpRecord(10, 100)}

	_, err := run(t, fake, "trace", "Microsoft-Windows-TCPIP", "--kernel", "process,network",
		"--max-events", "1", "-q")
	require.NoError(t, err)

	kcfgs := fake.KernelConfigs()
	require.Len(t, kcfgs, 1)
	assert.Len(t, fake.Traces(), 2)
	for _, tr := range fake.Traces() {
		assert.True(t, tr.Stopped(), tr.Name())
	}
}

func TestKernelCommand(t *testing.T) {
	fake := backendtest.New()
	fake.Script = []backendtest.Emit{tcpRecord(1, 4), tcpRecord(2, 4)}

	out, err := run(t, fake, "kernel", "process", "--max-events", "2")
	require.NoError(t, err)
	assert.Len(t, lines(out), 2)
	require.Len(t, fake.KernelConfigs(), 1)

	_, err = run(t, backendtest.New(), "kernel", "bogus")
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.etl")
	require.NoError(t, os.WriteFile(path, []byte("etl"), 0o644))

	fake := backendtest.New()
	fake.Files[path] = []backendtest.Emit{tcpRecord(1, 10), tcpRecord(2, 10), tcpRecord(3, 10), tcpRecord(4, 10)}

	out, err := run(t, fake, "replay", path, "--capacity", "1")
	require.NoError(t, err)
	assert.Len(t, lines(out), 4, "replay never drops events")

	out, err = run(t, fake, "replay", path, "--max-events", "2")
	require.NoError(t, err)
	assert.Len(t, lines(out), 2)

	_, err = run(t, fake, "replay", filepath.Join(t.TempDir(), "missing.etl"))
	assert.ErrorIs(t, err, etwerr.ErrFileNotFound)
}

func TestProvidersCommand(t *testing.T) {
	out, err := run(t, backendtest.New(), "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "Microsoft-Windows-DNS-Client")
	assert.Contains(t, out, provider.DNSClientGUID.String())
	assert.Contains(t, out, "session-watch")
	assert.Contains(t, out, "KERNEL CATEGORY")
	assert.Contains(t, out, "image_load")
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etwtap.toml")

	out, err := run(t, backendtest.New(), "config", "generate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated "+path)
	assert.FileExists(t, path)

	out, err = run(t, backendtest.New(), "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK")

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[session]\nchannel_capacity = 0\n"), 0o644))
	_, err = run(t, backendtest.New(), "config", "validate", "--config", bad)
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)
}

func TestMapImplementationFromConfig(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, maps.SetImplementation("")) })
	path := filepath.Join(t.TempDir(), "etwtap.toml")
	require.NoError(t, os.WriteFile(path, []byte("[session]\nmap_implementation = \"cornelk\"\n"), 0o644))

	fake := backendtest.New()
	fake.Script = []backendtest.Emit{tcpRecord(1, 1)}
	_, err := run(t, fake, "trace", "Microsoft-Windows-TCPIP", "--config", path, "--max-events", "1", "-q")
	require.NoError(t, err)
	assert.Equal(t, "cornelk", maps.Implementation())

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[session]\nmap_implementation = \"btree\"\n"), 0o644))
	_, err = run(t, backendtest.New(), "config", "validate", "--config", bad)
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)
}

func TestEnvOverride(t *testing.T) {
	fake := backendtest.New()
	fake.Script = []backendtest.Emit{tcpRecord(1, 1), tcpRecord(2, 1)}
	t.Setenv("ETWTAP_MAX_EVENTS", "1")

	out, err := run(t, fake, "trace", "Microsoft-Windows-TCPIP")
	require.NoError(t, err)
	assert.Len(t, lines(out), 1)
}

type staticSource struct {
	name string
	st   stats.SessionStats
}

func (s staticSource) Name() string              { return s.name }
func (s staticSource) Stats() stats.SessionStats { return s.st }
func (s staticSource) IsRunning() bool           { return true }

func TestRouter(t *testing.T) {
	collector := metrics.NewSessionCollector(staticSource{
		name: "etwtap",
		st:   stats.SessionStats{EventsReceived: 7, EventsLost: 2},
	})
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)
	srv := httptest.NewServer(newRouter("/metrics", false, reg, collector))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	var all []sessionStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	resp.Body.Close()
	require.Len(t, all, 1)
	assert.Equal(t, "etwtap", all[0].Name)
	require.NotNil(t, all[0].Running)
	assert.True(t, *all[0].Running)
	assert.Nil(t, all[0].Pending)
	assert.Equal(t, uint64(7), all[0].Stats.EventsReceived)

	resp, err = http.Get(srv.URL + "/stats/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, body.String(), `etwtap_events_lost_total{session="etwtap"} 2`)

	resp, err = http.Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "pprof is off")
}
