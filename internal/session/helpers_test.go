package session

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/stretchr/testify/require"

	"etwtap/internal/backend"
	"etwtap/internal/backend/backendtest"
	"etwtap/internal/event"
	"etwtap/internal/provider"
)

var testGUID = uuid.MustParse("9e814aad-3204-11d2-9a82-006008a86939")

func quietLogger() log.Logger {
	return log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

func record(id uint16, pid uint32) backend.Record {
	return backend.Record{
		ProviderID: testGUID,
		EventID:    id,
		Level:      4,
		ProcessID:  pid,
		ThreadID:   pid + 1,
		Timestamp:  event.TimeToFiletime(time.Now()),
	}
}

func newTestSession(t *testing.T, fake *backendtest.Fake, mutate func(*Config), opts ...Option) *Session {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithBackend(fake), WithLogger(quietLogger())}, opts...)
	s := New(cfg, opts...)
	require.NoError(t, s.AddProvider(provider.NewFromGUID(testGUID)))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func drain(s interface {
	NextEventTimeout(time.Duration) (*event.Event, bool)
}) []*event.Event {
	var out []*event.Event
	for {
		ev, ok := s.NextEventTimeout(time.Second)
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

type staticNamer map[uint32]string

func (n staticNamer) ProcessName(pid uint32) string { return n[pid] }
