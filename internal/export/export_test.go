package export

import (
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etwtap/internal/etwerr"
	"etwtap/internal/event"
)

var testProvider = uuid.MustParse("22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716")

func sampleEvents(n int) []*event.Event {
	out := make([]*event.Event, 0, n)
	for i := range n {
		ev := event.New(testProvider, uint16(i+1))
		ev.ProviderName = "Microsoft-Windows-Kernel-Process"
		ev.ProcessID = 1000 + uint32(i)
		ev.Keywords = 0x8000000000000010
		ev.Timestamp = time.Date(2024, 1, 2, 3, 4, 5, i, time.UTC)
		ev.Properties["ImageName"] = event.String("notepad.exe")
		ev.Properties["ProcessID"] = event.Uint32(ev.ProcessID)
		out = append(out, ev)
	}
	return out
}

func writeAll(t *testing.T, s Sink, events []*event.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, s.Write(ev))
	}
	require.NoError(t, s.Close())
}

func TestJSONL(t *testing.T) {
	for name, compress := range map[string]bool{"plain": false, "zstd": true} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "events.jsonl")
			s, err := NewJSONL(path, compress)
			require.NoError(t, err)
			events := sampleEvents(3)
			writeAll(t, s, events)

			back, err := ReadJSONL(path)
			require.NoError(t, err)
			require.Len(t, back, 3)
			for i, ev := range back {
				assert.Equal(t, events[i].EventID, ev.EventID)
				assert.Equal(t, events[i].Keywords, ev.Keywords)
				name, ok := ev.GetString("ImageName")
				assert.True(t, ok)
				assert.Equal(t, "notepad.exe", name)
			}
		})
	}
}

func TestCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	s, err := NewCSV(path)
	require.NoError(t, err)
	writeAll(t, s, sampleEvents(2))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, "2", rows[2][3])
	assert.Equal(t, "0x8000000000000010", rows[1][8])
	assert.Equal(t, "1001", rows[2][9])
	assert.JSONEq(t, `{"ImageName":"notepad.exe","ProcessID":1001}`, rows[2][12])
}

func TestSQLiteBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := NewSQLite(path, 2)
	require.NoError(t, err)

	events := sampleEvents(5)
	for _, ev := range events[:3] {
		require.NoError(t, s.Write(ev))
	}
	n, err := s.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "one full batch committed")

	writeAll(t, s, events[3:])

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.EqualValues(t, 5, n)

	var keywords int64
	var name string
	require.NoError(t, db.QueryRow(`SELECT keywords, provider_name FROM events WHERE event_id = 4`).Scan(&keywords, &name))
	assert.Equal(t, events[3].Keywords, uint64(keywords))
	assert.Equal(t, "Microsoft-Windows-Kernel-Process", name)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Path: filepath.Join(dir, "out.csv")})
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, s)
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: filepath.Join(dir, "out.jsonl.zst"), Compress: true})
	require.NoError(t, err)
	assert.IsType(t, &JSONL{}, s)
	require.NoError(t, s.Close())

	s, err = Open(Config{Format: "sqlite3", Path: filepath.Join(dir, "out")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	for _, cfg := range []Config{
		{Format: FormatCSV},
		{Format: "parquet", Path: "x"},
		{Path: filepath.Join(dir, "out.bin")},
		{Format: FormatCSV, Path: "x.csv", Compress: true},
		{Format: FormatSQLite, Path: "x.db", BatchSize: -1},
	} {
		_, err := Open(cfg)
		assert.ErrorIs(t, err, etwerr.ErrInvalidConfig, "%+v", cfg)
	}
}
