package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"etwtap/internal/event"
)

// CSVHeader is the fixed column set. Properties are one JSON column so
// events with different schemas share a header.
var CSVHeader = []string{
	"timestamp", "provider_id", "provider_name", "event_id", "version",
	"opcode", "level", "task", "keywords", "process_id", "thread_id",
	"activity_id", "properties",
}

// CSV writes one row per event under CSVHeader.
type CSV struct {
	file *os.File
	w    *csv.Writer
	row  []string
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	c := &CSV{file: f, w: csv.NewWriter(f), row: make([]string, len(CSVHeader))}
	if err := c.w.Write(CSVHeader); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *CSV) Write(ev *event.Event) error {
	props, err := json.Marshal(ev.Properties)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}
	activity := ""
	if ev.ActivityID != nil {
		activity = ev.ActivityID.String()
	}

	c.row[0] = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	c.row[1] = ev.ProviderID.String()
	c.row[2] = ev.ProviderName
	c.row[3] = strconv.FormatUint(uint64(ev.EventID), 10)
	c.row[4] = strconv.FormatUint(uint64(ev.Version), 10)
	c.row[5] = strconv.FormatUint(uint64(ev.Opcode), 10)
	c.row[6] = strconv.FormatUint(uint64(ev.Level), 10)
	c.row[7] = strconv.FormatUint(uint64(ev.Task), 10)
	c.row[8] = "0x" + strconv.FormatUint(ev.Keywords, 16)
	c.row[9] = strconv.FormatUint(uint64(ev.ProcessID), 10)
	c.row[10] = strconv.FormatUint(uint64(ev.ThreadID), 10)
	c.row[11] = activity
	c.row[12] = string(props)
	return c.w.Write(c.row)
}

func (c *CSV) Close() error {
	c.w.Flush()
	return errors.Join(c.w.Error(), c.file.Close())
}
