package event

import (
	"time"

	"github.com/google/uuid"
)

// Ticks between 1601-01-01 and 1970-01-01 in 100ns units.
const filetimeEpochOffset int64 = 116444736000000000

const ticksPerSecond = 10_000_000

// FiletimeToTime converts a FILETIME tick count to UTC.
func FiletimeToTime(ticks int64) time.Time {
	unix := ticks - filetimeEpochOffset
	secs := unix / ticksPerSecond
	rem := unix % ticksPerSecond
	if rem < 0 {
		secs--
		rem += ticksPerSecond
	}
	return time.Unix(secs, rem*100).UTC()
}

// TimeToFiletime is the inverse of FiletimeToTime, truncating to 100ns.
func TimeToFiletime(t time.Time) int64 {
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100 + filetimeEpochOffset
}

// OptionalGUID returns nil for the all-zero GUID.
func OptionalGUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
