// Package provider describes the user-mode ETW providers a session enables
// and the policy for matching their events.
package provider

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"etwtap/internal/etwerr"
	"etwtap/internal/filter"
)

// TraceLevel is the ETW verbosity ranking. Lower is more severe.
type TraceLevel uint8

const (
	LevelAlways TraceLevel = iota
	LevelCritical
	LevelError
	LevelWarning
	LevelInformation
	LevelVerbose
)

var levelNames = [...]string{"always", "critical", "error", "warning", "information", "verbose"}

func (l TraceLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// LevelFromUint8 clamps anything above Verbose to Verbose.
func LevelFromUint8(v uint8) TraceLevel {
	if v >= uint8(LevelVerbose) {
		return LevelVerbose
	}
	return TraceLevel(v)
}

// ParseLevel accepts a level name (case-insensitive, "info" and "warn"
// included) or a number 0-255.
func ParseLevel(s string) (TraceLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "logalways":
		return LevelAlways, nil
	case "critical":
		return LevelCritical, nil
	case "error":
		return LevelError, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "information", "info":
		return LevelInformation, nil
	case "verbose", "":
		return LevelVerbose, nil
	}
	var n uint8
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
		return LevelFromUint8(n), nil
	}
	return 0, etwerr.InvalidConfig("unknown trace level %q", s)
}

// Enable-property bits passed through to the backend.
const (
	PropertyStackTrace      uint32 = 0x1
	PropertySid             uint32 = 0x2
	PropertyTsID            uint32 = 0x4
	PropertyProcessStartKey uint32 = 0x8
)

// AnyKeyword is the KeywordsAny sentinel meaning no restriction.
const AnyKeyword uint64 = ^uint64(0)

// Provider is one user-mode event source and its enable parameters.
type Provider struct {
	GUID        uuid.UUID
	Name        string
	Level       TraceLevel
	KeywordsAny uint64
	KeywordsAll uint64
	Filters     []filter.EventFilter
	Enabled     bool
	StackTrace  bool

	// EnableProperties carries extra Property* bits. StackTrace is ORed in
	// by EnableFlags.
	EnableProperties uint32
}

// NewFromGUID returns an enabled provider with verbose level and no keyword
// restriction.
func NewFromGUID(guid uuid.UUID) Provider {
	return Provider{
		GUID:        guid,
		Level:       LevelVerbose,
		KeywordsAny: AnyKeyword,
		Enabled:     true,
	}
}

// New parses guid and returns a provider with default settings.
func New(guid string) (Provider, error) {
	g, err := ParseGUID(guid)
	if err != nil {
		return Provider{}, err
	}
	return NewFromGUID(g), nil
}

// ParseGUID accepts a GUID with or without braces.
func ParseGUID(s string) (uuid.UUID, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "{"), "}")
	if len(trimmed) != 36 {
		return uuid.Nil, etwerr.InvalidProviderGUID(s)
	}
	g, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, etwerr.InvalidProviderGUID(s)
	}
	return g, nil
}

// DisplayName returns Name, or the GUID when Name is empty.
func (p Provider) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.GUID.String()
}

// EnableFlags returns the backend enable-property bits.
func (p Provider) EnableFlags() uint32 {
	flags := p.EnableProperties
	if p.StackTrace {
		flags |= PropertyStackTrace
	}
	return flags
}

// MatchesEvent applies level, keyword and event-identity filters.
func (p Provider) MatchesEvent(id uint16, opcode uint8, level uint8, keywords uint64) bool {
	if level > uint8(p.Level) {
		return false
	}
	if p.KeywordsAny != 0 && p.KeywordsAny != AnyKeyword && keywords&p.KeywordsAny == 0 {
		return false
	}
	if keywords&p.KeywordsAll != p.KeywordsAll {
		return false
	}
	for _, f := range p.Filters {
		if !f.Matches(id, opcode) {
			return false
		}
	}
	return true
}

// MatchesProcess applies the process filters. name may be empty.
func (p Provider) MatchesProcess(pid uint32, name string) bool {
	for _, f := range p.Filters {
		if !f.MatchesProcess(pid, name) {
			return false
		}
	}
	return true
}

// HasProcessFilters reports whether any filter governs the process axis.
func (p Provider) HasProcessFilters() bool {
	for _, f := range p.Filters {
		if f.IsProcessFilter() {
			return true
		}
	}
	return false
}

// NeedsProcessName reports whether a ProcessName filter is attached.
func (p Provider) NeedsProcessName() bool {
	for _, f := range p.Filters {
		if f.Kind() == filter.KindProcessName {
			return true
		}
	}
	return false
}

// EventIDHints returns the union of ids from EventIDs filters, or nil when
// there are none. Only inclusive lists can be pushed to the backend.
func (p Provider) EventIDHints() []uint16 {
	var ids []uint16
	seen := map[uint16]struct{}{}
	for _, f := range p.Filters {
		if f.Kind() != filter.KindEventIDs {
			continue
		}
		for _, id := range f.EventIDList() {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// ProcessIDHints returns the ids of ProcessID filters.
func (p Provider) ProcessIDHints() []uint32 {
	var pids []uint32
	for _, f := range p.Filters {
		if pid, ok := f.PID(); ok {
			pids = append(pids, pid)
		}
	}
	return pids
}

// Validate rejects a nil GUID.
func (p Provider) Validate() error {
	if p.GUID == uuid.Nil {
		return etwerr.InvalidProviderGUID(p.GUID.String())
	}
	return nil
}
