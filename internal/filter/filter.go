// Package filter provides the event predicates attached to providers.
//
// Event-identity filters (ids, opcodes, custom predicates) and process
// filters are independent axes. Each filter passes on the axis it does not
// govern, so a Builder can AND them freely.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Predicate decides on an event from its id and opcode.
type Predicate interface {
	Match(id uint16, opcode uint8) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(id uint16, opcode uint8) bool

func (f PredicateFunc) Match(id uint16, opcode uint8) bool { return f(id, opcode) }

// Kind is the variant of an EventFilter.
type Kind uint8

const (
	KindEventIDs Kind = iota + 1
	KindOpcodes
	KindProcessID
	KindProcessName
	KindExcludeEventIDs
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindEventIDs:
		return "event_ids"
	case KindOpcodes:
		return "opcodes"
	case KindProcessID:
		return "process_id"
	case KindProcessName:
		return "process_name"
	case KindExcludeEventIDs:
		return "exclude_event_ids"
	case KindCustom:
		return "custom"
	}
	return "unknown"
}

// ErrNotSerializable is returned when marshaling a Custom filter.
var ErrNotSerializable = errors.New("custom filters cannot be serialized")

// EventFilter is one of a closed set of variants; build it with the
// constructors below.
type EventFilter struct {
	kind    Kind
	ids     map[uint16]struct{}
	opcodes map[uint8]struct{}
	pid     uint32
	name    string // lowercased
	pred    Predicate
}

// EventIDs passes events whose id is in ids.
func EventIDs(ids ...uint16) EventFilter {
	return EventFilter{kind: KindEventIDs, ids: idSet(ids)}
}

// ExcludeEventIDs passes events whose id is not in ids.
func ExcludeEventIDs(ids ...uint16) EventFilter {
	return EventFilter{kind: KindExcludeEventIDs, ids: idSet(ids)}
}

// Opcodes passes events whose opcode is in ops.
func Opcodes(ops ...uint8) EventFilter {
	set := make(map[uint8]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return EventFilter{kind: KindOpcodes, opcodes: set}
}

// ProcessID passes events emitted by pid.
func ProcessID(pid uint32) EventFilter {
	return EventFilter{kind: KindProcessID, pid: pid}
}

// ProcessName passes events whose process name contains substr, ignoring
// case.
func ProcessName(substr string) EventFilter {
	return EventFilter{kind: KindProcessName, name: strings.ToLower(substr)}
}

// Custom wraps a caller predicate. A nil predicate passes everything.
func Custom(p Predicate) EventFilter {
	return EventFilter{kind: KindCustom, pred: p}
}

func idSet(ids []uint16) map[uint16]struct{} {
	set := make(map[uint16]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (f EventFilter) Kind() Kind { return f.kind }

// Matches evaluates the event-identity axis. Process filters always pass.
func (f EventFilter) Matches(id uint16, opcode uint8) bool {
	switch f.kind {
	case KindEventIDs:
		_, ok := f.ids[id]
		return ok
	case KindExcludeEventIDs:
		_, ok := f.ids[id]
		return !ok
	case KindOpcodes:
		_, ok := f.opcodes[opcode]
		return ok
	case KindCustom:
		return f.pred == nil || f.pred.Match(id, opcode)
	}
	return true
}

// MatchesProcess evaluates the process axis. An empty name means the process
// name is unknown, which fails a ProcessName filter.
func (f EventFilter) MatchesProcess(pid uint32, name string) bool {
	switch f.kind {
	case KindProcessID:
		return f.pid == pid
	case KindProcessName:
		return name != "" && strings.Contains(strings.ToLower(name), f.name)
	}
	return true
}

// IsProcessFilter reports whether f governs the process axis.
func (f EventFilter) IsProcessFilter() bool {
	return f.kind == KindProcessID || f.kind == KindProcessName
}

// EventIDList returns the ids of an EventIDs or ExcludeEventIDs filter in
// ascending order.
func (f EventFilter) EventIDList() []uint16 {
	out := make([]uint16, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// OpcodeList returns the opcodes of an Opcodes filter in ascending order.
func (f EventFilter) OpcodeList() []uint8 {
	out := make([]uint8, 0, len(f.opcodes))
	for op := range f.opcodes {
		out = append(out, op)
	}
	slices.Sort(out)
	return out
}

// PID returns the process id of a ProcessID filter.
func (f EventFilter) PID() (uint32, bool) {
	return f.pid, f.kind == KindProcessID
}

// NameSubstring returns the lowercased needle of a ProcessName filter.
func (f EventFilter) NameSubstring() (string, bool) {
	return f.name, f.kind == KindProcessName
}

func (f EventFilter) String() string {
	text, err := f.MarshalText()
	if err != nil {
		return "custom"
	}
	return string(text)
}

// MarshalText renders f as "kind:args". Custom filters are never persisted.
func (f EventFilter) MarshalText() ([]byte, error) {
	var args []string
	switch f.kind {
	case KindEventIDs, KindExcludeEventIDs:
		for _, id := range f.EventIDList() {
			args = append(args, strconv.FormatUint(uint64(id), 10))
		}
	case KindOpcodes:
		for _, op := range f.OpcodeList() {
			args = append(args, strconv.FormatUint(uint64(op), 10))
		}
	case KindProcessID:
		args = append(args, strconv.FormatUint(uint64(f.pid), 10))
	case KindProcessName:
		args = append(args, f.name)
	case KindCustom:
		return nil, ErrNotSerializable
	default:
		return nil, fmt.Errorf("filter: unknown kind %d", f.kind)
	}
	return []byte(f.kind.String() + ":" + strings.Join(args, ",")), nil
}

// UnmarshalText parses the form written by MarshalText.
func (f *EventFilter) UnmarshalText(text []byte) error {
	kind, rest, ok := strings.Cut(string(text), ":")
	if !ok {
		return fmt.Errorf("filter: missing ':' in %q", text)
	}
	var fields []string
	if rest != "" {
		fields = strings.Split(rest, ",")
	}
	parseUints := func(bits int) ([]uint64, error) {
		out := make([]uint64, 0, len(fields))
		for _, s := range fields {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 0, bits)
			if err != nil {
				return nil, fmt.Errorf("filter: %s: %w", kind, err)
			}
			out = append(out, v)
		}
		return out, nil
	}
	switch kind {
	case "event_ids", "exclude_event_ids":
		vals, err := parseUints(16)
		if err != nil {
			return err
		}
		ids := make([]uint16, len(vals))
		for i, v := range vals {
			ids[i] = uint16(v)
		}
		if kind == "event_ids" {
			*f = EventIDs(ids...)
		} else {
			*f = ExcludeEventIDs(ids...)
		}
	case "opcodes":
		vals, err := parseUints(8)
		if err != nil {
			return err
		}
		ops := make([]uint8, len(vals))
		for i, v := range vals {
			ops[i] = uint8(v)
		}
		*f = Opcodes(ops...)
	case "process_id":
		vals, err := parseUints(32)
		if err != nil {
			return err
		}
		if len(vals) != 1 {
			return fmt.Errorf("filter: process_id takes exactly one id")
		}
		*f = ProcessID(uint32(vals[0]))
	case "process_name":
		if rest == "" {
			return fmt.Errorf("filter: process_name needs a name")
		}
		*f = ProcessName(rest)
	case "custom":
		return ErrNotSerializable
	default:
		return fmt.Errorf("filter: unknown kind %q", kind)
	}
	return nil
}
