// Package event defines the normalized trace event produced by sessions and
// file readers, and the typed property values it carries.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LevelInformation is the level assigned by New.
const LevelInformation uint8 = 4

// Event is one normalized trace record. It is built once by the session
// callback and not modified afterwards.
type Event struct {
	ProviderID        uuid.UUID
	ProviderName      string
	EventID           uint16
	Version           uint8
	Opcode            uint8
	Level             uint8
	Keywords          uint64
	ProcessID         uint32
	ThreadID          uint32
	Timestamp         time.Time
	ActivityID        *uuid.UUID
	RelatedActivityID *uuid.UUID
	Task              uint16
	Channel           uint8
	Properties        map[string]Value

	// RawData holds the undecoded user payload when no schema was available.
	RawData []byte
	// Stack holds captured return addresses, innermost first.
	Stack []uint64
}

// New returns an event for provider and id stamped with the current time.
func New(provider uuid.UUID, id uint16) *Event {
	return &Event{
		ProviderID: provider,
		EventID:    id,
		Level:      LevelInformation,
		Timestamp:  time.Now().UTC(),
		Properties: make(map[string]Value),
	}
}

// Get returns the named property.
func (e *Event) Get(name string) (Value, bool) {
	v, ok := e.Properties[name]
	return v, ok
}

func (e *Event) GetString(name string) (string, bool) {
	v, ok := e.Properties[name]
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (e *Event) GetUint32(name string) (uint32, bool) {
	v, ok := e.Properties[name]
	if !ok {
		return 0, false
	}
	return v.AsUint32()
}

func (e *Event) GetUint64(name string) (uint64, bool) {
	v, ok := e.Properties[name]
	if !ok {
		return 0, false
	}
	return v.AsUint64()
}

func (e *Event) String() string {
	name := e.ProviderName
	if name == "" {
		name = e.ProviderID.String()
	}
	return fmt.Sprintf("%s %s id=%d op=%d lvl=%d pid=%d tid=%d props=%d",
		e.Timestamp.Format(time.RFC3339Nano), name, e.EventID, e.Opcode,
		e.Level, e.ProcessID, e.ThreadID, len(e.Properties))
}

type jsonEvent struct {
	ProviderID        uuid.UUID        `json:"provider_id"`
	ProviderName      string           `json:"provider_name,omitempty"`
	EventID           uint16           `json:"event_id"`
	Version           uint8            `json:"version"`
	Opcode            uint8            `json:"opcode"`
	Level             uint8            `json:"level"`
	Keywords          string           `json:"keywords"`
	ProcessID         uint32           `json:"process_id"`
	ThreadID          uint32           `json:"thread_id"`
	Timestamp         time.Time        `json:"timestamp"`
	ActivityID        *uuid.UUID       `json:"activity_id,omitempty"`
	RelatedActivityID *uuid.UUID       `json:"related_activity_id,omitempty"`
	Task              uint16           `json:"task"`
	Channel           uint8            `json:"channel"`
	Properties        map[string]Value `json:"properties"`
	RawData           []byte           `json:"raw_data,omitempty"`
	Stack             []uint64         `json:"stack,omitempty"`
}

// MarshalJSON writes keywords as a hex string so 64-bit masks survive
// JavaScript consumers.
func (e *Event) MarshalJSON() ([]byte, error) {
	props := e.Properties
	if props == nil {
		props = map[string]Value{}
	}
	return json.Marshal(jsonEvent{
		ProviderID:        e.ProviderID,
		ProviderName:      e.ProviderName,
		EventID:           e.EventID,
		Version:           e.Version,
		Opcode:            e.Opcode,
		Level:             e.Level,
		Keywords:          fmt.Sprintf("0x%x", e.Keywords),
		ProcessID:         e.ProcessID,
		ThreadID:          e.ThreadID,
		Timestamp:         e.Timestamp,
		ActivityID:        e.ActivityID,
		RelatedActivityID: e.RelatedActivityID,
		Task:              e.Task,
		Channel:           e.Channel,
		Properties:        props,
		RawData:           e.RawData,
		Stack:             e.Stack,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var je jsonEvent
	if err := json.Unmarshal(data, &je); err != nil {
		return err
	}
	var kw uint64
	if je.Keywords != "" {
		if _, err := fmt.Sscanf(je.Keywords, "0x%x", &kw); err != nil {
			return fmt.Errorf("event: bad keywords %q: %w", je.Keywords, err)
		}
	}
	props := je.Properties
	if props == nil {
		props = make(map[string]Value)
	}
	*e = Event{
		ProviderID:        je.ProviderID,
		ProviderName:      je.ProviderName,
		EventID:           je.EventID,
		Version:           je.Version,
		Opcode:            je.Opcode,
		Level:             je.Level,
		Keywords:          kw,
		ProcessID:         je.ProcessID,
		ThreadID:          je.ThreadID,
		Timestamp:         je.Timestamp,
		ActivityID:        je.ActivityID,
		RelatedActivityID: je.RelatedActivityID,
		Task:              je.Task,
		Channel:           je.Channel,
		Properties:        props,
		RawData:           je.RawData,
		Stack:             je.Stack,
	}
	return nil
}
