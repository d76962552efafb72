package session

import (
	"etwtap/internal/backend"
	"etwtap/internal/event"
	"etwtap/internal/provider"
)

// normalize turns a raw record into an Event. The record's slices are only
// valid during the callback, so everything kept is copied.
func normalize(rec *backend.Record, schema backend.Schema) *event.Event {
	ev := &event.Event{
		ProviderID:        rec.ProviderID,
		EventID:           rec.EventID,
		Version:           rec.Version,
		Opcode:            rec.Opcode,
		Level:             rec.Level,
		Keywords:          rec.Keywords,
		ProcessID:         rec.ProcessID,
		ThreadID:          rec.ThreadID,
		Timestamp:         event.FiletimeToTime(rec.Timestamp),
		ActivityID:        event.OptionalGUID(rec.ActivityID),
		RelatedActivityID: event.OptionalGUID(rec.RelatedActivityID),
		Task:              rec.Task,
		Channel:           rec.Channel,
	}

	if schema != nil {
		ev.ProviderName = schema.ProviderName()
		names := schema.PropertyNames()
		ev.Properties = make(map[string]event.Value, len(names))
		for _, name := range names {
			if v, ok := schema.Property(name); ok {
				ev.Properties[name] = v
			}
		}
	} else {
		ev.Properties = map[string]event.Value{}
		if len(rec.UserData) > 0 {
			ev.RawData = append([]byte(nil), rec.UserData...)
		}
	}
	if ev.ProviderName == "" {
		ev.ProviderName = provider.NameOf(rec.ProviderID)
	}
	if len(rec.Stack) > 0 {
		ev.Stack = append([]uint64(nil), rec.Stack...)
	}
	return ev
}

// processNameOf resolves the emitting process. Image-name properties are not
// used: on process start events they describe the child, not the emitter.
func processNameOf(ev *event.Event, namer ProcessNamer) string {
	if namer == nil {
		return ""
	}
	return namer.ProcessName(ev.ProcessID)
}
