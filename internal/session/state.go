package session

import "fmt"

// State is the lifecycle position of a session or reader.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopped
	// StateError is terminal for a FileReader whose file could not be opened.
	// A live session enters it when processing outlives a failed stop and
	// leaves it once processing returns.
	StateError
	// StateConsumed is terminal for a FileReader that reached end of file.
	StateConsumed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	case StateConsumed:
		return "consumed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}
