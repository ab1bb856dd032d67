package clone

import (
	"fmt"
	"strings"
	"time"

	"array/internal/repository"
)

// Status is the lifecycle state of a clone operation.
// Cloning is the only non-terminal state.
type Status int

const (
	// StatusCloning indicates the clone process is running
	StatusCloning Status = iota

	// StatusComplete indicates the clone process exited with code 0
	StatusComplete

	// StatusError indicates a nonzero exit or a spawn failure
	StatusError
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusCloning:
		return "cloning"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Operation tracks a single clone of a repository into TargetPath.
type Operation struct {
	ID         string
	Repository repository.Identifier
	TargetPath string
	Status     Status
	// Message is the last progress line while cloning, or the outcome once terminal.
	Message   string
	StartedAt time.Time
}

func (op Operation) String() string {
	return fmt.Sprintf("%s %s → %s (%s)", op.ID, op.Repository, op.TargetPath, op.Status)
}

// EventKind distinguishes progress output from terminal notifications.
type EventKind int

const (
	EventProgress EventKind = iota
	EventComplete
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ProgressEvent is delivered to subscribers of an Orchestrator.
type ProgressEvent struct {
	OperationID string
	Repository  repository.Identifier
	TargetPath  string
	Kind        EventKind
	// Message is the raw output chunk for EventProgress, exactly as the
	// cloner emitted it, and the outcome for terminal events.
	Message string
}

// Lines splits Message into its non-blank lines. Carriage returns from
// progress meters count as line breaks.
func (ev ProgressEvent) Lines() []string {
	var lines []string
	for _, line := range strings.FieldsFunc(ev.Message, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
