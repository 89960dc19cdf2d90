package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Event sources.
const (
	SourceMirror    = "mirror"
	SourceProvision = "provision"
	SourceGit       = "git"
)

// Event is one workspace activity record. It is serialized as JSON on the Kafka topic.
type Event struct {
	ID           string    `json:"id"`
	Workspace    string    `json:"workspace"`
	User         string    `json:"user,omitempty"`
	Organization string    `json:"organization,omitempty"`
	EventType    string    `json:"eventType"`
	Source       string    `json:"source"`
	Path         string    `json:"path,omitempty"`
	OK           bool      `json:"ok"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewEvent returns an Event with a fresh ID and the current time.
func NewEvent(source, eventType, workspace string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Workspace: workspace,
		EventType: eventType,
		Source:    source,
		OK:        true,
		CreatedAt: time.Now().UTC(),
	}
}

// Fail marks the event as failed with err. A nil err leaves it untouched.
func (e *Event) Fail(err error) *Event {
	if err != nil {
		e.OK = false
		e.Error = err.Error()
	}
	return e
}
