// oreon/sentinel · watchthelight <wtl>

package events

import (
	"time"

	"github.com/google/uuid"
)

// Builder accumulates context for a single wide event and stamps
// timing on End. One Builder per logical operation.
type Builder struct {
	evt   Event
	start time.Time
}

// Start begins a new event of the given type for a component.
func Start(eventType EventType, component string) *Builder {
	now := time.Now()
	return &Builder{
		evt: Event{
			Type:        eventType,
			OperationID: uuid.NewString(),
			Component:   component,
			StartedAt:   now,
			Success:     true,
			Fields:      make(map[string]interface{}),
		},
		start: now,
	}
}

// Set records a custom field on the event.
func (b *Builder) Set(key string, value interface{}) *Builder {
	b.evt.Fields[key] = value
	return b
}

// SetError marks the event failed and records the error string.
func (b *Builder) SetError(err error) *Builder {
	if err != nil {
		b.evt.Success = false
		b.evt.Error = err.Error()
	}
	return b
}

// End finalizes timing and returns the completed event.
func (b *Builder) End() Event {
	b.evt.Duration = time.Since(b.start)
	b.evt.DurationMs = b.evt.Duration.Milliseconds()
	return b.evt
}
