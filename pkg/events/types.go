// oreon/sentinel · watchthelight <wtl>

package events

import (
	"time"
)

// EventType identifies the kind of operation being logged.
type EventType string

const (
	EventTypeScan       EventType = "scan"
	EventTypeIPCRequest EventType = "ipc_request"
	EventTypeBridge     EventType = "bridge"
	EventTypeThreat     EventType = "threat_detected"
	EventTypeNavigation EventType = "navigation"
	EventTypeDownload   EventType = "download"
	EventTypeDecision   EventType = "decision"
	EventTypeExport     EventType = "export"
)

// Event represents a wide event / canonical log line.
// One Event is emitted per logical operation, containing all relevant context.
type Event struct {
	// Core identification
	Type        EventType `json:"event_type"`
	OperationID string    `json:"operation_id"`
	Component   string    `json:"component"`

	// Timing
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`

	// Outcome
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// High-cardinality fields (operation-specific)
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Standard field names for consistency across events.
const (
	FieldOperationID   = "operation_id"
	FieldDurationMs    = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldTarget        = "target"
	FieldURL           = "url"
	FieldFilename      = "filename"
	FieldRequestID     = "request_id"
	FieldDownloadID    = "download_id"
	FieldTabID         = "tab_id"
	FieldLevel         = "level"
	FieldScore         = "score"
	FieldAction        = "action"
	FieldCommand       = "command"
	FieldClientVersion = "client_version"
	FieldResponseSize  = "response_size_bytes"
	FieldHost          = "host"
	FieldFormat        = "format"
	FieldEntries       = "entries"
	FieldReason        = "reason"
)
