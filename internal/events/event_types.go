package events

import (
	"time"

	"github.com/spec-kit/incident-service/internal/ingest"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventImportCommitted EventType = "import_committed"
	EventImportSkipped   EventType = "import_skipped"
	EventImportAborted   EventType = "import_aborted"
	EventGhostsDetected  EventType = "ghosts_detected"
	EventGhostResolved   EventType = "ghost_resolved"
	EventPartsRequested  EventType = "parts_requested"
	EventNoteAdded       EventType = "note_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ImportID  string      `json:"import_id,omitempty"`
	Numero    string      `json:"numero,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ImportCommittedPayload payload.
type ImportCommittedPayload struct {
	FileName string         `json:"file_name"`
	Profile  ingest.Profile `json:"profile"`
	Success  int            `json:"success"`
	Failures int            `json:"failures"`
	Dropped  int            `json:"dropped"`
}

// GhostsDetectedPayload payload.
type GhostsDetectedPayload struct {
	FileName string   `json:"file_name"`
	Ghosts   []string `json:"ghosts"`
}

// GhostResolvedPayload payload.
type GhostResolvedPayload struct {
	Numeri []string `json:"numeri"`
}

// PartsRequestedPayload payload.
type PartsRequestedPayload struct {
	Parti             []string `json:"parti,omitempty"`
	RichiestaApparato bool     `json:"richiesta_apparato"`
}

// NoteAddedPayload payload.
type NoteAddedPayload struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}
