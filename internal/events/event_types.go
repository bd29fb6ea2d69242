package events

import (
	"time"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketResponded         EventType = "ticket_responded"
	EventTicketSolved            EventType = "ticket_solved"
	EventTicketStatusChanged     EventType = "ticket_status_changed"
	EventTicketVisibilityToggled EventType = "ticket_visibility_toggled"
)

// AllEventTypes lists every event the core emits, for consumers that want
// the full stream.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketResponded,
	EventTicketSolved,
	EventTicketStatusChanged,
	EventTicketVisibilityToggled,
}

// Event represents a domain event emitted by the ticket service. The
// notification side receives these and does whatever it does with them;
// nothing in this core depends on the outcome.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
}

// TicketRespondedPayload payload.
type TicketRespondedPayload struct {
	Response  string              `json:"response"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketSolvedPayload payload.
type TicketSolvedPayload struct {
	Response string `json:"response"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketVisibilityToggledPayload payload.
type TicketVisibilityToggledPayload struct {
	IsPublic bool `json:"is_public"`
}
