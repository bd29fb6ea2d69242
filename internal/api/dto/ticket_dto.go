package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// CreateTicketRequest payload. Status and visibility are not accepted from
// the client; the server forces Open and private.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RespondRequest payload for respond and solve.
type RespondRequest struct {
	Response string `json:"response"`
}

// ToggleVisibilityRequest payload.
type ToggleVisibilityRequest struct {
	IsPublic bool `json:"is_public"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TicketStatus `json:"status"`
	IsPublic    bool                `json:"is_public"`
	CreatedBy   string              `json:"created_by"`
	Response    *string             `json:"response"`
	RespondedBy *string             `json:"responded_by"`
	ResolvedAt  *time.Time          `json:"resolved_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
