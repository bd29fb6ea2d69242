// Package access centralizes every authorization decision over tickets. The
// gate is a pure function of (actor, ticket, action); services consult it
// before each read or mutation so role checks never scatter into handlers.
package access

import (
	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// Action enumerates ticket operations the gate rules on.
type Action string

const (
	ActionRead             Action = "read"
	ActionCreate           Action = "create"
	ActionRespond          Action = "respond"
	ActionSolve            Action = "solve"
	ActionToggleVisibility Action = "toggle_visibility"
	ActionUpdateStatus     Action = "update_status"
)

// Decision is the gate's verdict for one (actor, ticket, action) triple.
type Decision int

const (
	// Allow permits the operation.
	Allow Decision = iota
	// DenyHidden denies and must surface as not-found: the actor may not
	// learn that the ticket exists.
	DenyHidden
	// DenyForbidden denies an action on a ticket the actor can see.
	DenyForbidden
)

// CanRead reports whether the actor may see the ticket at all.
func CanRead(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	return actor.IsAdmin || ticket.CreatedBy == actor.ID || ticket.IsPublic
}

// Evaluate rules on a single action. Create takes a nil ticket; every other
// action needs the current ticket row.
//
// Denials follow the hidden-resource policy: if the actor cannot even read
// the ticket the verdict is DenyHidden (surface as 404), while an admin
// action denied on a readable ticket is DenyForbidden (surface as 403).
func Evaluate(actor *domain.User, ticket *domain.Ticket, action Action) Decision {
	if actor == nil || !actor.IsActive {
		return DenyHidden
	}

	if action == ActionCreate {
		return Allow
	}

	if !CanRead(actor, ticket) {
		return DenyHidden
	}

	switch action {
	case ActionRead:
		return Allow
	case ActionRespond, ActionSolve, ActionToggleVisibility, ActionUpdateStatus:
		if actor.IsAdmin {
			return Allow
		}
		return DenyForbidden
	default:
		return DenyForbidden
	}
}
