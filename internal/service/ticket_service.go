package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-core/internal/access"
	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/events"
	"github.com/spec-kit/helpdesk-core/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

// TicketService implements the ticket lifecycle. Every operation consults
// the access gate before touching state, and every mutation runs inside the
// repository's row-locked transaction so the terminal state is reached
// exactly once even under concurrent admins.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles requirements for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket opens a ticket for the actor. Status and visibility are
// server-assigned: new tickets are always Open and private, whatever the
// request claimed.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, title, description string) (*domain.Ticket, error) {
	if access.Evaluate(actor, nil, access.ActionCreate) != access.Allow {
		return nil, apperrors.NewForbidden("authentication required")
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		IsPublic:    false,
		CreatedBy:   actor.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			Title:     ticket.Title,
			CreatedBy: ticket.CreatedBy,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket the actor may read. A hidden ticket is
// indistinguishable from an absent one.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, err
	}
	if access.Evaluate(actor, ticket, access.ActionRead) != access.Allow {
		return nil, apperrors.NewNotFound("ticket")
	}
	return ticket, nil
}

// ListTickets returns the subset of tickets the actor may read: everything
// for admins, own plus public for everyone else.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListVisibleTo(ctx, actor, limit, offset)
}

// Respond overwrites the ticket's response text. Only the latest response is
// kept. A response to an Open ticket advances it to InProgress.
func (s *TicketService) Respond(ctx context.Context, actor *domain.User, ticketID, text string) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("response required", nil)
	}

	var newStatus domain.TicketStatus
	ticket, err := s.mutate(ctx, actor, ticketID, access.ActionRespond, func(t *domain.Ticket) error {
		if t.Status == domain.TicketStatusClosed {
			return apperrors.NewTicketClosed()
		}
		t.Response = &text
		t.RespondedBy = &actor.ID
		if t.Status == domain.TicketStatusOpen {
			t.Status = domain.TicketStatusInProgress
		}
		newStatus = t.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResponded,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketRespondedPayload{
			Response:  text,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

// Solve stores a final response and closes the ticket. Closed is terminal:
// any later Respond or Solve fails.
func (s *TicketService) Solve(ctx context.Context, actor *domain.User, ticketID, text string) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("response required", nil)
	}

	ticket, err := s.mutate(ctx, actor, ticketID, access.ActionSolve, func(t *domain.Ticket) error {
		if t.Status == domain.TicketStatusClosed {
			return apperrors.NewTicketClosed()
		}
		now := time.Now()
		t.Response = &text
		t.RespondedBy = &actor.ID
		t.Status = domain.TicketStatusClosed
		t.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketSolved,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketSolvedPayload{Response: text},
	})
	return ticket, nil
}

// ToggleVisibility sets the public flag. Allowed in any status, including
// Closed, and never changes status. Setting the current value is a no-op,
// not an error.
func (s *TicketService) ToggleVisibility(ctx context.Context, actor *domain.User, ticketID string, isPublic bool) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, actor, ticketID, access.ActionToggleVisibility, func(t *domain.Ticket) error {
		t.IsPublic = isPublic
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketVisibilityToggled,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketVisibilityToggledPayload{IsPublic: isPublic},
	})
	return ticket, nil
}

// UpdateStatus assigns a status directly, bound to the same forward-only
// transitions Respond and Solve produce. It cannot reopen a Closed ticket;
// the terminal state holds for every code path.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidTicketStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}

	var oldStatus domain.TicketStatus
	ticket, err := s.mutate(ctx, actor, ticketID, access.ActionUpdateStatus, func(t *domain.Ticket) error {
		if t.Status == domain.TicketStatusClosed {
			return apperrors.NewTicketClosed()
		}
		if !validTransition(t.Status, newStatus) {
			return apperrors.NewValidationError("invalid status transition", map[string]any{
				"from": t.Status,
				"to":   newStatus,
			})
		}
		oldStatus = t.Status
		t.Status = newStatus
		if newStatus == domain.TicketStatusClosed {
			now := time.Now()
			t.ResolvedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

// mutate runs fn under the repository's row lock after the gate has ruled
// on the locked snapshot. The gate runs inside the transaction so a
// visibility change committed a moment earlier is already in force.
func (s *TicketService) mutate(ctx context.Context, actor *domain.User, ticketID string, action access.Action, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		switch access.Evaluate(actor, t, action) {
		case access.Allow:
		case access.DenyForbidden:
			return apperrors.NewForbidden("admin role required")
		default:
			return apperrors.NewNotFound("ticket")
		}
		return fn(t)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, err
	}
	return ticket, nil
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

func validTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
