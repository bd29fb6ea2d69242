package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

const ticketColumns = `id, title, description, status, is_public, created_by,
               response, responded_by, resolved_at, created_at, updated_at`

// TicketRepository encapsulates ticket persistence.
//
// Mutate runs fn against the current row under a row-level lock inside a
// transaction, then writes the modified ticket back. Two concurrent
// mutations serialize on the lock, so the second caller decides on the state
// the first one committed (first-committer-wins for the terminal state).
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListVisibleTo(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error)
	Mutate(ctx context.Context, id string, fn func(*domain.Ticket) error) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, is_public, created_by)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.IsPublic,
		ticket.CreatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListVisibleTo(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{limit, offset}
	if !actor.IsAdmin {
		query += ` WHERE created_by=$3 OR is_public`
		args = append(args, actor.ID)
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Mutate(ctx context.Context, id string, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
		current, err := scanTicket(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}

		const update = `
            UPDATE tickets SET title=$1, description=$2, status=$3, is_public=$4,
                response=$5, responded_by=$6, resolved_at=$7, updated_at=NOW()
            WHERE id=$8
            RETURNING updated_at`
		if err := tx.QueryRow(ctx, update,
			current.Title,
			current.Description,
			current.Status,
			current.IsPublic,
			current.Response,
			current.RespondedBy,
			current.ResolvedAt,
			current.ID,
		).Scan(&current.UpdatedAt); err != nil {
			return err
		}
		ticket = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.IsPublic,
		&ticket.CreatedBy,
		&ticket.Response,
		&ticket.RespondedBy,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
