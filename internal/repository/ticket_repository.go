package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/supportdesk/internal/domain"
)

const ticketColumns = `id, owner_id, assignee_id, subject, description, category, priority, status,
               customer_name, customer_email, created_at, updated_at, anonymized_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (owner_id, assignee_id, subject, description, category, priority, status, customer_name, customer_email)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.OwnerID,
		ticket.AssigneeID,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CustomerName,
		ticket.CustomerEmail,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := ticketWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		ticketColumns, where, len(args)-1, len(args))

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

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := ticketWhere(filter)
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&count)
	return count, err
}

func ticketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if filter.HandlerID != nil {
		args = append(args, *filter.HandlerID)
		p := len(args)
		clauses = append(clauses, fmt.Sprintf("(assignee_id=$%d OR assignee_id IS NULL OR owner_id=$%d)", p, p))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.ExcludeAnonymized {
		clauses = append(clauses, "anonymized_at IS NULL")
	}
	return strings.Join(clauses, " AND "), args
}

func (r *ticketRepository) UpdateFields(ctx context.Context, id int64, update TicketFieldsUpdate) error {
	const query = `
        UPDATE tickets SET status=COALESCE($1, status), priority=COALESCE($2, priority), updated_at=NOW()
        WHERE id=$3`
	var status, priority *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}
	if update.Priority != nil {
		p := string(*update.Priority)
		priority = &p
	}
	return r.exec(ctx, query, status, priority, id)
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, id int64, assigneeID *int64) error {
	const query = `UPDATE tickets SET assignee_id=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, assigneeID, id)
}

func (r *ticketRepository) Anonymize(ctx context.Context, id int64, at time.Time) error {
	const query = `
        UPDATE tickets SET owner_id=$1, subject=$2, customer_name=$3, customer_email=$4,
            anonymized_at=$5, updated_at=NOW()
        WHERE id=$6`
	return r.exec(ctx, query,
		domain.AnonymousPrincipalID,
		domain.AnonymizedSubject,
		domain.AnonymizedName,
		domain.AnonymizedEmail,
		at,
		id,
	)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) CountsByAssignee(ctx context.Context, assigneeID int64) (domain.TicketCounts, error) {
	const query = `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status=$2 THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status=$3 THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status=$4 THEN 1 ELSE 0 END), 0)
        FROM tickets WHERE assignee_id=$1`
	var counts domain.TicketCounts
	err := r.pool.QueryRow(ctx, query,
		assigneeID,
		domain.TicketStatusNew,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
	).Scan(&counts.Assigned, &counts.New, &counts.InProgress, &counts.Resolved)
	return counts, err
}

func (r *ticketRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.AssigneeID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CustomerName,
		&ticket.CustomerEmail,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AnonymizedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
