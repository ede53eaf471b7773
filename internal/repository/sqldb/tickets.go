// Package sqldb implements the repositories over database/sql for MySQL and SQLite.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
)

const ticketColumns = `id, owner_id, assignee_id, subject, description, category, priority, status,
	customer_name, customer_email, created_at, updated_at, anonymized_at`

type ticketRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTicketRepository returns a database/sql ticket repository.
func NewTicketRepository(db *sql.DB) repository.TicketRepository {
	return &ticketRepository{db: db, now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
		INSERT INTO tickets (owner_id, assignee_id, subject, description, category, priority, status,
			customer_name, customer_email, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	now := r.now()
	res, err := r.db.ExecContext(ctx, query,
		ticket.OwnerID,
		ticket.AssigneeID,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		string(ticket.Priority),
		string(ticket.Status),
		ticket.CustomerName,
		ticket.CustomerEmail,
		now,
		now,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ticket.ID = id
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=?`, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
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
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY id DESC LIMIT ? OFFSET ?`, ticketColumns, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *ticketRepository) Count(ctx context.Context, filter repository.TicketFilter) (int, error) {
	where, args := ticketWhere(filter)
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&count)
	return count, err
}

func ticketWhere(filter repository.TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		clauses = append(clauses, "owner_id=?")
		args = append(args, *filter.OwnerID)
	}
	if filter.HandlerID != nil {
		clauses = append(clauses, "(assignee_id=? OR assignee_id IS NULL OR owner_id=?)")
		args = append(args, *filter.HandlerID, *filter.HandlerID)
	}
	if filter.AssigneeID != nil {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, *filter.AssigneeID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedBefore != nil {
		clauses = append(clauses, "created_at < ?")
		args = append(args, filter.CreatedBefore.UTC())
	}
	if filter.ExcludeAnonymized {
		clauses = append(clauses, "anonymized_at IS NULL")
	}
	return strings.Join(clauses, " AND "), args
}

func (r *ticketRepository) UpdateFields(ctx context.Context, id int64, update repository.TicketFieldsUpdate) error {
	var status, priority *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}
	if update.Priority != nil {
		p := string(*update.Priority)
		priority = &p
	}
	const query = `UPDATE tickets SET status=COALESCE(?, status), priority=COALESCE(?, priority), updated_at=? WHERE id=?`
	return r.exec(ctx, query, status, priority, r.now(), id)
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, id int64, assigneeID *int64) error {
	return r.exec(ctx, `UPDATE tickets SET assignee_id=?, updated_at=? WHERE id=?`, assigneeID, r.now(), id)
}

func (r *ticketRepository) Anonymize(ctx context.Context, id int64, at time.Time) error {
	const query = `
		UPDATE tickets SET owner_id=?, subject=?, customer_name=?, customer_email=?, anonymized_at=?, updated_at=?
		WHERE id=?`
	return r.exec(ctx, query,
		domain.AnonymousPrincipalID,
		domain.AnonymizedSubject,
		domain.AnonymizedName,
		domain.AnonymizedEmail,
		at.UTC(),
		r.now(),
		id,
	)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM tickets WHERE id=?`, id)
}

func (r *ticketRepository) CountsByAssignee(ctx context.Context, assigneeID int64) (domain.TicketCounts, error) {
	const query = `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status=? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status=? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status=? THEN 1 ELSE 0 END), 0)
		FROM tickets WHERE assignee_id=?`
	var counts domain.TicketCounts
	err := r.db.QueryRowContext(ctx, query,
		string(domain.TicketStatusNew),
		string(domain.TicketStatusInProgress),
		string(domain.TicketStatusResolved),
		assigneeID,
	).Scan(&counts.Assigned, &counts.New, &counts.InProgress, &counts.Resolved)
	return counts, err
}

// exec maps "no affected rows" to ErrNotFound. MySQL reports matched rows
// only with clientFoundRows=true; see persistence.OpenSQL.
func (r *ticketRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (*domain.Ticket, error) {
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
