package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
)

const replyColumns = `id, ticket_id, author_id, body, is_system_note, created_at`

type replyRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewReplyRepository returns a database/sql reply repository.
func NewReplyRepository(db *sql.DB) repository.ReplyRepository {
	return &replyRepository{db: db, now: utcNow}
}

func (r *replyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO replies (ticket_id, author_id, body, is_system_note, created_at) VALUES (?,?,?,?,?)`,
		reply.TicketID, reply.AuthorID, reply.Body, reply.IsSystemNote, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	reply.ID = id
	reply.CreatedAt = now
	return nil
}

func (r *replyRepository) ListByTicket(ctx context.Context, ticketID int64, newestFirst bool) ([]domain.Reply, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	query := `SELECT ` + replyColumns + ` FROM replies WHERE ticket_id=? ORDER BY created_at ` + order + `, id ` + order
	return r.list(ctx, query, ticketID)
}

func (r *replyRepository) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies WHERE author_id=? ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, authorID)
}

func (r *replyRepository) list(ctx context.Context, query string, args ...any) ([]domain.Reply, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Reply
	for rows.Next() {
		var reply domain.Reply
		if err := rows.Scan(
			&reply.ID,
			&reply.TicketID,
			&reply.AuthorID,
			&reply.Body,
			&reply.IsSystemNote,
			&reply.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, reply)
	}
	return result, rows.Err()
}

func (r *replyRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM replies WHERE ticket_id=?`, ticketID)
	return err
}

func (r *replyRepository) ReassignAuthor(ctx context.Context, ticketID *int64, fromID, toID int64) error {
	if ticketID == nil {
		_, err := r.db.ExecContext(ctx, `UPDATE replies SET author_id=? WHERE author_id=?`, toID, fromID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE replies SET author_id=? WHERE author_id=? AND ticket_id=?`, toID, fromID, *ticketID)
	return err
}
