package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/supportdesk/internal/domain"
)

const replyColumns = `id, ticket_id, author_id, body, is_system_note, created_at`

type replyRepository struct {
	pool *pgxpool.Pool
}

// NewReplyRepository builds the Postgres repository.
func NewReplyRepository(pool *pgxpool.Pool) ReplyRepository {
	return &replyRepository{pool: pool}
}

func (r *replyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	const query = `
        INSERT INTO replies (ticket_id, author_id, body, is_system_note)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		reply.TicketID,
		reply.AuthorID,
		reply.Body,
		reply.IsSystemNote,
	).Scan(&reply.ID, &reply.CreatedAt)
}

func (r *replyRepository) ListByTicket(ctx context.Context, ticketID int64, newestFirst bool) ([]domain.Reply, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	query := `SELECT ` + replyColumns + ` FROM replies WHERE ticket_id=$1 ORDER BY created_at ` + order + `, id ` + order
	return r.list(ctx, query, ticketID)
}

func (r *replyRepository) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies WHERE author_id=$1 ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, authorID)
}

func (r *replyRepository) list(ctx context.Context, query string, arg any) ([]domain.Reply, error) {
	rows, err := r.pool.Query(ctx, query, arg)
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
	_, err := r.pool.Exec(ctx, `DELETE FROM replies WHERE ticket_id=$1`, ticketID)
	return err
}

func (r *replyRepository) ReassignAuthor(ctx context.Context, ticketID *int64, fromID, toID int64) error {
	if ticketID == nil {
		_, err := r.pool.Exec(ctx, `UPDATE replies SET author_id=$1 WHERE author_id=$2`, toID, fromID)
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE replies SET author_id=$1 WHERE author_id=$2 AND ticket_id=$3`, toID, fromID, *ticketID)
	return err
}
