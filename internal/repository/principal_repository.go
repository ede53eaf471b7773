package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/supportdesk/internal/domain"
)

const principalSelect = `
        SELECT p.id, p.display_name, p.email, p.password_hash, p.created_at,
               COALESCE(array_agg(r.role ORDER BY r.role) FILTER (WHERE r.role IS NOT NULL), '{}')
        FROM principals p
        LEFT JOIN principal_roles r ON r.principal_id = p.id`

type principalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository returns a Postgres-backed implementation.
func NewPrincipalRepository(pool *pgxpool.Pool) PrincipalRepository {
	return &principalRepository{pool: pool}
}

func (r *principalRepository) Create(ctx context.Context, principal *domain.Principal) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO principals (display_name, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, query,
		principal.DisplayName,
		strings.ToLower(principal.Email),
		principal.PasswordHash,
	).Scan(&principal.ID, &principal.CreatedAt); err != nil {
		return err
	}
	for _, role := range principal.Roles {
		if _, err := tx.Exec(ctx, `INSERT INTO principal_roles (principal_id, role) VALUES ($1, $2)`, principal.ID, role); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *principalRepository) GetByID(ctx context.Context, id int64) (*domain.Principal, error) {
	return r.fetchSingle(ctx, principalSelect+` WHERE p.id=$1 GROUP BY p.id`, id)
}

func (r *principalRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.fetchSingle(ctx, principalSelect+` WHERE p.email=$1 GROUP BY p.id`, strings.ToLower(email))
}

func (r *principalRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Principal, error) {
	principal, err := scanPrincipal(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return principal, nil
}

func (r *principalRepository) ListByRoles(ctx context.Context, roles []domain.Role) ([]domain.Principal, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	query := principalSelect + `
        WHERE p.id IN (SELECT principal_id FROM principal_roles WHERE role = ANY($1))
        GROUP BY p.id ORDER BY p.display_name`
	rows, err := r.pool.Query(ctx, query, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Principal
	for rows.Next() {
		principal, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *principal)
	}
	return result, rows.Err()
}

func (r *principalRepository) SetRoles(ctx context.Context, id int64, roles []domain.Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM principals WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM principal_roles WHERE principal_id=$1`, id); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := tx.Exec(ctx, `INSERT INTO principal_roles (principal_id, role) VALUES ($1, $2)`, id, role); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func scanPrincipal(row pgx.Row) (*domain.Principal, error) {
	var principal domain.Principal
	var roles []string
	if err := row.Scan(
		&principal.ID,
		&principal.DisplayName,
		&principal.Email,
		&principal.PasswordHash,
		&principal.CreatedAt,
		&roles,
	); err != nil {
		return nil, err
	}
	principal.Roles = make([]domain.Role, len(roles))
	for i, role := range roles {
		principal.Roles[i] = domain.Role(role)
	}
	return &principal, nil
}
