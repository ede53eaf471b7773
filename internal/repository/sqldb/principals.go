package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
)

const principalSelect = `
	SELECT p.id, p.display_name, p.email, p.password_hash, p.created_at, COALESCE(GROUP_CONCAT(r.role), '')
	FROM principals p
	LEFT JOIN principal_roles r ON r.principal_id = p.id`

type principalRepository struct {
	db *sql.DB
}

// NewPrincipalRepository returns a database/sql principal repository.
func NewPrincipalRepository(db *sql.DB) repository.PrincipalRepository {
	return &principalRepository{db: db}
}

func (r *principalRepository) Create(ctx context.Context, principal *domain.Principal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := utcNow()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO principals (display_name, email, password_hash, created_at) VALUES (?,?,?,?)`,
		principal.DisplayName, strings.ToLower(principal.Email), principal.PasswordHash, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, role := range principal.Roles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO principal_roles (principal_id, role) VALUES (?,?)`, id, string(role)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	principal.ID = id
	principal.CreatedAt = now
	return nil
}

func (r *principalRepository) GetByID(ctx context.Context, id int64) (*domain.Principal, error) {
	return r.fetchSingle(ctx, principalSelect+` WHERE p.id=? GROUP BY p.id, p.display_name, p.email, p.password_hash, p.created_at`, id)
}

func (r *principalRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.fetchSingle(ctx, principalSelect+` WHERE p.email=? GROUP BY p.id, p.display_name, p.email, p.password_hash, p.created_at`, strings.ToLower(email))
}

func (r *principalRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Principal, error) {
	principal, err := scanPrincipal(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return principal, nil
}

func (r *principalRepository) ListByRoles(ctx context.Context, roles []domain.Role) ([]domain.Principal, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(roles))
	args := make([]any, len(roles))
	for i, role := range roles {
		placeholders[i] = "?"
		args[i] = string(role)
	}
	query := principalSelect + `
	WHERE p.id IN (SELECT principal_id FROM principal_roles WHERE role IN (` + strings.Join(placeholders, ",") + `))
	GROUP BY p.id, p.display_name, p.email, p.password_hash, p.created_at
	ORDER BY p.display_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM principals WHERE id=?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM principal_roles WHERE principal_id=?`, id); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO principal_roles (principal_id, role) VALUES (?,?)`, id, string(role)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanPrincipal(row scanner) (*domain.Principal, error) {
	var principal domain.Principal
	var roles string
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
	principal.Roles = splitRoles(roles)
	return &principal, nil
}

func splitRoles(joined string) []domain.Role {
	if joined == "" {
		return []domain.Role{}
	}
	parts := strings.Split(joined, ",")
	sort.Strings(parts)
	roles := make([]domain.Role, len(parts))
	for i, part := range parts {
		roles[i] = domain.Role(part)
	}
	return roles
}
