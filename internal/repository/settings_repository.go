package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/supportdesk/internal/domain"
)

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a Postgres-backed implementation.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Load(ctx context.Context) (*domain.Settings, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, `SELECT document FROM settings WHERE id=1`).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO settings (id, document, updated_at) VALUES (1, $1, NOW())
        ON CONFLICT (id) DO UPDATE SET document=EXCLUDED.document, updated_at=NOW()`
	_, err = r.pool.Exec(ctx, query, raw)
	return err
}
