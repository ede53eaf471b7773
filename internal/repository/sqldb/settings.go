package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
)

type settingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository returns a database/sql settings repository.
func NewSettingsRepository(db *sql.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Load(ctx context.Context) (*domain.Settings, error) {
	var raw string
	if err := r.db.QueryRowContext(ctx, `SELECT document FROM settings WHERE id=1`).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save replaces the single settings row. REPLACE INTO is understood by MySQL and SQLite.
func (r *settingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `REPLACE INTO settings (id, document, updated_at) VALUES (1, ?, ?)`, string(raw), utcNow())
	return err
}
