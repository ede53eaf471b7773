package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/config"
)

// SQL wraps a database/sql handle for the MySQL and SQLite drivers.
type SQL struct {
	DB     *sql.DB
	Driver string
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// OpenSQL opens a MySQL or SQLite database and applies the schema when requested.
func OpenSQL(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*SQL, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DB_DSN not provided for driver %s", cfg.Driver)
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "mysql":
		db, err = openMySQL(cfg.DSN)
	case "sqlite3":
		db, err = openSQLite(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 && !strings.Contains(cfg.DSN, ":memory:") {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	store := &SQL{DB: db, Driver: cfg.Driver}
	if cfg.RunMigrations {
		if err := store.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("connected to sql database", zap.String("driver", cfg.Driver))
	return store, nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	mc, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// Row counts must reflect matched rows so no-op updates are not read as missing tickets.
	mc.ClientFoundRows = true
	mc.ParseTime = true
	return sql.Open("mysql", mc.FormatDSN())
}

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if path := strings.TrimPrefix(dsn, "file:"); !strings.Contains(dsn, ":memory:") {
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if dir := filepath.Dir(path); dir != "." && dir != "/" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}
	return db, nil
}

// InitSchema creates the tables for the active driver if they are missing.
func (s *SQL) InitSchema(ctx context.Context) error {
	schema := sqliteSchema
	if s.Driver == "mysql" {
		schema = mysqlSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies connectivity.
func (s *SQL) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("sql database not configured")
	}
	return s.DB.PingContext(ctx)
}

// Close releases the handle.
func (s *SQL) Close() {
	if s != nil && s.DB != nil {
		_ = s.DB.Close()
	}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS principals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	display_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS principal_roles (
	principal_id INTEGER NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	PRIMARY KEY (principal_id, role)
);

CREATE TABLE IF NOT EXISTS tickets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL,
	assignee_id INTEGER NULL,
	subject TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NULL,
	priority TEXT NOT NULL CHECK (priority IN ('low','normal','high','urgent')),
	status TEXT NOT NULL CHECK (status IN ('NEW','IN_PROGRESS','RESOLVED')),
	customer_name TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	anonymized_at TIMESTAMP NULL
);

CREATE INDEX IF NOT EXISTS idx_tickets_owner ON tickets(owner_id);
CREATE INDEX IF NOT EXISTS idx_tickets_assignee ON tickets(assignee_id);
CREATE INDEX IF NOT EXISTS idx_tickets_created ON tickets(created_at);

CREATE TABLE IF NOT EXISTS replies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id INTEGER NOT NULL REFERENCES tickets(id),
	author_id INTEGER NOT NULL,
	body TEXT NOT NULL,
	is_system_note BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_replies_ticket ON replies(ticket_id, created_at);
CREATE INDEX IF NOT EXISTS idx_replies_author ON replies(author_id);

CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS principals (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	display_name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL DEFAULT '',
	created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS principal_roles (
	principal_id BIGINT NOT NULL,
	role VARCHAR(64) NOT NULL,
	PRIMARY KEY (principal_id, role),
	FOREIGN KEY (principal_id) REFERENCES principals(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS tickets (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	owner_id BIGINT NOT NULL,
	assignee_id BIGINT NULL,
	subject VARCHAR(255) NOT NULL,
	description LONGTEXT NOT NULL,
	category VARCHAR(100) NULL,
	priority VARCHAR(16) NOT NULL,
	status VARCHAR(16) NOT NULL,
	customer_name VARCHAR(255) NOT NULL DEFAULT '',
	customer_email VARCHAR(255) NOT NULL DEFAULT '',
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	anonymized_at DATETIME(6) NULL,
	CHECK (priority IN ('low','normal','high','urgent')),
	CHECK (status IN ('NEW','IN_PROGRESS','RESOLVED')),
	KEY idx_tickets_owner (owner_id),
	KEY idx_tickets_assignee (assignee_id),
	KEY idx_tickets_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS replies (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	ticket_id BIGINT NOT NULL,
	author_id BIGINT NOT NULL,
	body LONGTEXT NOT NULL,
	is_system_note TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME(6) NOT NULL,
	KEY idx_replies_ticket (ticket_id, created_at),
	KEY idx_replies_author (author_id),
	FOREIGN KEY (ticket_id) REFERENCES tickets(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS settings (
	id INT PRIMARY KEY,
	document JSON NOT NULL,
	updated_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
