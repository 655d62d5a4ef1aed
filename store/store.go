package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"arogyadash/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB holds operator data only: admin accounts and the config audit trail.
// Dashboard data is never written here.
type DB struct {
	*sql.DB
	dialect dialect
}

func Open(cfg *config.DatabaseConfig) (*DB, error) {
	var (
		d   dialect
		dsn string
	)
	switch cfg.Driver {
	case "sqlite":
		d = sqliteDialect
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", cfg.SQLite.Path)
	case "postgres":
		p := cfg.Postgres
		d = postgresDialect
		dsn = fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	sqlDB, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if d.singleWriter {
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{DB: sqlDB, dialect: d}
	if err := db.init(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init %s: %w", cfg.Driver, err)
	}
	return db, nil
}

func (db *DB) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, db.dialect.schema)
	return err
}

// Driver reports the configured driver name ("sqlite" or "postgres").
func (db *DB) Driver() string { return db.dialect.name }

// Q adapts a query written for SQLite to the open database.
func (db *DB) Q(query string) string { return db.dialect.rewrite(query) }
