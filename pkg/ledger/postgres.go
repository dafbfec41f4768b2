package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

const (
	createTable = `CREATE TABLE IF NOT EXISTS mpecdh_ledger (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
)`
	lockKey         = `SELECT pg_advisory_xact_lock(hashtext($1))`
	selectForUpdate = `SELECT value FROM mpecdh_ledger WHERE key = $1 FOR UPDATE`
	selectValue     = `SELECT value FROM mpecdh_ledger WHERE key = $1`
	upsertValue     = `INSERT INTO mpecdh_ledger (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
)

// Postgres is a Ledger backed by a PostgreSQL table.
//
// Updates take a transaction scoped advisory lock on the key, which also covers
// records that do not exist yet, and lock the row with SELECT ... FOR UPDATE.
// Several servers may share one database.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

var _ Ledger = (*Postgres)(nil)

// pgxLogger forwards pgx trace logs to zerolog.
type pgxLogger struct {
	log zerolog.Logger
}

// Log implements tracelog.Logger.
func (l *pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	var event *zerolog.Event
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		event = l.log.Debug()
	case tracelog.LogLevelInfo:
		event = l.log.Info()
	case tracelog.LogLevelWarn:
		event = l.log.Warn()
	default:
		event = l.log.Error()
	}
	event.Fields(data).Msg(msg)
}

// OpenPostgres connects to connString and creates the ledger table if needed.
func OpenPostgres(ctx context.Context, connString string, log zerolog.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse postgres config: %w", err)
	}
	log = log.With().Str("module", "ledger").Str("backend", "postgres").Logger()

	// "Info" level logs every SQL statement executed.
	config.ConnConfig.Tracer = &tracelog.TraceLog{
		LogLevel: tracelog.LogLevelWarn,
		Logger:   &pgxLogger{log: log.With().Str("db", config.ConnConfig.Database).Logger()},
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect to postgres: %w", err)
	}
	if _, err = pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: create table: %w", err)
	}
	return &Postgres{pool: pool, log: log}, nil
}

// View implements Ledger.
func (p *Postgres) View(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, selectValue, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: select %s: %w", key, err)
	}
	return value, nil
}

// Update implements Ledger.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(ctx)
	}()

	if _, err = tx.Exec(ctx, lockKey, key); err != nil {
		return fmt.Errorf("ledger: lock %s: %w", key, err)
	}
	var current []byte
	err = tx.QueryRow(ctx, selectForUpdate, key).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		current = nil
	case err != nil:
		return fmt.Errorf("ledger: select %s for update: %w", key, err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, upsertValue, key, next); err != nil {
		return fmt.Errorf("ledger: upsert %s: %w", key, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

// Close implements Ledger.
func (p *Postgres) Close() error {
	p.log.Info().Msg("closing ledger")
	p.pool.Close()
	return nil
}
