// Package audit provides an append-only pgx-backed record of RPC command
// invocations and controller state transitions. It is write-only: nothing
// in the core reads it back, even at startup, since plans are volatile by
// design (no persistent scheduling across restarts).
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Log is the append-only audit sink. A nil *Log is valid and every method
// on it is a safe no-op, so callers can wire it unconditionally.
type Log struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to the Postgres database named by dsn and ensures the
// audit_commands table exists.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing audit dsn: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating audit pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging audit database: %w", err)
	}

	l := &Log{pool: pool, logger: logger.With(zap.String("component", "audit"))}
	if err := l.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_commands (
			id          UUID PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			method      TEXT NOT NULL,
			caller_ip   TEXT NOT NULL,
			result_code INTEGER NOT NULL,
			result_text TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating audit_commands table: %w", err)
	}

	_, err = l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_transitions (
			id          UUID PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			component   TEXT NOT NULL,
			from_mode   TEXT NOT NULL,
			to_mode     TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating audit_transitions table: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (l *Log) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// RecordCommand appends one RPC command invocation. Failures are logged,
// never returned — an audit outage must never block an operations command.
func (l *Log) RecordCommand(ctx context.Context, method, callerIP string, result opsmodel.CommandStatus) {
	if l == nil || l.pool == nil {
		return
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO audit_commands (id, occurred_at, method, caller_ip, result_code, result_text)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), time.Now().UTC(), method, callerIP, int(result), result.Message())
	if err != nil {
		l.logger.Warn("audit write failed", zap.String("method", method), zap.Error(err))
	}
}

// RecordTransition appends a controller mode transition.
func (l *Log) RecordTransition(ctx context.Context, component, fromMode, toMode string) {
	if l == nil || l.pool == nil {
		return
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO audit_transitions (id, occurred_at, component, from_mode, to_mode)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), time.Now().UTC(), component, fromMode, toMode)
	if err != nil {
		l.logger.Warn("audit transition write failed", zap.String("component", component), zap.Error(err))
	}
}
