package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// Connect opens a connection pool to the PostgreSQL database. Postgres often
// comes up after the server in compose setups, so the first ping is retried
// with a doubling backoff.
func Connect(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	wait := connectBackoff
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt == connectAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retryIn", wait).Msg("Postgres not ready")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("postgres ping: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	db.Close()
	return nil, fmt.Errorf("postgres ping after %d attempts: %w", connectAttempts, err)
}
