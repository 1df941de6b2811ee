package dbstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/config"
)

// ErrUnavailable reports that the database could not be reached after the
// configured number of connect attempts.
var ErrUnavailable = errors.New("dbstore: database unavailable")

// ErrNotFound reports that a requested row does not exist.
var ErrNotFound = errors.New("dbstore: not found")

const connectAttempts = 3

// Store opens one connection per logical operation against the relational
// database. Connects are retried with exponential backoff; everything after
// a successful connect is single-attempt.
type Store struct {
	dsn         string
	retryBase   float64
	maxAttempts int
	log         zerolog.Logger
}

func New(cfg config.DatabaseConfig, log zerolog.Logger) *Store {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host,
		Path:   "/" + cfg.Name,
	}
	return &Store{
		dsn:         u.String(),
		retryBase:   2,
		maxAttempts: connectAttempts,
		log:         log,
	}
}

// Connect dials the database, retrying with delay = base^attempt seconds.
// After the last failed attempt the error wraps ErrUnavailable.
func (s *Store) Connect(ctx context.Context) (*pgx.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		conn, err := pgx.Connect(ctx, s.dsn)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("Database connect failed")
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay(s.retryBase, attempt)):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func retryDelay(base float64, attempt int) time.Duration {
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}

// withConn runs fn on a fresh connection and closes it afterwards.
func (s *Store) withConn(ctx context.Context, fn func(conn *pgx.Conn) error) error {
	conn, err := s.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return fn(conn)
}
