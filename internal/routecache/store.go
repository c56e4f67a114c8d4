package routecache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/roadmate-app/navigator/internal/route"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed cache of directions responses. It keeps the
// engine from hammering the backend when the same query is planned twice
// in a row (e.g. a replan after the app returns to the foreground).
type Store struct {
	conn    *sql.DB
	ttl     time.Duration
	writeMu sync.Mutex // SQLite allows one writer; serialize Put/Cleanup
}

// Open opens (and if needed creates) the cache database at path. Entries
// older than ttl are treated as misses and removed by Cleanup.
func Open(path string, ttl time.Duration) (*Store, error) {
	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("routecache: open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("routecache: ping database: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("routecache: ensure schema: %w", err)
	}

	log.Printf("RouteCache: opened %s (ttl=%v)", path, ttl)
	return &Store{conn: conn, ttl: ttl}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the cached route set for key, or (nil, nil) on a miss.
// Expired entries count as misses.
func (s *Store) Get(ctx context.Context, key string) ([]*route.Route, error) {
	var payload, fetchedAt string
	err := s.conn.QueryRowContext(ctx,
		"SELECT payload, fetched_at_utc FROM route_cache WHERE query_key = ?", key,
	).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("routecache: read entry: %w", err)
	}

	at, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil || time.Since(at) > s.ttl {
		return nil, nil
	}

	var routes []*route.Route
	if err := json.Unmarshal([]byte(payload), &routes); err != nil {
		return nil, fmt.Errorf("routecache: decode entry: %w", err)
	}
	return routes, nil
}

// Put stores a route set for key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key string, routes []*route.Route) error {
	payload, err := json.Marshal(routes)
	if err != nil {
		return fmt.Errorf("routecache: encode entry: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO route_cache (query_key, payload, fetched_at_utc)
		VALUES (?, ?, ?)
		ON CONFLICT (query_key) DO UPDATE SET
			payload = excluded.payload,
			fetched_at_utc = excluded.fetched_at_utc
	`, key, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("routecache: write entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries.
func (s *Store) Cleanup(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cutoff := time.Now().UTC().Add(-s.ttl).Format(time.RFC3339)
	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM route_cache WHERE fetched_at_utc < ?", cutoff)
	if err != nil {
		return fmt.Errorf("routecache: cleanup: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("RouteCache: removed %d expired entries", n)
	}
	return nil
}
