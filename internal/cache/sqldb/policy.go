// Package sqldb provides a key/value cache policy backed by a SQL database.
// SQLite is the default backend; PostgreSQL and MySQL are supported for
// deployments that already run one.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/axonops/fact-resolver/internal/cache"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL cache connection configuration.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Policy is a content-addressed cache over a single cache(cache_key, payload)
// table with upsert writes.
type Policy struct {
	db     *sql.DB
	driver Driver
}

// New opens the database and ensures the cache table exists.
func New(cfg Config) (*Policy, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	db, err := sql.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	p := &Policy{db: db, driver: cfg.Driver}
	if err := p.ensureTable(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Policy) ensureTable() error {
	ddl := "CREATE TABLE IF NOT EXISTS cache (cache_key TEXT PRIMARY KEY, payload TEXT)"
	if p.driver == DriverMySQL {
		// MySQL cannot index an unbounded TEXT column.
		ddl = "CREATE TABLE IF NOT EXISTS cache (cache_key VARCHAR(768) PRIMARY KEY, payload TEXT)"
	}
	if _, err := p.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// BuildCacheKey implements cache.Policy using the canonical key.
func (p *Policy) BuildCacheKey(rctx *resolution.Context, inputFacts []facts.ID) (string, error) {
	return cache.BuildKey(rctx, inputFacts)
}

// Fetch returns the cached outputs for a key. Missing rows and corrupt
// payloads are both reported as a miss.
func (p *Policy) Fetch(ctx context.Context, key string) ([]resolution.Output, error) {
	var payload string
	err := p.db.QueryRowContext(ctx, p.rebind("SELECT payload FROM cache WHERE cache_key = ?"), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cache entry: %w", err)
	}
	outputs, err := cache.DecodeOutputs([]byte(payload))
	if err != nil {
		// Corrupt payload: degrade to a miss so the resolver re-runs.
		return nil, nil
	}
	return outputs, nil
}

// Store upserts outputs under a key.
func (p *Policy) Store(ctx context.Context, key string, outputs []resolution.Output) error {
	payload, err := cache.EncodeOutputs(outputs)
	if err != nil {
		return err
	}

	var stmt string
	switch p.driver {
	case DriverMySQL:
		stmt = "INSERT INTO cache (cache_key, payload) VALUES (?, ?) ON DUPLICATE KEY UPDATE payload = VALUES(payload)"
	default:
		stmt = p.rebind("INSERT INTO cache (cache_key, payload) VALUES (?, ?) ON CONFLICT (cache_key) DO UPDATE SET payload = excluded.payload")
	}
	if _, err := p.db.ExecContext(ctx, stmt, key, string(payload)); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Clear removes all cached entries.
func (p *Policy) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (p *Policy) Close() error {
	return p.db.Close()
}

// IsHealthy reports whether the backing database answers a ping.
func (p *Policy) IsHealthy(ctx context.Context) bool {
	return p.db.PingContext(ctx) == nil
}

// rebind rewrites ? placeholders to the dialect's positional form.
func (p *Policy) rebind(query string) string {
	if p.driver != DriverPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+4)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
