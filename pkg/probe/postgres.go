package probe

import (
	"context"
	"fmt"
	"sync"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPool is the narrow pool surface the probe uses. *pgxpool.Pool
// satisfies it, as do pgxmock pools in tests.
type PostgresPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ensure pgxpool.Pool implements PostgresPool at compile time.
var _ PostgresPool = (*pgxpool.Pool)(nil)

// Postgres probes a PostgreSQL server with a SELECT 1 round-trip.
type Postgres struct {
	// DSN is the connection string used when Pool is nil.
	DSN string

	// Pool overrides the lazily created pgx pool. Injected pools are not
	// closed by Close.
	Pool PostgresPool

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// Check executes SELECT 1. Connection and query errors are transient; a
// DSN that cannot be parsed is permanent.
func (p *Postgres) Check(ctx context.Context) error {
	pool, err := p.lazyPool(ctx)
	if err != nil {
		return err
	}

	var result int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("postgres probe: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("postgres probe: unexpected result %d", result)
	}
	return nil
}

func (p *Postgres) lazyPool(ctx context.Context) (PostgresPool, error) {
	if p.Pool != nil {
		return p.Pool, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		return p.pool, nil
	}
	if p.DSN == "" {
		return nil, errors.NewPermanent("postgres probe requires a DSN or a pool", nil)
	}

	// pgxpool connects lazily; only configuration errors surface here.
	pool, err := pgxpool.New(ctx, p.DSN)
	if err != nil {
		return nil, errors.NewPermanent("postgres probe: invalid DSN", err)
	}
	p.pool = pool
	return pool, nil
}

// Close releases the probe-owned pool, if one was created.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}
