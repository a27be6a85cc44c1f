// Package storage provides database connections and the Postgres
// implementation of store.Store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/post-analyzer/internal/config"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/retry"
	"github.com/post-analyzer/internal/store"
)

// Postgres SQLSTATEs
const (
	uniqueViolation      = "23505"
	invalidPassword      = "28P01"
	invalidAuthorization = "28000"
	invalidCatalogName   = "3D000"
)

// PostgresDB wraps the pgxpool connection
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB creates a new Postgres connection pool. The initial connection
// is retried with exponential backoff up to cfg.ConnectRetries attempts.
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig) (*PostgresDB, error) {
	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.MaxConnections,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - small configured value
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	retryCfg := retry.DefaultRetryConfig()
	if cfg.ConnectRetries > 0 {
		retryCfg.MaxAttempts = cfg.ConnectRetries
	}
	retryCfg.ShouldRetry = isTransientConnectError

	var pool *pgxpool.Pool
	err = retry.Do(ctx, retryCfg, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		p, err := pgxpool.NewWithConfig(attemptCtx, poolConfig)
		if err != nil {
			return fmt.Errorf("unable to create connection pool: %w", err)
		}
		if err := p.Ping(attemptCtx); err != nil {
			p.Close()
			return fmt.Errorf("unable to ping database: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("Connected to Postgres")

	return &PostgresDB{pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks if the database is reachable
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// isTransientConnectError rejects failures another attempt cannot fix
func isTransientConnectError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case invalidPassword, invalidAuthorization, invalidCatalogName:
			return false
		}
	}
	return true
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store on Postgres
type Store struct {
	db    *PostgresDB
	plans store.PlanRepository
}

// NewStore creates a Postgres-backed store. Plan reads go through plans when
// it is non-nil (for example a PlanCache) and straight to the database otherwise.
func NewStore(db *PostgresDB, plans store.PlanRepository) *Store {
	if plans == nil {
		plans = NewPlanRepository(db.Pool())
	}
	return &Store{db: db, plans: plans}
}

// Users returns the pool-bound user repository
func (s *Store) Users() store.UserRepository { return &UserRepository{q: s.db.pool} }

// Integrations returns the pool-bound integration repository
func (s *Store) Integrations() store.IntegrationRepository {
	return &IntegrationRepository{q: s.db.pool}
}

// Resources returns the pool-bound tracked resource repository
func (s *Store) Resources() store.ResourceRepository { return &ResourceRepository{q: s.db.pool} }

// Tasks returns the pool-bound task repository
func (s *Store) Tasks() store.TaskRepository { return &TaskRepository{q: s.db.pool} }

// Invitations returns the pool-bound invitation repository
func (s *Store) Invitations() store.InvitationRepository {
	return &InvitationRepository{q: s.db.pool}
}

// Plans returns the plan repository
func (s *Store) Plans() store.PlanRepository { return s.plans }

// Providers returns the provider repository
func (s *Store) Providers() store.ProviderRepository {
	return &ProviderRepository{q: s.db.pool}
}

// WithinTx runs fn in a read-committed transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx) // nolint:errcheck // cleanup in defer
	}()

	if err := fn(ctx, txRepos{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txRepos binds every repository to one pgx.Tx
type txRepos struct{ q querier }

func (t txRepos) Users() store.UserRepository               { return &UserRepository{q: t.q, tx: true} }
func (t txRepos) Integrations() store.IntegrationRepository { return &IntegrationRepository{q: t.q} }
func (t txRepos) Resources() store.ResourceRepository       { return &ResourceRepository{q: t.q} }
func (t txRepos) Tasks() store.TaskRepository               { return &TaskRepository{q: t.q, tx: true} }
func (t txRepos) Invitations() store.InvitationRepository   { return &InvitationRepository{q: t.q} }

// mapError translates driver errors into store sentinels
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
