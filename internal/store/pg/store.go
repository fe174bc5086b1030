// Package pg implementa los repositorios sobre PostgreSQL con pgx.
// Los dos puntos con carrera (unicidad de did, una conexión por usuario)
// se arbitran acá con unique constraints: cualquier proceso pierde la
// carrera con ErrConflict y puede re-fetchear.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/security/secretbox"
)

// Store agrupa el pool y los repositorios.
type Store struct {
	pool *pgxpool.Pool
	box  *secretbox.Box
}

// Options configura el pool.
type Options struct {
	MaxConns        int
	ConnMaxLifetime time.Duration
}

// NewStore abre el pool y verifica la conexión.
// El box cifra los tokens de GitHub en reposo; es obligatorio.
func NewStore(ctx context.Context, dsn string, box *secretbox.Box, opts Options) (*Store, error) {
	if box == nil {
		return nil, fmt.Errorf("pg: secretbox is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool, box: box}, nil
}

// Users retorna el repositorio de usuarios.
func (s *Store) Users() repository.UserRepository {
	return &userRepository{pool: s.pool}
}

// Connections retorna el repositorio de conexiones.
func (s *Store) Connections() repository.ConnectionRepository {
	return &connectionRepository{pool: s.pool, box: s.box}
}

// Ping verifica la conexión. Lo usa el probe de readiness.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool expone el pool subyacente (collector de métricas).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close cierra el pool.
func (s *Store) Close() {
	s.pool.Close()
}

// mapError traduce errores de pgx a los sentinels del dominio.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return repository.ErrConflict
		case "23503", "23502": // foreign_key_violation, not_null_violation
			return fmt.Errorf("%w: %v", repository.ErrInvalidInput, pgErr.Message)
		}
	}
	return err
}
