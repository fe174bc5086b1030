package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/security/secretbox"
)

// connectionRepository guarda los tokens cifrados con el box; el dominio
// nunca ve texto cifrado.
type connectionRepository struct {
	pool *pgxpool.Pool
	box  *secretbox.Box
}

const connColumns = `id, user_id, access_token, refresh_token, created_at, updated_at`

func (r *connectionRepository) Create(ctx context.Context, userID string, tokens repository.TokenPair) (*repository.Connection, error) {
	if userID == "" || tokens.AccessToken == "" {
		return nil, repository.ErrInvalidInput
	}

	access, refresh, err := r.seal(tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO connections (id, user_id, access_token, refresh_token)
		VALUES ($1, $2, $3, $4)
		RETURNING `+connColumns,
		uuid.NewString(), userID, access, refresh,
	)
	return r.scanConnection(row)
}

func (r *connectionRepository) GetByUserID(ctx context.Context, userID string) (*repository.Connection, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+connColumns+` FROM connections WHERE user_id = $1`, userID)
	return r.scanConnection(row)
}

func (r *connectionRepository) Update(ctx context.Context, conn *repository.Connection) (*repository.Connection, error) {
	access, refresh, err := r.seal(conn.AccessToken, conn.RefreshToken)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE connections SET access_token = $2, refresh_token = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+connColumns,
		conn.ID, access, refresh,
	)
	return r.scanConnection(row)
}

func (r *connectionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	// Idempotente: no inspeccionamos RowsAffected a propósito.
	_, err := r.pool.Exec(ctx, `DELETE FROM connections WHERE user_id = $1`, userID)
	return mapError(err)
}

func (r *connectionRepository) seal(access string, refresh *string) (string, *string, error) {
	boxedAccess, err := r.box.Encrypt(access)
	if err != nil {
		return "", nil, fmt.Errorf("pg: encrypt access token: %w", err)
	}
	var boxedRefresh *string
	if refresh != nil {
		br, err := r.box.Encrypt(*refresh)
		if err != nil {
			return "", nil, fmt.Errorf("pg: encrypt refresh token: %w", err)
		}
		boxedRefresh = &br
	}
	return boxedAccess, boxedRefresh, nil
}

func (r *connectionRepository) scanConnection(row rowScanner) (*repository.Connection, error) {
	var c repository.Connection
	var access string
	var refresh *string
	if err := row.Scan(&c.ID, &c.UserID, &access, &refresh, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapError(err)
	}

	plain, err := r.box.Decrypt(access)
	if err != nil {
		return nil, fmt.Errorf("pg: decrypt access token: %w", err)
	}
	c.AccessToken = plain
	if refresh != nil {
		pr, err := r.box.Decrypt(*refresh)
		if err != nil {
			return nil, fmt.Errorf("pg: decrypt refresh token: %w", err)
		}
		c.RefreshToken = &pr
	}
	return &c, nil
}
