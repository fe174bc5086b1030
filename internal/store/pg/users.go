package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atdock/atdock/internal/domain/repository"
)

type userRepository struct {
	pool *pgxpool.Pool
}

const userColumns = `id, did, display_name, description, avatar_url, banner_url, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, did string, profile repository.Profile) (*repository.User, error) {
	if did == "" || profile.DisplayName == "" {
		return nil, repository.ErrInvalidInput
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, did, display_name, description, avatar_url, banner_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		uuid.NewString(), did, profile.DisplayName, profile.Description, profile.AvatarURL, profile.BannerURL,
	)
	return scanUser(row)
}

func (r *userRepository) GetByDID(ctx context.Context, did string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE did = $1`, did)
	return scanUser(row)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepository) Update(ctx context.Context, id string, input repository.UpdateUserInput) (*repository.User, error) {
	if input.DisplayName != nil && *input.DisplayName == "" {
		return nil, repository.ErrInvalidInput
	}

	// COALESCE aplica solo los campos no-nil del patch.
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			description  = COALESCE($3, description),
			avatar_url   = COALESCE($4, avatar_url),
			banner_url   = COALESCE($5, banner_url),
			updated_at   = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, input.DisplayName, input.Description, input.AvatarURL, input.BannerURL,
	)
	return scanUser(row)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*repository.User, error) {
	var u repository.User
	err := row.Scan(
		&u.ID, &u.DID,
		&u.Profile.DisplayName, &u.Profile.Description, &u.Profile.AvatarURL, &u.Profile.BannerURL,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}
