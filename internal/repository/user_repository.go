package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Armin-FalDiS/availability-bot/internal/domain"
)

// UserRepository defines persistence access for group members.
type UserRepository interface {
	GetOrCreate(ctx context.Context, id int64, displayName string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// GetOrCreate inserts the user or refreshes the display name in a single
// upsert. Display name is last-writer-wins under concurrency, which is
// acceptable: it is presentation data, not a safety property.
func (r *userRepository) GetOrCreate(ctx context.Context, id int64, displayName string) (*domain.User, error) {
	const query = `
        INSERT INTO users (user_id, display_name)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name
        RETURNING user_id, display_name, created_at`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id, displayName).Scan(
		&user.ID,
		&user.DisplayName,
		&user.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("get or create user %d: %w", id, err)
	}
	return &user, nil
}
