package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Armin-FalDiS/availability-bot/internal/domain"
)

// AvailabilityRepository defines persistence access for hour slots.
//
// The red=absent-row convention is owned by the service layer; this layer
// only knows keyed upserts, keyed deletes and range scans.
type AvailabilityRepository interface {
	Range(ctx context.Context, startDate, endDate string) ([]domain.AvailabilityEntry, error)
	Upsert(ctx context.Context, userID int64, slot domain.SlotInput) (*domain.AvailabilitySlot, error)
	Delete(ctx context.Context, userID int64, date string, hour int) error
	BatchApply(ctx context.Context, userID int64, deletes, upserts []domain.SlotInput) ([]domain.AvailabilitySlot, error)
}

type availabilityRepository struct {
	pool *pgxpool.Pool
}

// NewAvailabilityRepository returns a Postgres-backed implementation.
func NewAvailabilityRepository(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepository{pool: pool}
}

// date::text keeps the wire format a plain YYYY-MM-DD string regardless of
// how the driver would otherwise materialize a DATE column.
const upsertQuery = `
        INSERT INTO availability (user_id, date, hour, status, updated_at)
        VALUES ($1, $2::date, $3, $4, NOW())
        ON CONFLICT (user_id, date, hour)
        DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
        RETURNING id, user_id, date::text, hour, status, updated_at`

const deleteQuery = `
        DELETE FROM availability
        WHERE user_id = $1 AND date = $2::date AND hour = $3`

// Range returns all slots in the inclusive date range joined with their
// owner's display name, ordered by date, hour, display name.
func (r *availabilityRepository) Range(ctx context.Context, startDate, endDate string) ([]domain.AvailabilityEntry, error) {
	const query = `
        SELECT a.id, a.user_id, a.date::text, a.hour, a.status, a.updated_at, u.display_name
        FROM availability a
        JOIN users u ON u.user_id = a.user_id
        WHERE a.date >= $1::date AND a.date <= $2::date
        ORDER BY a.date, a.hour, u.display_name`

	rows, err := r.pool.Query(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("query availability range: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AvailabilityEntry, 0)
	for rows.Next() {
		var e domain.AvailabilityEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Date,
			&e.Hour,
			&e.Status,
			&e.UpdatedAt,
			&e.DisplayName,
		); err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability rows: %w", err)
	}
	return entries, nil
}

// Upsert inserts the slot or, on key conflict, overwrites status and
// updated_at. Postgres resolves the conflict natively, so two concurrent
// writers for the same key never need application-level locking.
func (r *availabilityRepository) Upsert(ctx context.Context, userID int64, slot domain.SlotInput) (*domain.AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, upsertQuery, userID, slot.Date, slot.Hour, slot.Status)
	saved, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("upsert availability slot: %w", err)
	}
	return saved, nil
}

// Delete removes the slot at the key. Deleting an absent row is not an
// error; the operation is idempotent.
func (r *availabilityRepository) Delete(ctx context.Context, userID int64, date string, hour int) error {
	if _, err := r.pool.Exec(ctx, deleteQuery, userID, date, hour); err != nil {
		return fmt.Errorf("delete availability slot: %w", err)
	}
	return nil
}

// BatchApply runs all deletes, then all upserts in order, inside a single
// transaction. The original per-row loop could leave a partial prefix on
// failure; wrapping the batch makes a failed call leave no trace.
func (r *availabilityRepository) BatchApply(ctx context.Context, userID int64, deletes, upserts []domain.SlotInput) ([]domain.AvailabilitySlot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, slot := range deletes {
		if _, err := tx.Exec(ctx, deleteQuery, userID, slot.Date, slot.Hour); err != nil {
			return nil, fmt.Errorf("batch delete slot: %w", err)
		}
	}

	saved := make([]domain.AvailabilitySlot, 0, len(upserts))
	for _, slot := range upserts {
		row := tx.QueryRow(ctx, upsertQuery, userID, slot.Date, slot.Hour, slot.Status)
		s, err := scanSlot(row)
		if err != nil {
			return nil, fmt.Errorf("batch upsert slot: %w", err)
		}
		saved = append(saved, *s)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return saved, nil
}

func scanSlot(row pgx.Row) (*domain.AvailabilitySlot, error) {
	var s domain.AvailabilitySlot
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Date,
		&s.Hour,
		&s.Status,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
