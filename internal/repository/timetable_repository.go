package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kendrekaran/clr-bke/internal/models"
)

// TimetableRepository handles persistence of timetable slots. The unique
// index on (batch_id, day, hour) carries the one-entry-per-slot invariant.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ReplaceDay swaps the full list of entries for a day in one transaction.
func (r *TimetableRepository) ReplaceDay(ctx context.Context, batchID string, day models.Weekday, entries []models.TimetableEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace day: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_entries WHERE batch_id = $1 AND day = $2`, batchID, day); err != nil {
		return fmt.Errorf("clear day: %w", err)
	}

	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		entry.ID = uuid.NewString()
		entry.BatchID = batchID
		entry.Day = day
		entry.CreatedAt = now
		entry.UpdatedAt = now
		const query = `INSERT INTO timetable_entries (id, batch_id, day, hour, subject, teacher, created_at, updated_at)
            VALUES (:id, :batch_id, :day, :hour, :subject, :teacher, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
			return fmt.Errorf("insert day entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace day: %w", err)
	}
	return nil
}

// Upsert writes the slot at (batch, day, hour), updating in place when a row
// already occupies the slot.
func (r *TimetableRepository) Upsert(ctx context.Context, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	const query = `INSERT INTO timetable_entries (id, batch_id, day, hour, subject, teacher, created_at, updated_at)
        VALUES (:id, :batch_id, :day, :hour, :subject, :teacher, :created_at, :updated_at)
        ON CONFLICT (batch_id, day, hour)
        DO UPDATE SET subject = EXCLUDED.subject, teacher = EXCLUDED.teacher, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert timetable entry: %w", err)
	}
	return nil
}

// DeleteSlot removes the entry at (batch, day, hour).
func (r *TimetableRepository) DeleteSlot(ctx context.Context, batchID string, day models.Weekday, hour int) error {
	const query = `DELETE FROM timetable_entries WHERE batch_id = $1 AND day = $2 AND hour = $3`
	res, err := r.db.ExecContext(ctx, query, batchID, day, hour)
	if err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable slot rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearDay removes every entry for the day.
func (r *TimetableRepository) ClearDay(ctx context.Context, batchID string, day models.Weekday) error {
	const query = `DELETE FROM timetable_entries WHERE batch_id = $1 AND day = $2`
	if _, err := r.db.ExecContext(ctx, query, batchID, day); err != nil {
		return fmt.Errorf("clear timetable day: %w", err)
	}
	return nil
}

// ListDay returns a day's entries sorted by hour ascending.
func (r *TimetableRepository) ListDay(ctx context.Context, batchID string, day models.Weekday) ([]models.TimetableEntry, error) {
	const query = `SELECT id, batch_id, day, hour, subject, teacher, created_at, updated_at
        FROM timetable_entries WHERE batch_id = $1 AND day = $2 ORDER BY hour ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, batchID, day); err != nil {
		return nil, fmt.Errorf("list timetable day: %w", err)
	}
	return entries, nil
}

// ListWeek returns all entries for a batch ordered by day then hour.
func (r *TimetableRepository) ListWeek(ctx context.Context, batchID string) ([]models.TimetableEntry, error) {
	days := make([]string, len(models.Weekdays))
	for i, d := range models.Weekdays {
		days[i] = fmt.Sprintf("'%s'", d)
	}
	query := fmt.Sprintf(`SELECT id, batch_id, day, hour, subject, teacher, created_at, updated_at
        FROM timetable_entries WHERE batch_id = $1
        ORDER BY array_position(ARRAY[%s]::text[], day), hour ASC`, strings.Join(days, ","))
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, batchID); err != nil {
		return nil, fmt.Errorf("list timetable week: %w", err)
	}
	return entries, nil
}
