package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kendrekaran/clr-bke/internal/models"
)

// AttendanceRepository handles persistence of attendance registers. The
// unique index on (batch_id, date) carries the one-record-per-day invariant.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ExistsForDate checks whether a register already exists for (batch, date).
func (r *AttendanceRepository) ExistsForDate(ctx context.Context, batchID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE batch_id = $1 AND date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, batchID, date); err != nil {
		return false, fmt.Errorf("check attendance date: %w", err)
	}
	return exists, nil
}

// Create persists a register with its entries in one transaction.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord, entries []models.AttendanceEntry) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create attendance: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRecord = `INSERT INTO attendance_records (id, batch_id, date, marked_by, created_at, updated_at)
        VALUES (:id, :batch_id, :date, :marked_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertRecord, record); err != nil {
		return fmt.Errorf("insert attendance record: %w", err)
	}

	if err := insertEntries(ctx, tx, record.ID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create attendance: %w", err)
	}
	return nil
}

// FindByID returns a register with its entries.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecordDetail, error) {
	const query = `SELECT id, batch_id, date, marked_by, created_at, updated_at FROM attendance_records WHERE id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	entries, err := r.listEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.AttendanceRecordDetail{AttendanceRecord: record, Entries: entries}, nil
}

// ReplaceEntries swaps the full entry list for a register.
func (r *AttendanceRepository) ReplaceEntries(ctx context.Context, attendanceID string, entries []models.AttendanceEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace entries: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_entries WHERE attendance_id = $1`, attendanceID); err != nil {
		return fmt.Errorf("clear attendance entries: %w", err)
	}
	if err := insertEntries(ctx, tx, attendanceID, entries); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE attendance_records SET updated_at = $2 WHERE id = $1`, attendanceID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch attendance record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace entries: %w", err)
	}
	return nil
}

// Query returns registers for a batch, optionally bounded by dates and
// filtered to a single student's rows.
func (r *AttendanceRepository) Query(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, error) {
	query := `SELECT id, batch_id, date, marked_by, created_at, updated_at FROM attendance_records WHERE batch_id = $1`
	args := []interface{}{filter.BatchID}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date DESC"

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}

	details := make([]models.AttendanceRecordDetail, 0, len(records))
	for _, record := range records {
		entries, err := r.listEntries(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		if filter.StudentID != "" {
			entries = filterEntries(entries, filter.StudentID)
			if len(entries) == 0 {
				continue
			}
		}
		details = append(details, models.AttendanceRecordDetail{AttendanceRecord: record, Entries: entries})
	}
	return details, nil
}

func (r *AttendanceRepository) listEntries(ctx context.Context, attendanceID string) ([]models.AttendanceEntry, error) {
	const query = `SELECT attendance_id, student_id, status FROM attendance_entries WHERE attendance_id = $1 ORDER BY student_id`
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, attendanceID); err != nil {
		return nil, fmt.Errorf("list attendance entries: %w", err)
	}
	return entries, nil
}

func insertEntries(ctx context.Context, tx *sqlx.Tx, attendanceID string, entries []models.AttendanceEntry) error {
	const query = `INSERT INTO attendance_entries (attendance_id, student_id, status) VALUES (:attendance_id, :student_id, :status)`
	for i := range entries {
		entries[i].AttendanceID = attendanceID
		if _, err := tx.NamedExecContext(ctx, query, &entries[i]); err != nil {
			return fmt.Errorf("insert attendance entry: %w", err)
		}
	}
	return nil
}

func filterEntries(entries []models.AttendanceEntry, studentID string) []models.AttendanceEntry {
	filtered := entries[:0:0]
	for _, entry := range entries {
		if entry.StudentID == studentID {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}
