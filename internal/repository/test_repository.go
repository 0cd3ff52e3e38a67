package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kendrekaran/clr-bke/internal/models"
)

// TestRepository handles persistence of tests and per-student marks.
type TestRepository struct {
	db *sqlx.DB
}

// NewTestRepository constructs the repository.
func NewTestRepository(db *sqlx.DB) *TestRepository {
	return &TestRepository{db: db}
}

// Create persists a new test definition with no marks.
func (r *TestRepository) Create(ctx context.Context, test *models.Test) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	test.CreatedAt = now
	test.UpdatedAt = now
	const query = `INSERT INTO tests (id, batch_id, exam_name, subject, max_marks, created_by, created_at, updated_at)
        VALUES (:id, :batch_id, :exam_name, :subject, :max_marks, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("create test: %w", err)
	}
	return nil
}

// FindByID returns a test scoped to a batch.
func (r *TestRepository) FindByID(ctx context.Context, batchID, id string) (*models.Test, error) {
	const query = `SELECT id, batch_id, exam_name, subject, max_marks, created_by, created_at, updated_at
        FROM tests WHERE id = $1 AND batch_id = $2`
	var test models.Test
	if err := r.db.GetContext(ctx, &test, query, id, batchID); err != nil {
		return nil, err
	}
	return &test, nil
}

// ListByBatch returns tests most-recent-first.
func (r *TestRepository) ListByBatch(ctx context.Context, batchID string) ([]models.Test, error) {
	const query = `SELECT id, batch_id, exam_name, subject, max_marks, created_by, created_at, updated_at
        FROM tests WHERE batch_id = $1 ORDER BY created_at DESC`
	var tests []models.Test
	if err := r.db.SelectContext(ctx, &tests, query, batchID); err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}

// Delete removes a test and its marks (cascade).
func (r *TestRepository) Delete(ctx context.Context, batchID, id string) error {
	const query = `DELETE FROM tests WHERE id = $1 AND batch_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, batchID)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete test rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertMarks writes the given marks rows in one transaction, replacing marks
// and remarks for students that already have a row.
func (r *TestRepository) UpsertMarks(ctx context.Context, testID string, marks []models.TestMark) error {
	if len(marks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert marks: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO test_marks (test_id, student_id, marks, remarks, updated_at)
        VALUES (:test_id, :student_id, :marks, :remarks, :updated_at)
        ON CONFLICT (test_id, student_id)
        DO UPDATE SET marks = EXCLUDED.marks, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range marks {
		marks[i].TestID = testID
		marks[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, &marks[i]); err != nil {
			return fmt.Errorf("upsert test mark: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert marks: %w", err)
	}
	return nil
}

// ListMarks returns the marks rows for a test.
func (r *TestRepository) ListMarks(ctx context.Context, testID string) ([]models.TestMark, error) {
	const query = `SELECT test_id, student_id, marks, remarks, updated_at
        FROM test_marks WHERE test_id = $1 ORDER BY student_id`
	var marks []models.TestMark
	if err := r.db.SelectContext(ctx, &marks, query, testID); err != nil {
		return nil, fmt.Errorf("list test marks: %w", err)
	}
	return marks, nil
}

// FindMark returns a single student's marks row for a test.
func (r *TestRepository) FindMark(ctx context.Context, testID, studentID string) (*models.TestMark, error) {
	const query = `SELECT test_id, student_id, marks, remarks, updated_at
        FROM test_marks WHERE test_id = $1 AND student_id = $2`
	var mark models.TestMark
	if err := r.db.GetContext(ctx, &mark, query, testID, studentID); err != nil {
		return nil, err
	}
	return &mark, nil
}
