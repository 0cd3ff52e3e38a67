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

// BatchRepository handles persistence of batches and their memberships.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, code, name, class, teacher_id, version, created_at, updated_at`

// FindByID returns a batch by its ID.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE id = $1`, batchColumns)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindByCode returns a batch by its canonical (uppercase) code.
func (r *BatchRepository) FindByCode(ctx context.Context, code string) (*models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE code = $1`, batchColumns)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, strings.ToUpper(code)); err != nil {
		return nil, err
	}
	return &batch, nil
}

// CodeExists checks whether the canonical code is already taken.
func (r *BatchRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM batches WHERE code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, strings.ToUpper(code)); err != nil {
		return false, fmt.Errorf("check batch code: %w", err)
	}
	return exists, nil
}

// Create persists a new batch with version 1.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	batch.Version = 1
	batch.Code = strings.ToUpper(batch.Code)
	const query = `INSERT INTO batches (id, code, name, class, teacher_id, version, created_at, updated_at)
        VALUES (:id, :code, :name, :class, :teacher_id, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// UpdateFields applies the supplied name/class changes guarded by the
// optimistic version check. It reports sql.ErrNoRows when the version is
// stale or the batch is gone.
func (r *BatchRepository) UpdateFields(ctx context.Context, id string, version int, name, class *string) error {
	sets := []string{"version = version + 1", "updated_at = $3"}
	args := []interface{}{id, version, time.Now().UTC()}
	if name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *name)
	}
	if class != nil {
		sets = append(sets, fmt.Sprintf("class = $%d", len(args)+1))
		args = append(args, *class)
	}
	query := fmt.Sprintf(`UPDATE batches SET %s WHERE id = $1 AND version = $2`, strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a batch guarded by the optimistic version check. Child rows
// (memberships, announcements, timetable, tests, fees, attendance) go with it
// via ON DELETE CASCADE.
func (r *BatchRepository) Delete(ctx context.Context, id string, version int) error {
	const query = `DELETE FROM batches WHERE id = $1 AND version = $2`
	res, err := r.db.ExecContext(ctx, query, id, version)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete batch rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByTeacher returns the batches owned by a teacher.
func (r *BatchRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE teacher_id = $1 ORDER BY created_at DESC`, batchColumns)
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher batches: %w", err)
	}
	return batches, nil
}

// ListByStudent returns the batches a student is enrolled in.
func (r *BatchRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Batch, error) {
	query := fmt.Sprintf(`SELECT b.%s FROM batches b
        JOIN batch_students bs ON bs.batch_id = b.id
        WHERE bs.student_id = $1 ORDER BY b.created_at DESC`,
		strings.ReplaceAll(batchColumns, ", ", ", b."))
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, studentID); err != nil {
		return nil, fmt.Errorf("list student batches: %w", err)
	}
	return batches, nil
}

// IsEnrolled checks a batch membership.
func (r *BatchRepository) IsEnrolled(ctx context.Context, batchID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM batch_students WHERE batch_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, batchID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// AddMembers enrolls the given students, silently skipping ids that are
// already enrolled.
func (r *BatchRepository) AddMembers(ctx context.Context, batchID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	values := make([]string, len(studentIDs))
	args := []interface{}{batchID, now}
	for i, id := range studentIDs {
		values[i] = fmt.Sprintf("($1, $%d, $2)", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`INSERT INTO batch_students (batch_id, student_id, joined_at)
        VALUES %s ON CONFLICT (batch_id, student_id) DO NOTHING`, strings.Join(values, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add batch members: %w", err)
	}
	return nil
}

// RemoveMember unenrolls a student. Reports sql.ErrNoRows when the membership
// did not exist.
func (r *BatchRepository) RemoveMember(ctx context.Context, batchID, studentID string) error {
	const query = `DELETE FROM batch_students WHERE batch_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, batchID, studentID)
	if err != nil {
		return fmt.Errorf("remove batch member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove batch member rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMemberIDs returns the enrolled student ids for a batch.
func (r *BatchRepository) ListMemberIDs(ctx context.Context, batchID string) ([]string, error) {
	const query = `SELECT student_id FROM batch_students WHERE batch_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, batchID); err != nil {
		return nil, fmt.Errorf("list batch members: %w", err)
	}
	return ids, nil
}
