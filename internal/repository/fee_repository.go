package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kendrekaran/clr-bke/internal/models"
)

// FeeRepository handles persistence of fee payment records. The unique index
// on (batch_id, student_id) carries the one-record-per-student invariant.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// Upsert replaces the student's single payment record in place.
func (r *FeeRepository) Upsert(ctx context.Context, payment *models.FeePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO fee_payments (id, batch_id, student_id, amount, method, status, remarks, created_at, updated_at)
        VALUES (:id, :batch_id, :student_id, :amount, :method, :status, :remarks, :created_at, :updated_at)
        ON CONFLICT (batch_id, student_id)
        DO UPDATE SET amount = EXCLUDED.amount, method = EXCLUDED.method, status = EXCLUDED.status,
            remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("upsert fee payment: %w", err)
	}
	return nil
}

// Find returns a student's payment record for a batch.
func (r *FeeRepository) Find(ctx context.Context, batchID, studentID string) (*models.FeePayment, error) {
	const query = `SELECT id, batch_id, student_id, amount, method, status, remarks, created_at, updated_at
        FROM fee_payments WHERE batch_id = $1 AND student_id = $2`
	var payment models.FeePayment
	if err := r.db.GetContext(ctx, &payment, query, batchID, studentID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByBatch returns every payment record for a batch.
func (r *FeeRepository) ListByBatch(ctx context.Context, batchID string) ([]models.FeePayment, error) {
	const query = `SELECT id, batch_id, student_id, amount, method, status, remarks, created_at, updated_at
        FROM fee_payments WHERE batch_id = $1 ORDER BY updated_at DESC`
	var payments []models.FeePayment
	if err := r.db.SelectContext(ctx, &payments, query, batchID); err != nil {
		return nil, fmt.Errorf("list fee payments: %w", err)
	}
	return payments, nil
}
