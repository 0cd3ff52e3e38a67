package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendrekaran/clr-bke/internal/models"
)

func newFeeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFeeRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectExec("INSERT INTO fee_payments").
		WithArgs(sqlmock.AnyArg(), "batch-1", "student-1", 1500.0, string(models.PaymentOnline), string(models.PaymentPaid), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.FeePayment{
		BatchID:   "batch-1",
		StudentID: "student-1",
		Amount:    1500,
		Method:    models.PaymentOnline,
		Status:    models.PaymentPaid,
	}
	err := repo.Upsert(context.Background(), payment)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryFindMissing(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery("SELECT id, batch_id, student_id").
		WithArgs("batch-1", "student-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "batch-1", "student-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryListByBatch(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)
	now := time.Now()
	remarks := "first installment"

	mock.ExpectQuery(regexp.QuoteMeta("FROM fee_payments WHERE batch_id = $1 ORDER BY updated_at DESC")).
		WithArgs("batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_id", "student_id", "amount", "method", "status", "remarks", "created_at", "updated_at"}).
			AddRow("fee-1", "batch-1", "student-1", 1500.0, "ONLINE", "PAID", &remarks, now, now).
			AddRow("fee-2", "batch-1", "student-2", 2000.0, "OFFLINE", "PENDING", nil, now, now))

	payments, err := repo.ListByBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, models.PaymentPaid, payments[0].Status)
	require.NotNil(t, payments[0].Remarks)
	assert.Equal(t, "first installment", *payments[0].Remarks)
	assert.Nil(t, payments[1].Remarks)
	assert.NoError(t, mock.ExpectationsWereMet())
}
