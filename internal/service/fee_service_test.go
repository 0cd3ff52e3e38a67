package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type feeStoreMock struct {
	payments map[string]*models.FeePayment
}

func feeKey(batchID, studentID string) string { return batchID + "/" + studentID }

func (m *feeStoreMock) Upsert(ctx context.Context, payment *models.FeePayment) error {
	if m.payments == nil {
		m.payments = make(map[string]*models.FeePayment)
	}
	key := feeKey(payment.BatchID, payment.StudentID)
	if existing, ok := m.payments[key]; ok {
		payment.ID = existing.ID
	} else if payment.ID == "" {
		payment.ID = "fee-" + payment.StudentID
	}
	clone := *payment
	m.payments[key] = &clone
	return nil
}

func (m *feeStoreMock) Find(ctx context.Context, batchID, studentID string) (*models.FeePayment, error) {
	if p, ok := m.payments[feeKey(batchID, studentID)]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *feeStoreMock) ListByBatch(ctx context.Context, batchID string) ([]models.FeePayment, error) {
	var out []models.FeePayment
	for _, p := range m.payments {
		if p.BatchID == batchID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func newFeeFixture() (*FeeService, *feeStoreMock) {
	batches := newBatchStoreMock()
	batches.batches["batch-1"] = &models.Batch{ID: "batch-1", Code: "PHY2026", TeacherID: "teacher-1", Version: 1}
	batches.members["batch-1"] = map[string]bool{"student-1": true}
	accounts := &accountStoreMock{accounts: map[string]*models.Account{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Email: "s1@example.com"},
	}}
	access := NewAccessService(batches, accounts, nil)
	store := &feeStoreMock{}
	return NewFeeService(store, batches, access, nil, nil), store
}

func TestFeeRecordRequiresEnrollment(t *testing.T) {
	svc, _ := newFeeFixture()

	_, err := svc.Record(context.Background(), "batch-1", RecordFeeRequest{
		StudentID: "student-9",
		Amount:    1500,
		Method:    models.PaymentOnline,
		Status:    models.PaymentPaid,
	}, teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestFeeRecordReplacesInPlace(t *testing.T) {
	svc, store := newFeeFixture()
	claims := teacherClaims("teacher-1")

	first, err := svc.Record(context.Background(), "batch-1", RecordFeeRequest{
		StudentID: "student-1",
		Amount:    1500,
		Method:    models.PaymentOffline,
		Status:    models.PaymentPending,
	}, claims)
	require.NoError(t, err)

	second, err := svc.Record(context.Background(), "batch-1", RecordFeeRequest{
		StudentID: "student-1",
		Amount:    1500,
		Method:    models.PaymentOnline,
		Status:    models.PaymentPaid,
	}, claims)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.payments, 1)
	assert.Equal(t, models.PaymentPaid, store.payments[feeKey("batch-1", "student-1")].Status)
}

func TestFeeRecordRejectsBadEnums(t *testing.T) {
	svc, _ := newFeeFixture()

	_, err := svc.Record(context.Background(), "batch-1", RecordFeeRequest{
		StudentID: "student-1",
		Amount:    1500,
		Method:    "CHEQUE",
		Status:    models.PaymentPaid,
	}, teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestFeeGetMissingIsNil(t *testing.T) {
	svc, _ := newFeeFixture()

	payment, err := svc.Get(context.Background(), "batch-1", "student-1", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestFeeGetScopedToStudent(t *testing.T) {
	svc, _ := newFeeFixture()
	claims := teacherClaims("teacher-1")

	_, err := svc.Record(context.Background(), "batch-1", RecordFeeRequest{
		StudentID: "student-1",
		Amount:    2000,
		Method:    models.PaymentOnline,
		Status:    models.PaymentPaid,
	}, claims)
	require.NoError(t, err)

	student := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, Email: "s1@example.com"}
	payment, err := svc.Get(context.Background(), "batch-1", "", student)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, 2000.0, payment.Amount)
}

func TestFeeListOwnerOnly(t *testing.T) {
	svc, _ := newFeeFixture()

	_, err := svc.List(context.Background(), "batch-1", &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	payments, err := svc.List(context.Background(), "batch-1", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Empty(t, payments)
	assert.NotNil(t, payments)
}
