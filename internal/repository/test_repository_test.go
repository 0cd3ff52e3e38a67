package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendrekaran/clr-bke/internal/models"
)

func newTestMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTestRepositoryUpsertMarksTransactional(t *testing.T) {
	db, mock, cleanup := newTestMock(t)
	defer cleanup()
	repo := NewTestRepository(db)

	remarks := "good attempt"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO test_marks").
		WithArgs("test-1", "student-1", 65, &remarks, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO test_marks").
		WithArgs("test-1", "student-2", 80, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	marks := []models.TestMark{
		{StudentID: "student-1", Marks: 65, Remarks: &remarks},
		{StudentID: "student-2", Marks: 80},
	}
	err := repo.UpsertMarks(context.Background(), "test-1", marks)
	require.NoError(t, err)
	assert.Equal(t, "test-1", marks[0].TestID)
	assert.Equal(t, "test-1", marks[1].TestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestRepositoryUpsertMarksEmpty(t *testing.T) {
	db, mock, cleanup := newTestMock(t)
	defer cleanup()
	repo := NewTestRepository(db)

	err := repo.UpsertMarks(context.Background(), "test-1", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestRepositoryUpsertMarksRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newTestMock(t)
	defer cleanup()
	repo := NewTestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO test_marks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO test_marks").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.UpsertMarks(context.Background(), "test-1", []models.TestMark{
		{StudentID: "student-1", Marks: 40},
		{StudentID: "student-2", Marks: 50},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
