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

type accessBatchStore struct {
	batches  map[string]*models.Batch
	enrolled map[string]bool
}

func (m *accessBatchStore) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := m.batches[id]; ok {
		copy := *b
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *accessBatchStore) IsEnrolled(ctx context.Context, batchID, studentID string) (bool, error) {
	return m.enrolled[batchID+"/"+studentID], nil
}

type accessAccountStore struct {
	accounts map[string]*models.Account
}

func (m *accessAccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if a, ok := m.accounts[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(s string) *string { return &s }

func newAccessFixture() *AccessService {
	batches := &accessBatchStore{
		batches: map[string]*models.Batch{
			"batch-1": {ID: "batch-1", Code: "PHY2026", TeacherID: "teacher-1", Version: 1},
		},
		enrolled: map[string]bool{
			"batch-1/student-1": true,
		},
	}
	accounts := &accessAccountStore{
		accounts: map[string]*models.Account{
			"student-1": {ID: "student-1", Role: models.RoleStudent, Email: "s1@example.com", ParentEmail: strPtr("parent@example.com")},
			"student-2": {ID: "student-2", Role: models.RoleStudent, Email: "s2@example.com"},
		},
	}
	return NewAccessService(batches, accounts, nil)
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher, Email: id + "@example.com"}
}

func TestRequireBatchOwner(t *testing.T) {
	svc := newAccessFixture()

	batch, err := svc.RequireBatchOwner(context.Background(), "batch-1", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "PHY2026", batch.Code)

	_, err = svc.RequireBatchOwner(context.Background(), "batch-1", teacherClaims("teacher-2"))
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.RequireBatchOwner(context.Background(), "missing", teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestResolveReadScopeTeacher(t *testing.T) {
	svc := newAccessFixture()

	scope, err := svc.ResolveReadScope(context.Background(), "batch-1", "", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Empty(t, scope.StudentID)

	scope, err = svc.ResolveReadScope(context.Background(), "batch-1", "student-1", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "student-1", scope.StudentID)
}

func TestResolveReadScopeStudent(t *testing.T) {
	svc := newAccessFixture()
	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, Email: "s1@example.com"}

	scope, err := svc.ResolveReadScope(context.Background(), "batch-1", "", claims)
	require.NoError(t, err)
	assert.Equal(t, "student-1", scope.StudentID)

	_, err = svc.ResolveReadScope(context.Background(), "batch-1", "student-2", claims)
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	stranger := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent, Email: "s2@example.com"}
	_, err = svc.ResolveReadScope(context.Background(), "batch-1", "", stranger)
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestResolveReadScopeParent(t *testing.T) {
	svc := newAccessFixture()
	parent := &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent, Email: "parent@example.com"}

	_, err := svc.ResolveReadScope(context.Background(), "batch-1", "", parent)
	requireAppError(t, err, appErrors.ErrValidation.Code)

	scope, err := svc.ResolveReadScope(context.Background(), "batch-1", "student-1", parent)
	require.NoError(t, err)
	assert.Equal(t, "student-1", scope.StudentID)
}

func TestResolveReadScopeParentLinkageBeforeEnrollment(t *testing.T) {
	svc := newAccessFixture()

	// Wrong parent asking for an enrolled student is rejected on linkage,
	// not enrollment.
	other := &models.JWTClaims{UserID: "parent-2", Role: models.RoleParent, Email: "other@example.com"}
	_, err := svc.ResolveReadScope(context.Background(), "batch-1", "student-1", other)
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	// Linked parent of an unenrolled student fails on enrollment.
	linked := &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent, Email: "parent@example.com"}
	accounts := svc.accounts.(*accessAccountStore)
	accounts.accounts["student-3"] = &models.Account{ID: "student-3", Role: models.RoleStudent, ParentEmail: strPtr("parent@example.com")}
	_, err = svc.ResolveReadScope(context.Background(), "batch-1", "student-3", linked)
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, code, appErr.Code)
}
