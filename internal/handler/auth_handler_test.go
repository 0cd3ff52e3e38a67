package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kendrekaran/clr-bke/internal/middleware"
	"github.com/kendrekaran/clr-bke/internal/models"
	"github.com/kendrekaran/clr-bke/internal/service"
)

type accountRepoMock struct {
	accounts map[string]*models.Account
}

func newAccountRepoMock() *accountRepoMock {
	return &accountRepoMock{accounts: make(map[string]*models.Account)}
}

func (m *accountRepoMock) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			clone := *a
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *accountRepoMock) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if a, ok := m.accounts[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *accountRepoMock) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *accountRepoMock) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = "acct-" + account.Email
	}
	clone := *account
	m.accounts[account.ID] = &clone
	return nil
}

func (m *accountRepoMock) SetParentEmail(ctx context.Context, studentID, parentEmail string) error {
	a, ok := m.accounts[studentID]
	if !ok {
		return sql.ErrNoRows
	}
	a.ParentEmail = &parentEmail
	return nil
}

func newAuthHandlerFixture(t *testing.T) (*AuthHandler, *accountRepoMock) {
	t.Helper()
	repo := newAccountRepoMock()
	svc := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		Secret:            "test-secret",
		TokenExpiry:       time.Hour,
		PortalTokenExpiry: 24 * time.Hour,
		Issuer:            "clr-bke",
	})
	return NewAuthHandler(svc), repo
}

func seedHandlerAccount(t *testing.T, repo *accountRepoMock, id string, role models.Role, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo.accounts[id] = &models.Account{ID: id, Role: role, Email: email, PasswordHash: string(hash)}
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, target, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestAuthHandlerRegister(t *testing.T) {
	h, _ := newAuthHandlerFixture(t)

	w, c := jsonRequest(t, http.MethodPost, "/auth/register", service.RegisterRequest{
		Role: models.RoleTeacher, FullName: "T One", Email: "t1@example.com", Password: "secret1",
	})
	h.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.NotEmpty(t, data["access_token"])
}

func TestAuthHandlerRegisterDuplicate(t *testing.T) {
	h, repo := newAuthHandlerFixture(t)
	seedHandlerAccount(t, repo, "teacher-1", models.RoleTeacher, "t1@example.com", "secret1")

	w, c := jsonRequest(t, http.MethodPost, "/auth/register", service.RegisterRequest{
		Role: models.RoleTeacher, FullName: "T Two", Email: "t1@example.com", Password: "secret2",
	})
	h.Register(c)

	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.NotNil(t, envelope["error"])
}

func TestAuthHandlerRegisterInvalidBody(t *testing.T) {
	h, _ := newAuthHandlerFixture(t)
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Register(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerStudentLoginRejectsTeacher(t *testing.T) {
	h, repo := newAuthHandlerFixture(t)
	seedHandlerAccount(t, repo, "teacher-1", models.RoleTeacher, "t1@example.com", "secret1")

	w, c := jsonRequest(t, http.MethodPost, "/auth/student/login", service.LoginRequest{
		Email: "t1@example.com", Password: "secret1",
	})
	h.StudentLogin(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	h, repo := newAuthHandlerFixture(t)
	seedHandlerAccount(t, repo, "teacher-1", models.RoleTeacher, "t1@example.com", "secret1")

	w, c := jsonRequest(t, http.MethodPost, "/auth/login", service.LoginRequest{
		Email: "t1@example.com", Password: "secret1",
	})
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.EqualValues(t, 3600, data["expires_in"])
}

func TestAuthHandlerMe(t *testing.T) {
	h, repo := newAuthHandlerFixture(t)
	seedHandlerAccount(t, repo, "teacher-1", models.RoleTeacher, "t1@example.com", "secret1")

	w, c := jsonRequest(t, http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "t1@example.com", data["email"])
}

func TestAuthHandlerMeWithoutClaims(t *testing.T) {
	h, _ := newAuthHandlerFixture(t)

	w, c := jsonRequest(t, http.MethodGet, "/auth/me", nil)
	h.Me(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
