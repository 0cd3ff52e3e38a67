package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kendrekaran/clr-bke/internal/models"
)

// AccountRepository handles persistence of accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, role, full_name, email, password_hash, parent_email, created_at, updated_at`

// FindByEmail returns the account with the given email, matched
// case-insensitively.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByID returns the account by its ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// EmailExists checks whether the email is already taken.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, strings.ToLower(email)); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// Create persists a new account. Email is stored lowercased.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Email = strings.ToLower(account.Email)
	const query = `INSERT INTO accounts (id, role, full_name, email, password_hash, parent_email, created_at, updated_at)
        VALUES (:id, :role, :full_name, :email, :password_hash, :parent_email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// SetParentEmail links a student account to a parent email.
func (r *AccountRepository) SetParentEmail(ctx context.Context, studentID, parentEmail string) error {
	const query = `UPDATE accounts SET parent_email = $2, updated_at = $3 WHERE id = $1 AND role = $4`
	if _, err := r.db.ExecContext(ctx, query, studentID, strings.ToLower(parentEmail), time.Now().UTC(), models.RoleStudent); err != nil {
		return fmt.Errorf("set parent email: %w", err)
	}
	return nil
}

// FilterStudents returns the subset of the given IDs that resolve to student
// accounts.
func (r *AccountRepository) FilterStudents(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, models.RoleStudent)
	query := fmt.Sprintf(`SELECT id FROM accounts WHERE id IN (%s) AND role = $%d`,
		strings.Join(placeholders, ","), len(ids)+1)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter students: %w", err)
	}
	defer rows.Close()

	students := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		students[id] = true
	}
	return students, rows.Err()
}

// ListByIDs returns public projections for the given account IDs.
func (r *AccountRepository) ListByIDs(ctx context.Context, ids []string) ([]models.UserInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, email, full_name, role FROM accounts WHERE id IN (%s) ORDER BY full_name`,
		strings.Join(placeholders, ","))
	var infos []models.UserInfo
	if err := r.db.SelectContext(ctx, &infos, query, args...); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return infos, nil
}
