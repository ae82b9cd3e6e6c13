package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/student-stay/internal/backend"
)

// Account mirrors the users table.
type Account struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash string
	Name         string
	College      string
	Provider     string // password, phone or google
	ProviderSub  string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = "id,COALESCE(email,''),COALESCE(phone,''),COALESCE(password_hash,''),name,college,provider,COALESCE(provider_sub,''),is_admin,created_at,updated_at"

func nullable(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

// Create inserts a and returns it with its generated id. Email is stored
// lower-cased.
func (r *AccountRepo) Create(ctx context.Context, a Account) (Account, error) {
	a.ID = uuid.NewString()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, phone, password_hash, name, college, provider, provider_sub, is_admin)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, nullable(a.Email), nullable(a.Phone), nullable(a.PasswordHash), a.Name, a.College,
		a.Provider, nullable(a.ProviderSub), a.IsAdmin)
	if err != nil {
		if key, ok := duplicateKey(err); ok {
			switch {
			case strings.Contains(key, "email"):
				return Account{}, backend.ErrEmailExists
			case strings.Contains(key, "phone"):
				return Account{}, backend.ErrPhoneExists
			}
			return Account{}, ErrConflict
		}
		return Account{}, err
	}
	return r.GetByID(ctx, a.ID)
}

func (r *AccountRepo) getOne(ctx context.Context, where string, arg any) (Account, error) {
	var a Account
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE "+where+" LIMIT 1", arg).
		Scan(&a.ID, &a.Email, &a.Phone, &a.PasswordHash, &a.Name, &a.College,
			&a.Provider, &a.ProviderSub, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, backend.ErrNotFound
	}
	return a, err
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (Account, error) {
	return r.getOne(ctx, "id=?", id)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.getOne(ctx, "email=?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (Account, error) {
	return r.getOne(ctx, "phone=?", phone)
}

// GetByProvider finds the account linked to a federated identity.
func (r *AccountRepo) GetByProvider(ctx context.Context, provider, sub string) (Account, error) {
	var a Account
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE provider=? AND provider_sub=? LIMIT 1", provider, sub).
		Scan(&a.ID, &a.Email, &a.Phone, &a.PasswordHash, &a.Name, &a.College,
			&a.Provider, &a.ProviderSub, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, backend.ErrNotFound
	}
	return a, err
}

// LinkProvider attaches a federated identity to an existing account.
func (r *AccountRepo) LinkProvider(ctx context.Context, id, provider, sub string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET provider=?, provider_sub=? WHERE id=? AND provider_sub IS NULL", provider, sub, id)
	return err
}

// SavedIDs returns the bookmarked accommodation ids of an account.
func (r *AccountRepo) SavedIDs(ctx context.Context, id string) ([]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT accommodation_id FROM saved_accommodations WHERE user_id=? ORDER BY accommodation_id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Update applies a partial update in one transaction. Saved ids are added
// and removed one row at a time; the rest of the set is never rewritten.
func (r *AccountRepo) Update(ctx context.Context, id string, upd backend.AccountUpdate) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	// Lock the account row so a concurrent delete cannot orphan the inserts.
	var exists string
	if err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backend.ErrNotFound
		}
		return err
	}
	if upd.Name != nil {
		if _, err = tx.ExecContext(ctx, "UPDATE users SET name=? WHERE id=?", *upd.Name, id); err != nil {
			return err
		}
	}
	if upd.College != nil {
		if _, err = tx.ExecContext(ctx, "UPDATE users SET college=? WHERE id=?", *upd.College, id); err != nil {
			return err
		}
	}
	for _, aid := range upd.SavedAdd {
		if _, err = tx.ExecContext(ctx,
			"INSERT IGNORE INTO saved_accommodations (user_id, accommodation_id) VALUES (?,?)", id, aid); err != nil {
			return fmt.Errorf("save %d: %w", aid, err)
		}
	}
	for _, aid := range upd.SavedRemove {
		if _, err = tx.ExecContext(ctx,
			"DELETE FROM saved_accommodations WHERE user_id=? AND accommodation_id=?", id, aid); err != nil {
			return fmt.Errorf("unsave %d: %w", aid, err)
		}
	}
	return nil
}
