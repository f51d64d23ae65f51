package users

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easyhotel/easyhotel/internal/platform/db"
)

//go:embed schema.sql
var schemaSQL string

const userColumns = `id::text, name, email, password_hash, role, phone, address, is_active, created_at, updated_at`

const pgUniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the users table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("users: migrate: %w", err)
		}
		return nil
	})
}

// Create inserts u. A taken email yields ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (id, name, email, password_hash, role, phone, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Phone, u.Address, u.IsActive, u.CreatedAt, u.UpdatedAt)
	created, err := scanUser(row)
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return created, nil
}

// FindByID returns the active user with id.
func (r *Repository) FindByID(ctx context.Context, id string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = $1 AND is_active`, id)
	return readOne(row)
}

// FindByEmail returns the active user with email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active`, email)
	return readOne(row)
}

// EmailTaken reports whether any user other than excludeID, active or not, owns email.
func (r *Repository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id::text <> $2)`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("users: email lookup: %w", err)
	}
	return taken, nil
}

// Update overwrites the mutable fields of an active user.
func (r *Repository) Update(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users
SET name = $2, email = $3, password_hash = $4, role = $5, phone = $6, address = $7, is_active = $8, updated_at = $9
WHERE id::text = $1 AND is_active
RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Phone, u.Address, u.IsActive, u.UpdatedAt)
	updated, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return updated, nil
}

// Deactivate soft-deletes a user. It reports false when no user has id.
func (r *Repository) Deactivate(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id::text = $1`, id)
	if err != nil {
		return false, fmt.Errorf("users: deactivate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListActive returns active users, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func readOne(row pgx.Row) (User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: read: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Phone, &u.Address, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = authRole(role)
	return u, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrEmailTaken
	}
	return fmt.Errorf("users: write: %w", err)
}
