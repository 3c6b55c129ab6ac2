package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"securedocs/internal/domain"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, role, is_verified, verification_token, created_at`

// Create inserts u and fills CreatedAt. A duplicate email yields domain.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
        INSERT INTO users (id, email, password_hash, role, is_verified, verification_token)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.Verified,
		u.VerificationToken,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return wrapErr(err)
	}
	return nil
}

// CreateIfAbsent inserts u unless the email is already registered and reports whether it did.
func (r *UserRepository) CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error) {
	query := `
        INSERT INTO users (id, email, password_hash, role, is_verified)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (email) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.PasswordHash, u.Role, u.Verified)
	if err != nil {
		return false, wrapErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr(err)
	}
	return rows == 1, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		return nil, wrapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		return nil, wrapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, wrapErr(err)
	}
	return users, nil
}

func (r *UserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `UPDATE users SET verification_token = $1 WHERE id = $2 AND is_verified = FALSE`

	result, err := r.db.ExecContext(ctx, query, token, id)
	if err != nil {
		return wrapErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// VerifyByToken marks the holder of token verified and clears the token in one statement,
// so a token can only ever be redeemed once.
func (r *UserRepository) VerifyByToken(ctx context.Context, token string) error {
	query := `
        UPDATE users
        SET is_verified = TRUE, verification_token = NULL
        WHERE verification_token = $1`

	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return wrapErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
