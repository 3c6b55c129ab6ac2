package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"securedocs/internal/domain"
)

type GrantRepository struct {
	db *sqlx.DB
}

func NewGrantRepository(db *sqlx.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

func (r *GrantRepository) Create(ctx context.Context, g *domain.DownloadGrant) error {
	query := `
        INSERT INTO download_grants (id, user_id, file_id, token, created_at, expires_at, consumed)
        VALUES ($1, $2, $3, $4, $5, $6, FALSE)`

	_, err := r.db.ExecContext(ctx, query, g.ID, g.UserID, g.FileID, g.Token, g.CreatedAt, g.ExpiresAt)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (r *GrantRepository) GetByToken(ctx context.Context, token string) (*domain.DownloadGrant, error) {
	var g domain.DownloadGrant
	query := `
        SELECT id, user_id, file_id, token, created_at, expires_at, consumed
        FROM download_grants
        WHERE token = $1`

	if err := r.db.GetContext(ctx, &g, query, token); err != nil {
		return nil, wrapErr(err)
	}
	return &g, nil
}

// Consume flips consumed for an active grant owned by userID. It reports false when another
// request already consumed it or it expired before now; the caller must not serve the file then.
func (r *GrantRepository) Consume(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	query := `
        UPDATE download_grants
        SET consumed = TRUE
        WHERE id = $1 AND user_id = $2 AND consumed = FALSE AND expires_at > $3`

	result, err := r.db.ExecContext(ctx, query, id, userID, now)
	if err != nil {
		return false, wrapErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr(err)
	}
	return rows == 1, nil
}

func (r *GrantRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.GrantWithFile, error) {
	grants := []domain.GrantWithFile{}
	query := `
        SELECT g.id, g.user_id, g.file_id, g.token, g.created_at, g.expires_at, g.consumed,
               f.original_filename, f.file_type
        FROM download_grants g
        JOIN files f ON f.id = g.file_id
        WHERE g.user_id = $1
        ORDER BY g.created_at DESC`

	if err := r.db.SelectContext(ctx, &grants, query, userID); err != nil {
		return nil, wrapErr(err)
	}
	return grants, nil
}

// DeleteExpiredBefore removes grants whose window closed before cutoff.
func (r *GrantRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM download_grants WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr(err)
	}
	return rows, nil
}
