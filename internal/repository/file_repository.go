package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"securedocs/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileSelect = `
        SELECT f.id, f.stored_name, f.original_filename, f.file_type, f.size_bytes,
               f.uploader_id, u.email AS uploader_email, f.uploaded_at
        FROM files f
        JOIN users u ON u.id = f.uploader_id`

// Create inserts file and fills UploadedAt and UploaderEmail from the same statement.
func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        WITH inserted AS (
            INSERT INTO files (id, stored_name, original_filename, file_type, size_bytes, uploader_id)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING uploader_id, uploaded_at
        )
        SELECT i.uploaded_at, u.email
        FROM inserted i
        JOIN users u ON u.id = i.uploader_id`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.ID,
		file.StoredName,
		file.OriginalName,
		file.FileType,
		file.SizeBytes,
		file.UploaderID,
	).Scan(&file.UploadedAt, &file.UploaderEmail)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	var file domain.File
	if err := r.db.GetContext(ctx, &file, fileSelect+` WHERE f.id = $1`, id); err != nil {
		return nil, wrapErr(err)
	}
	return &file, nil
}

func (r *FileRepository) List(ctx context.Context) ([]domain.File, error) {
	files := []domain.File{}
	if err := r.db.SelectContext(ctx, &files, fileSelect+` ORDER BY f.uploaded_at DESC`); err != nil {
		return nil, wrapErr(err)
	}
	return files, nil
}

func (r *FileRepository) ListByUploader(ctx context.Context, uploaderID uuid.UUID) ([]domain.File, error) {
	files := []domain.File{}
	query := fileSelect + ` WHERE f.uploader_id = $1 ORDER BY f.uploaded_at DESC`
	if err := r.db.SelectContext(ctx, &files, query, uploaderID); err != nil {
		return nil, wrapErr(err)
	}
	return files, nil
}
