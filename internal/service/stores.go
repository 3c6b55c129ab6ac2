package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"securedocs/internal/domain"
)

// Implemented by the repository package.

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	VerifyByToken(ctx context.Context, token string) error
}

type FileStore interface {
	// Create fills UploadedAt and UploaderEmail on file.
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error)
	List(ctx context.Context) ([]domain.File, error)
	ListByUploader(ctx context.Context, uploaderID uuid.UUID) ([]domain.File, error)
}

type GrantStore interface {
	Create(ctx context.Context, g *domain.DownloadGrant) error
	GetByToken(ctx context.Context, token string) (*domain.DownloadGrant, error)
	Consume(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.GrantWithFile, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
