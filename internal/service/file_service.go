package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"securedocs/internal/domain"
	"securedocs/internal/logging"
	"securedocs/internal/metrics"
	"securedocs/internal/storage"
)

type FileConfig struct {
	MaxSizeBytes      int64
	AllowedExtensions []string
}

// FileService is the catalog of uploaded documents and the bytes behind them.
type FileService struct {
	files   FileStore
	storage storage.Storage
	cfg     FileConfig
	allowed map[string]struct{}
	metrics *metrics.Metrics
	log     logging.Logger
}

func NewFileService(
	files FileStore,
	store storage.Storage,
	cfg FileConfig,
	m *metrics.Metrics,
	log logging.Logger,
) *FileService {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &FileService{
		files:   files,
		storage: store,
		cfg:     cfg,
		allowed: allowed,
		metrics: m,
		log:     log.With("component", "files"),
	}
}

// Register validates an upload, stores its bytes under a fresh opaque name and then records
// the metadata. If the metadata insert fails the stored bytes are removed again.
func (s *FileService) Register(
	ctx context.Context,
	uploader domain.Identity,
	originalName string,
	content io.Reader,
	size int64,
) (*domain.File, error) {
	if err := Authorize(uploader.Role, OperationUpload); err != nil {
		return nil, err
	}

	name := baseName(originalName)
	ext := domain.Extension(name)
	if _, ok := s.allowed[ext]; !ok || name == ext {
		return nil, domain.Detailed(domain.ErrUnsupportedType,
			"File type not allowed. Allowed types: "+strings.Join(s.cfg.AllowedExtensions, ", "))
	}
	if size > s.cfg.MaxSizeBytes {
		return nil, s.tooLarge()
	}
	if size < 0 {
		return nil, domain.Detailed(domain.ErrInvalidInput, "File size is unknown")
	}

	file := &domain.File{
		ID:           uuid.New(),
		StoredName:   uuid.NewString() + ext,
		OriginalName: name,
		FileType:     strings.TrimPrefix(ext, "."),
		SizeBytes:    size,
		UploaderID:   uploader.UserID,
	}

	// Never read past the declared size; a short body fails in the backend.
	body := io.LimitReader(content, size)
	if err := s.storage.Put(ctx, file.StoredName, body, size); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	if err := s.files.Create(ctx, file); err != nil {
		if delErr := s.storage.Delete(ctx, file.StoredName); delErr != nil {
			s.log.Error(ctx, "failed to remove stored file after metadata error",
				"stored_name", file.StoredName, "error", delErr)
		}
		return nil, fmt.Errorf("save file metadata: %w", err)
	}

	s.metrics.Uploads.Inc()
	s.log.Info(ctx, "file registered",
		"file_id", file.ID, "uploader_id", uploader.UserID, "type", file.FileType, "size", size)
	return file, nil
}

func (s *FileService) tooLarge() error {
	return domain.Detailed(domain.ErrTooLarge,
		fmt.Sprintf("File too large. Maximum size: %s", humanSize(s.cfg.MaxSizeBytes)))
}

// MaxSizeBytes is the upload ceiling. The HTTP layer uses it to cap request bodies.
func (s *FileService) MaxSizeBytes() int64 {
	return s.cfg.MaxSizeBytes
}

// TooLargeError is what Register returns for oversized uploads.
func (s *FileService) TooLargeError() error {
	return s.tooLarge()
}

func (s *FileService) Get(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Detailed(domain.ErrNotFound, "File not found")
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

func (s *FileService) ListAll(ctx context.Context, caller domain.Identity) ([]domain.File, error) {
	if err := Authorize(caller.Role, OperationListFiles); err != nil {
		return nil, err
	}
	files, err := s.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func (s *FileService) ListByUploader(ctx context.Context, caller domain.Identity) ([]domain.File, error) {
	if err := Authorize(caller.Role, OperationListUploaded); err != nil {
		return nil, err
	}
	files, err := s.files.ListByUploader(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list uploaded files: %w", err)
	}
	return files, nil
}

// Open returns the stored bytes of file, or domain.ErrStoredFileMissing if they are gone.
func (s *FileService) Open(ctx context.Context, file *domain.File) (storage.Object, error) {
	obj, err := s.storage.Open(ctx, file.StoredName)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			s.log.Error(ctx, "stored bytes missing for registered file",
				"file_id", file.ID, "stored_name", file.StoredName)
			return nil, domain.ErrStoredFileMissing
		}
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return obj, nil
}

// baseName drops any client supplied directory part, including Windows separators.
func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
