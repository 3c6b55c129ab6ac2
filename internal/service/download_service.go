package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"securedocs/internal/domain"
	"securedocs/internal/logging"
	"securedocs/internal/metrics"
	"securedocs/internal/storage"
)

type DownloadConfig struct {
	GrantTTL time.Duration
	// HistoryRetention is how long expired grants stay visible in history. Zero keeps them forever.
	HistoryRetention time.Duration
	PublicBaseURL    string
}

// DownloadService owns the download grant lifecycle: grants are minted per (user, file),
// live for GrantTTL and can be redeemed exactly once by the user they were minted for.
type DownloadService struct {
	grants  GrantStore
	files   *FileService
	cfg     DownloadConfig
	now     func() time.Time
	metrics *metrics.Metrics
	log     logging.Logger
}

func NewDownloadService(
	grants GrantStore,
	files *FileService,
	cfg DownloadConfig,
	m *metrics.Metrics,
	log logging.Logger,
) *DownloadService {
	return &DownloadService{
		grants:  grants,
		files:   files,
		cfg:     cfg,
		now:     time.Now,
		metrics: m,
		log:     log.With("component", "downloads"),
	}
}

// WithClock replaces the time source. Tests only.
func (s *DownloadService) WithClock(now func() time.Time) *DownloadService {
	s.now = now
	return s
}

func (s *DownloadService) linkFor(token string) string {
	return s.cfg.PublicBaseURL + "/api/files/secure-download/" + token
}

func (s *DownloadService) CreateGrant(ctx context.Context, requester domain.Identity, fileID uuid.UUID) (*domain.DownloadLink, error) {
	if err := Authorize(requester.Role, OperationRequestDownload); err != nil {
		return nil, err
	}

	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	token, err := generateToken(downloadTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now().UTC()
	grant := &domain.DownloadGrant{
		ID:        uuid.New(),
		UserID:    requester.UserID,
		FileID:    file.ID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.GrantTTL),
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to create grant: %w", err)
	}

	s.metrics.GrantsIssued.Inc()
	s.log.Info(ctx, "download grant created",
		"grant_id", grant.ID, "user_id", requester.UserID, "file_id", file.ID, "expires_at", grant.ExpiresAt)

	return &domain.DownloadLink{
		Token:     token,
		URL:       s.linkFor(token),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Redeem checks the grant behind token and, if presenter may use it, consumes it and
// returns the file with its open content. Only one concurrent caller can win the consume.
func (s *DownloadService) Redeem(ctx context.Context, token string, presenter domain.Identity) (*domain.File, storage.Object, error) {
	if err := Authorize(presenter.Role, OperationRedeemDownload); err != nil {
		return nil, nil, err
	}

	file, obj, result, err := s.redeem(ctx, token, presenter)
	s.metrics.GrantRedemptions.WithLabelValues(result).Inc()
	if err != nil {
		s.log.Warn(ctx, "download redemption refused", "user_id", presenter.UserID, "result", result, "error", err)
		return nil, nil, err
	}
	s.log.Info(ctx, "download grant redeemed", "user_id", presenter.UserID, "file_id", file.ID)
	return file, obj, nil
}

func (s *DownloadService) redeem(ctx context.Context, token string, presenter domain.Identity) (*domain.File, storage.Object, string, error) {
	if token == "" {
		return nil, nil, metrics.ResultNotFound, domain.ErrGrantNotFound
	}

	grant, err := s.grants.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, metrics.ResultNotFound, domain.ErrGrantNotFound
		}
		return nil, nil, metrics.ResultError, fmt.Errorf("load grant: %w", err)
	}
	// Someone else's token looks exactly like an unknown one.
	if grant.UserID != presenter.UserID {
		return nil, nil, metrics.ResultNotFound, domain.ErrGrantNotFound
	}

	now := s.now()
	if grant.Expired(now) {
		return nil, nil, metrics.ResultExpired, domain.ErrGrantExpired
	}
	if grant.Consumed {
		return nil, nil, metrics.ResultConsumed, domain.ErrGrantConsumed
	}

	file, err := s.files.Get(ctx, grant.FileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, metrics.ResultMissing, domain.ErrStoredFileMissing
		}
		return nil, nil, metrics.ResultError, err
	}
	obj, err := s.files.Open(ctx, file)
	if err != nil {
		if errors.Is(err, domain.ErrStoredFileMissing) {
			return nil, nil, metrics.ResultMissing, err
		}
		return nil, nil, metrics.ResultError, err
	}

	won, err := s.grants.Consume(ctx, grant.ID, presenter.UserID, now)
	if err != nil {
		obj.Close()
		return nil, nil, metrics.ResultError, fmt.Errorf("consume grant: %w", err)
	}
	if !won {
		obj.Close()
		if grant.Expired(s.now()) {
			return nil, nil, metrics.ResultExpired, domain.ErrGrantExpired
		}
		return nil, nil, metrics.ResultConsumed, domain.ErrGrantConsumed
	}

	return file, obj, metrics.ResultOK, nil
}

// History lists the caller's grants, newest first, with a status derived from the clock.
func (s *DownloadService) History(ctx context.Context, caller domain.Identity) ([]domain.HistoryItem, error) {
	if err := Authorize(caller.Role, OperationViewHistory); err != nil {
		return nil, err
	}

	grants, err := s.grants.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	now := s.now()
	items := make([]domain.HistoryItem, 0, len(grants))
	for i := range grants {
		g := &grants[i]
		items = append(items, domain.HistoryItem{
			ID:           g.ID,
			Filename:     g.OriginalName,
			FileType:     g.FileType,
			DownloadedAt: g.CreatedAt,
			DownloadURL:  s.linkFor(g.Token),
			Status:       g.Status(now),
		})
	}
	return items, nil
}

// PurgeStale deletes grants that expired more than HistoryRetention ago.
func (s *DownloadService) PurgeStale(ctx context.Context) (int64, error) {
	if s.cfg.HistoryRetention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.cfg.HistoryRetention)
	n, err := s.grants.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge grants: %w", err)
	}
	if n > 0 {
		s.log.Info(ctx, "purged stale download grants", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
