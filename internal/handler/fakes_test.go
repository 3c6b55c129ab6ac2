package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"securedocs/internal/domain"
)

// memDB backs all three store interfaces with one mutex.
type memDB struct {
	mu     sync.Mutex
	users  map[uuid.UUID]domain.User
	files  map[uuid.UUID]domain.File
	grants map[uuid.UUID]domain.DownloadGrant
}

func newMemDB() *memDB {
	return &memDB{
		users:  make(map[uuid.UUID]domain.User),
		files:  make(map[uuid.UUID]domain.File),
		grants: make(map[uuid.UUID]domain.DownloadGrant),
	}
}

type memUsers struct{ *memDB }
type memFiles struct{ *memDB }
type memGrants struct{ *memDB }

func (s memUsers) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s memUsers) CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error) {
	if err := s.Create(ctx, u); err != nil {
		return false, nil
	}
	return true, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s memUsers) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s memUsers) SetVerificationToken(_ context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.VerificationToken = &token
	s.users[id] = u
	return nil
}

func (s memUsers) VerifyByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			u.Verified = true
			u.VerificationToken = nil
			s.users[id] = u
			return nil
		}
	}
	return domain.ErrNotFound
}

// Create joins the uploader email the way FileRepository.Create does.
func (s memFiles) Create(_ context.Context, f *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.UploadedAt = time.Now()
	if u, ok := s.users[f.UploaderID]; ok {
		f.UploaderEmail = u.Email
	}
	s.files[f.ID] = *f
	return nil
}

func (s memFiles) GetByID(_ context.Context, id uuid.UUID) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (s memFiles) List(_ context.Context) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, f := range s.files {
		out = append(out, f)
	}
	return out, nil
}

func (s memFiles) ListByUploader(_ context.Context, uploaderID uuid.UUID) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, f := range s.files {
		if f.UploaderID == uploaderID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s memGrants) Create(_ context.Context, g *domain.DownloadGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.ID] = *g
	return nil
}

func (s memGrants) GetByToken(_ context.Context, token string) (*domain.DownloadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.Token == token {
			return &g, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s memGrants) Consume(_ context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok || g.UserID != userID || g.Consumed || !g.ExpiresAt.After(now) {
		return false, nil
	}
	g.Consumed = true
	s.grants[id] = g
	return true, nil
}

func (s memGrants) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.GrantWithFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GrantWithFile
	for _, g := range s.grants {
		if g.UserID != userID {
			continue
		}
		f := s.files[g.FileID]
		out = append(out, domain.GrantWithFile{DownloadGrant: g, OriginalName: f.OriginalName, FileType: f.FileType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memGrants) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, g := range s.grants {
		if g.ExpiresAt.Before(cutoff) {
			delete(s.grants, id)
			n++
		}
	}
	return n, nil
}
