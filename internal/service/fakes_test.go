package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"securedocs/internal/domain"
	"securedocs/internal/storage"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *memUserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUserStore) CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error) {
	err := s.Create(ctx, u)
	if errors.Is(err, domain.ErrEmailTaken) {
		return false, nil
	}
	return err == nil, err
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *memUserStore) SetVerificationToken(_ context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.VerificationToken = &token
	return nil
}

func (s *memUserStore) VerifyByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			u.Verified = true
			u.VerificationToken = nil
			return nil
		}
	}
	return domain.ErrNotFound
}

type memFileStore struct {
	mu        sync.Mutex
	files     map[uuid.UUID]*domain.File
	createErr error
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[uuid.UUID]*domain.File)}
}

func (s *memFileStore) Create(_ context.Context, f *domain.File) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.files[f.ID] = &cp
	return nil
}

func (s *memFileStore) GetByID(_ context.Context, id uuid.UUID) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memFileStore) List(_ context.Context) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	return out, nil
}

func (s *memFileStore) ListByUploader(_ context.Context, uploaderID uuid.UUID) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, f := range s.files {
		if f.UploaderID == uploaderID {
			out = append(out, *f)
		}
	}
	return out, nil
}

// memGrantStore mirrors the conditional UPDATE used by the SQL repository.
type memGrantStore struct {
	mu     sync.Mutex
	grants map[uuid.UUID]*domain.DownloadGrant
	files  *memFileStore
}

func newMemGrantStore(files *memFileStore) *memGrantStore {
	return &memGrantStore{grants: make(map[uuid.UUID]*domain.DownloadGrant), files: files}
}

func (s *memGrantStore) Create(_ context.Context, g *domain.DownloadGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.grants[g.ID] = &cp
	return nil
}

func (s *memGrantStore) GetByToken(_ context.Context, token string) (*domain.DownloadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.Token == token {
			cp := *g
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memGrantStore) Consume(_ context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok || g.UserID != userID || g.Consumed || !g.ExpiresAt.After(now) {
		return false, nil
	}
	g.Consumed = true
	return true, nil
}

func (s *memGrantStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.GrantWithFile, error) {
	s.mu.Lock()
	var mine []domain.DownloadGrant
	for _, g := range s.grants {
		if g.UserID == userID {
			mine = append(mine, *g)
		}
	}
	s.mu.Unlock()

	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	out := make([]domain.GrantWithFile, 0, len(mine))
	for _, g := range mine {
		f, err := s.files.GetByID(ctx, g.FileID)
		if err != nil {
			continue
		}
		out = append(out, domain.GrantWithFile{DownloadGrant: g, OriginalName: f.OriginalName, FileType: f.FileType})
	}
	return out, nil
}

func (s *memGrantStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
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

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Put(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("short body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStorage) Open(_ context.Context, key string) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return storage.NewObject(io.NopCloser(bytes.NewReader(data)), int64(len(data))), nil
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
