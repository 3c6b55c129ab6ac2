package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securedocs/internal/domain"
)

var userCols = []string{"id", "email", "password_hash", "role", "is_verified", "verification_token", "created_at"}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	token := "tok"
	u := &domain.User{ID: uuid.New(), Email: "a@b.c", PasswordHash: "h", Role: domain.RoleClient, VerificationToken: &token}
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*role,\s*is_verified,\s*verification_token\).*RETURNING\s+created_at\s*$`).
		WithArgs(u.ID, "a@b.c", "h", domain.RoleClient, false, &token).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, created, u.CreatedAt)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &domain.User{ID: uuid.New(), Email: "a@b.c", Role: domain.RoleClient})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &domain.User{ID: uuid.New()})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestUserRepository_CreateIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	u := &domain.User{ID: uuid.New(), Email: "ops@corp", PasswordHash: "h", Role: domain.RoleOps, Verified: true}

	q := `(?s)INSERT\s+INTO\s+users.*ON\s+CONFLICT\s+\(email\)\s+DO\s+NOTHING`
	mock.ExpectExec(q).WithArgs(u.ID, u.Email, "h", domain.RoleOps, true).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(u.ID, u.Email, "h", domain.RoleOps, true).WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsent(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id.String(), "a@b.c", "h", "client", false, "tok", now))

	u, err := repo.GetByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, domain.RoleClient, u.Role)
	require.NotNil(t, u.VerificationToken)
	assert.Equal(t, "tok", *u.VerificationToken)
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).WithArgs("ghost@b.c").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@b.c")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id.String(), "o@b.c", "h", "ops", true, nil, time.Now()))

	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOps, u.Role)
	assert.True(t, u.Verified)
	assert.Nil(t, u.VerificationToken)
}

func TestUserRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM\s+users\s+ORDER\s+BY\s+created_at\s+DESC`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(uuid.NewString(), "b@b.c", "h", "client", true, nil, time.Now()).
			AddRow(uuid.NewString(), "a@b.c", "h", "ops", true, nil, time.Now()))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b@b.c", users[0].Email)
}

func TestUserRepository_VerifyByToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	q := `(?s)UPDATE\s+users\s+SET\s+is_verified\s*=\s*TRUE,\s*verification_token\s*=\s*NULL\s+WHERE\s+verification_token\s*=\s*\$1`
	mock.ExpectExec(q).WithArgs("good").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("good").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.VerifyByToken(context.Background(), "good"))
	assert.ErrorIs(t, repo.VerifyByToken(context.Background(), "good"), domain.ErrNotFound)
}

func TestUserRepository_SetVerificationToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+verification_token\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2\s+AND\s+is_verified\s*=\s*FALSE`).
		WithArgs("t2", id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetVerificationToken(context.Background(), id, "t2"), domain.ErrNotFound)
}
