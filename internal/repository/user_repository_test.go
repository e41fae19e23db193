package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bnka/portal/internal/models"
)

var userColumns = []string{
	"id", "username", "password_hash", "full_name", "email", "phone", "is_admin", "created_at", "updated_at",
}

func newUserRepoWithMock(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

func strPtr(s string) *string { return &s }

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()
	email := strPtr("a@b.no")

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@b.no", "hash.salt", "Ada", email, (*string)(nil), false).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	got, err := repo.Create(context.Background(), models.User{
		Username:     "a@b.no",
		PasswordHash: "hash.salt",
		FullName:     "Ada",
		Email:        email,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "a@b.no", got.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateUniqueViolation(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@b.no", "hash.salt", "", (*string)(nil), (*string)(nil), false).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), models.User{Username: "a@b.no", PasswordHash: "hash.salt"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateOtherError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@b.no", "hash.salt", "", (*string)(nil), (*string)(nil), false).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Create(context.Background(), models.User{Username: "a@b.no", PasswordHash: "hash.salt"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUsernameTaken)
}

func TestUserRepository_FindByUsername(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("a@b.no").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(3), "a@b.no", "hash.salt", "Ada", strPtr("a@b.no"), strPtr("+4700000000"), true, now, now))

	user, err := repo.FindByUsername(context.Background(), "a@b.no")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, "hash.salt", user.PasswordHash)
	assert.True(t, user.IsAdmin)
	require.NotNil(t, user.Phone)
	assert.Equal(t, "+4700000000", *user.Phone)
}

func TestUserRepository_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.GetByID(context.Background(), 99)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM users\s+ORDER BY id`).
		WithArgs(50, 0).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(1), "a", "h.s", "", (*string)(nil), (*string)(nil), false, now, now).
			AddRow(int64(2), "b", "h.s", "", (*string)(nil), (*string)(nil), true, now, now))

	users, err := repo.List(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b", users[1].Username)
}

func TestUserRepository_Delete(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM users`).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM users`).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	require.ErrorIs(t, repo.Delete(context.Background(), 1), ErrUserNotFound)
}
