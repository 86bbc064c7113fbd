package user

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupUserMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func userRows(id int, name, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}).
		AddRow(id, name, email, "hash", "staff", now, now)
}

func TestCreateAndFindUser(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	ctx := context.Background()

	// Create
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (name, email, password_hash, role)")).
		WithArgs("Alice", "a@example.com", "hash", "staff").
		WillReturnRows(userRows(1, "Alice", "a@example.com"))

	u, err := repo.Create(ctx, "Alice", "a@example.com", "hash", "staff")
	require.NoError(t, err)
	require.Equal(t, 1, u.ID)

	// FindByEmail
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE email = $1")).
		WithArgs("a@example.com").
		WillReturnRows(userRows(1, "Alice", "a@example.com"))

	fu, err := repo.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "Alice", fu.Name)

	// EmailExists true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)")).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.EmailExists(ctx, "a@example.com")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE email = $1")).
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "missing@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = $1")).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	require.ErrorIs(t, err, ErrUserNotFound)
}
