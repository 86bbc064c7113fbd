package currency

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

func setupCurrencyMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func currencyRows(code, symbol string, places int32, active, deflt bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"code", "symbol", "decimal_places", "is_active", "is_default", "created_at", "updated_at"}).
		AddRow(code, symbol, places, active, deflt, time.Now(), time.Now())
}

func TestGetByCode_NotFound(t *testing.T) {
	repo, mock, close := setupCurrencyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM currencies WHERE code = $1")).
		WithArgs("XXX").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "XXX")
	require.ErrorIs(t, err, ErrCurrencyNotFound)
}

func TestSetDefault_ClearsOldDefaultInSameTx(t *testing.T) {
	repo, mock, close := setupCurrencyMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE currencies SET is_default = FALSE, updated_at = NOW() WHERE is_default = TRUE AND code <> $1")).
		WithArgs("MYR").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE currencies SET is_default = TRUE, is_active = TRUE, updated_at = NOW() WHERE code = $1")).
		WithArgs("MYR").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetDefault(context.Background(), "MYR")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefault_UnknownCurrencyRollsBack(t *testing.T) {
	repo, mock, close := setupCurrencyMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE currencies SET is_default = FALSE, updated_at = NOW() WHERE is_default = TRUE AND code <> $1")).
		WithArgs("XXX").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE currencies SET is_default = TRUE, is_active = TRUE, updated_at = NOW() WHERE code = $1")).
		WithArgs("XXX").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetDefault(context.Background(), "XXX")
	require.ErrorIs(t, err, ErrCurrencyNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActive_RefusesDeactivatingDefault(t *testing.T) {
	repo, mock, close := setupCurrencyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM currencies WHERE code = $1")).
		WithArgs("MYR").
		WillReturnRows(currencyRows("MYR", "RM", 2, true, true))

	err := repo.SetActive(context.Background(), "MYR", false)
	require.ErrorIs(t, err, ErrDefaultCurrencyLocked)
}

func TestDelete_RefusesCurrencyInUse(t *testing.T) {
	repo, mock, close := setupCurrencyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM currencies WHERE code = $1")).
		WithArgs("USD").
		WillReturnRows(currencyRows("USD", "$", 2, true, false))

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("USD").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Delete(context.Background(), "USD")
	require.ErrorIs(t, err, ErrCurrencyInUse)
}

func TestDelete_RefusesDefault(t *testing.T) {
	repo, mock, close := setupCurrencyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM currencies WHERE code = $1")).
		WithArgs("MYR").
		WillReturnRows(currencyRows("MYR", "RM", 2, true, true))

	err := repo.Delete(context.Background(), "MYR")
	require.ErrorIs(t, err, ErrDefaultCurrencyLocked)
}
