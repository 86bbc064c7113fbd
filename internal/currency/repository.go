package currency

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrCurrencyNotFound      = errors.New("currency not found")
	ErrCurrencyInUse         = errors.New("currency is referenced by plans, assignments or payments")
	ErrDefaultCurrencyLocked = errors.New("default currency cannot be deactivated or deleted")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*Currency, error) {
	cur := &Currency{}
	err := r.db.GetContext(ctx, cur, `SELECT * FROM currencies WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCurrencyNotFound
	}
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (r *Repository) GetDefault(ctx context.Context) (*Currency, error) {
	cur := &Currency{}
	err := r.db.GetContext(ctx, cur, `SELECT * FROM currencies WHERE is_default = TRUE`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCurrencyNotFound
	}
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]Currency, error) {
	curs := []Currency{}
	err := r.db.SelectContext(ctx, &curs, `
		SELECT *
		FROM currencies
		WHERE is_active = TRUE
		ORDER BY code
	`)
	return curs, err
}

func (r *Repository) Create(ctx context.Context, code, symbol string, decimalPlaces int32) (*Currency, error) {
	cur := &Currency{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO currencies (code, symbol, decimal_places)
		VALUES ($1, $2, $3)
		RETURNING code, symbol, decimal_places, is_active, is_default, created_at, updated_at
	`, code, symbol, decimalPlaces).StructScan(cur)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// SetDefault makes code the single default currency. Clearing the old
// default and setting the new one happen in one transaction.
func (r *Repository) SetDefault(ctx context.Context, code string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Clear before set: currencies_single_default is checked per statement,
	// so flipping the new row first would collide with the old default.
	_, err = tx.ExecContext(ctx, `
		UPDATE currencies
		SET is_default = FALSE, updated_at = NOW()
		WHERE is_default = TRUE AND code <> $1
	`, code)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE currencies
		SET is_default = TRUE, is_active = TRUE, updated_at = NOW()
		WHERE code = $1
	`, code)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCurrencyNotFound
	}

	return tx.Commit()
}

func (r *Repository) SetActive(ctx context.Context, code string, active bool) error {
	cur, err := r.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if cur.IsDefault && !active {
		return ErrDefaultCurrencyLocked
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE currencies
		SET is_active = $1, updated_at = NOW()
		WHERE code = $2
	`, active, code)
	return err
}

// Delete removes a currency. The default currency and any currency still
// referenced by a plan, assignment or payment are refused.
func (r *Repository) Delete(ctx context.Context, code string) error {
	cur, err := r.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if cur.IsDefault {
		return ErrDefaultCurrencyLocked
	}

	var inUse bool
	err = r.db.GetContext(ctx, &inUse, `
		SELECT EXISTS (SELECT 1 FROM plans WHERE currency_code = $1)
		    OR EXISTS (SELECT 1 FROM fee_plan_assignments WHERE currency_code = $1)
		    OR EXISTS (SELECT 1 FROM payments WHERE currency_code = $1)
	`, code)
	if err != nil {
		return err
	}
	if inUse {
		return ErrCurrencyInUse
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM currencies WHERE code = $1`, code)
	return err
}
