package feeplan

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrPlanNotFound       = errors.New("plan not found")
	ErrAssignmentNotFound = errors.New("fee plan assignment not found")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePlan(ctx context.Context, clubID int, name string, baseAmount decimal.Decimal, currencyCode string) (*Plan, error) {
	p := &Plan{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO plans (club_id, name, base_amount, currency_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id, club_id, name, base_amount, currency_code, is_active, created_at, updated_at
	`, clubID, name, baseAmount, currencyCode).StructScan(p)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) GetPlan(ctx context.Context, id int) (*Plan, error) {
	p := &Plan{}
	err := r.db.GetContext(ctx, p, `SELECT * FROM plans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) ListPlansByClub(ctx context.Context, clubID int) ([]Plan, error) {
	plans := []Plan{}
	err := r.db.SelectContext(ctx, &plans, `
		SELECT *
		FROM plans
		WHERE club_id = $1
		ORDER BY name
	`, clubID)
	return plans, err
}

func (r *repository) SetPlanActive(ctx context.Context, id int, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE plans
		SET is_active = $1, updated_at = NOW()
		WHERE id = $2
	`, active, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (r *repository) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*Assignment, error) {
	discountType := req.DiscountType
	if discountType == "" {
		discountType = DiscountNone
	}

	a := &Assignment{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO fee_plan_assignments
			(student_id, plan_id, custom_amount, currency_code, "interval", interval_count,
			 discount_type, discount_value, effective_from, next_period_start, next_due_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $9, $10)
		RETURNING id, student_id, plan_id, custom_amount, currency_code, "interval", interval_count,
		          discount_type, discount_value, effective_from, is_active,
		          next_period_start, next_due_date, notes, created_at, updated_at
	`, req.StudentID, req.PlanID, req.CustomAmount, req.CurrencyCode, req.Interval,
		req.IntervalCount, discountType, req.DiscountValue, req.EffectiveFrom, req.Notes).StructScan(a)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repository) GetAssignment(ctx context.Context, id int) (*Assignment, error) {
	a := &Assignment{}
	err := r.db.GetContext(ctx, a, `SELECT * FROM fee_plan_assignments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ActiveAssignmentForStudent returns the newest active assignment. The
// schema does not force a single active assignment per student, so ties
// resolve to the most recent effective_from.
func (r *repository) ActiveAssignmentForStudent(ctx context.Context, studentID int) (*Assignment, error) {
	a := &Assignment{}
	err := r.db.GetContext(ctx, a, `
		SELECT *
		FROM fee_plan_assignments
		WHERE student_id = $1 AND is_active = TRUE
		ORDER BY effective_from DESC, id DESC
		LIMIT 1
	`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repository) ListDueAssignments(ctx context.Context, asOf time.Time) ([]Assignment, error) {
	assignments := []Assignment{}
	err := r.db.SelectContext(ctx, &assignments, `
		SELECT *
		FROM fee_plan_assignments
		WHERE is_active = TRUE AND next_period_start <= $1
		ORDER BY next_period_start, id
	`, asOf)
	return assignments, err
}

func (r *repository) AdvanceSchedule(ctx context.Context, assignmentID int, nextStart, nextDue time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fee_plan_assignments
		SET next_period_start = $1, next_due_date = $2, updated_at = NOW()
		WHERE id = $3
	`, nextStart, nextDue, assignmentID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (r *repository) SetAssignmentActive(ctx context.Context, id int, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fee_plan_assignments
		SET is_active = $1, updated_at = NOW()
		WHERE id = $2
	`, active, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}
