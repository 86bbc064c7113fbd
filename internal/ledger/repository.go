package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrObligationNotFound     = errors.New("obligation not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrStudentNotFound        = errors.New("student not found")
	ErrReconciliationConflict = errors.New("student ledger is locked by a concurrent mutation")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// mapConflict translates lock/serialization failures into
// ErrReconciliationConflict so callers can retry.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "40001", "40P01": // lock_not_available, serialization_failure, deadlock_detected
			return ErrReconciliationConflict
		}
	}
	return err
}

// lockLedger takes the per-student serialization boundary: it makes sure
// the balance row exists, then locks it for the rest of the transaction.
// Every obligation/payment mutation for a student goes through this lock,
// so two near-simultaneous mutations serialize instead of interleaving
// their read-recompute-write sequences.
func lockLedger(ctx context.Context, tx *sqlx.Tx, studentID int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO student_balances (student_id, total_due, total_paid, balance)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (student_id) DO NOTHING
	`, studentID)
	if err != nil {
		return mapConflict(err)
	}

	var locked int
	err = tx.GetContext(ctx, &locked, `
		SELECT student_id FROM student_balances WHERE student_id = $1 FOR UPDATE NOWAIT
	`, studentID)
	if err != nil {
		return mapConflict(err)
	}
	return nil
}

// reconcileTx recomputes the student's balance by full aggregation over
// current obligations and successful payments, then writes the single
// balance row. It never applies incremental deltas.
func reconcileTx(ctx context.Context, tx *sqlx.Tx, studentID int) (*StudentBalance, error) {
	var totalDue decimal.Decimal
	err := tx.GetContext(ctx, &totalDue, `
		SELECT COALESCE(SUM(amount + fine - discount), 0)
		FROM obligations
		WHERE student_id = $1
	`, studentID)
	if err != nil {
		return nil, mapConflict(err)
	}

	var totalPaid decimal.Decimal
	err = tx.GetContext(ctx, &totalPaid, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN obligations o ON o.id = p.obligation_id
		WHERE o.student_id = $1 AND p.status = 'paid'
	`, studentID)
	if err != nil {
		return nil, mapConflict(err)
	}

	b := &StudentBalance{}
	err = tx.QueryRowxContext(ctx, `
		UPDATE student_balances
		SET total_due = $2, total_paid = $3, balance = $4, updated_at = NOW()
		WHERE student_id = $1
		RETURNING student_id, total_due, total_paid, balance, updated_at
	`, studentID, totalDue, totalPaid, totalDue.Sub(totalPaid)).StructScan(b)
	if err != nil {
		return nil, mapConflict(err)
	}
	return b, nil
}

func getObligationTx(ctx context.Context, tx *sqlx.Tx, id int) (*Obligation, error) {
	o := &Obligation{}
	err := tx.GetContext(ctx, o, `SELECT * FROM obligations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrObligationNotFound
	}
	if err != nil {
		return nil, mapConflict(err)
	}
	return o, nil
}

func saveObligationTx(ctx context.Context, tx *sqlx.Tx, o *Obligation) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE obligations
		SET paid_amount = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, o.PaidAmount, o.Status, o.ID)
	return mapConflict(err)
}

func (r *repository) CreateObligation(ctx context.Context, in ObligationInput) (*Obligation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockLedger(ctx, tx, in.StudentID); err != nil {
		return nil, err
	}

	o := &Obligation{}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO obligations (student_id, fee_type, period, amount, fine, discount, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, student_id, fee_type, period, amount, fine, discount, paid_amount, status, due_date, created_at, updated_at
	`, in.StudentID, in.FeeType, in.Period, in.Amount, in.Fine, in.Discount, in.DueDate).StructScan(o)
	if err != nil {
		return nil, mapConflict(err)
	}

	if _, err := reconcileTx(ctx, tx, in.StudentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}
	return o, nil
}

func (r *repository) UpdateObligation(ctx context.Context, id int, in ObligationUpdate) (*Obligation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := getObligationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := lockLedger(ctx, tx, existing.StudentID); err != nil {
		return nil, err
	}

	// The first read only located the student. Under READ COMMITTED a
	// concurrent payment may have landed before we held the lock, so
	// paid_amount comes from a fresh read taken under it.
	existing, err = getObligationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	// Status is re-derived from the edited totals against what has
	// already been paid.
	newTotalDue := in.Amount.Add(in.Fine).Sub(in.Discount)
	status := DeriveStatus(newTotalDue, existing.PaidAmount)

	o := &Obligation{}
	err = tx.QueryRowxContext(ctx, `
		UPDATE obligations
		SET fee_type = $1, amount = $2, fine = $3, discount = $4, due_date = $5, status = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING id, student_id, fee_type, period, amount, fine, discount, paid_amount, status, due_date, created_at, updated_at
	`, in.FeeType, in.Amount, in.Fine, in.Discount, in.DueDate, status, id).StructScan(o)
	if err != nil {
		return nil, mapConflict(err)
	}

	if _, err := reconcileTx(ctx, tx, o.StudentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}
	return o, nil
}

// DeleteObligation is the administrative delete. Payments that pointed at
// the obligation keep their rows (obligation_id goes NULL via the schema)
// and stop counting toward the balance, which the reconciliation picks up.
func (r *repository) DeleteObligation(ctx context.Context, id int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := getObligationTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := lockLedger(ctx, tx, existing.StudentID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM obligations WHERE id = $1`, id); err != nil {
		return mapConflict(err)
	}

	if _, err := reconcileTx(ctx, tx, existing.StudentID); err != nil {
		return err
	}

	return mapConflict(tx.Commit())
}

// FindObligationForPeriod locates the obligation a schedule run produced
// for a student's period, if any. Period generation uses it to stay
// idempotent across partial failures.
func (r *repository) FindObligationForPeriod(ctx context.Context, studentID int, period string, feeType *string) (*Obligation, error) {
	o := &Obligation{}
	err := r.db.GetContext(ctx, o, `
		SELECT * FROM obligations
		WHERE student_id = $1 AND period = $2 AND fee_type IS NOT DISTINCT FROM $3
		ORDER BY id
		LIMIT 1
	`, studentID, period, feeType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrObligationNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) GetObligation(ctx context.Context, id int) (*Obligation, error) {
	o := &Obligation{}
	err := r.db.GetContext(ctx, o, `SELECT * FROM obligations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrObligationNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) ListObligationsByStudent(ctx context.Context, studentID int) ([]Obligation, error) {
	obs := []Obligation{}
	err := r.db.SelectContext(ctx, &obs, `
		SELECT *
		FROM obligations
		WHERE student_id = $1
		ORDER BY due_date DESC, id DESC
	`, studentID)
	return obs, err
}

func (r *repository) ListObligationsByStatus(ctx context.Context, status Status) ([]Obligation, error) {
	obs := []Obligation{}
	err := r.db.SelectContext(ctx, &obs, `
		SELECT *
		FROM obligations
		WHERE status = $1
		ORDER BY due_date, id
	`, status)
	return obs, err
}

func (r *repository) ListObligationsDueBetween(ctx context.Context, from, to time.Time) ([]Obligation, error) {
	obs := []Obligation{}
	err := r.db.SelectContext(ctx, &obs, `
		SELECT *
		FROM obligations
		WHERE due_date >= $1 AND due_date <= $2
		ORDER BY due_date, id
	`, from, to)
	return obs, err
}

func (r *repository) CreatePayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockLedger(ctx, tx, in.StudentID); err != nil {
		return nil, err
	}

	p := &Payment{}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO payments (obligation_id, student_id, reference, amount, method, status, currency_code, pay_date, due_date, notes, attachment_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, obligation_id, student_id, reference, amount, method, status, currency_code, pay_date, due_date, notes, attachment_path, created_at, updated_at
	`, in.ObligationID, in.StudentID, uuid.NewString(), in.Amount, in.Method, in.Status,
		in.CurrencyCode, in.PayDate, in.DueDate, in.Notes, in.AttachmentPath).StructScan(p)
	if err != nil {
		return nil, mapConflict(err)
	}

	result := &PaymentResult{Payment: p}

	if p.ObligationID != nil {
		o, err := getObligationTx(ctx, tx, *p.ObligationID)
		if err != nil {
			return nil, err
		}
		wasPaid := o.Status == StatusPaid
		ApplyPayment(o, p)
		if err := saveObligationTx(ctx, tx, o); err != nil {
			return nil, err
		}
		result.Obligation = o
		result.BecamePaid = !wasPaid && o.Status == StatusPaid
	}

	if _, err := reconcileTx(ctx, tx, in.StudentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}
	return result, nil
}

func getPaymentTx(ctx context.Context, tx *sqlx.Tx, id int) (*Payment, error) {
	p := &Payment{}
	err := tx.GetContext(ctx, p, `SELECT * FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, mapConflict(err)
	}
	return p, nil
}

func (r *repository) UpdatePayment(ctx context.Context, id int, in PaymentUpdate) (*PaymentResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	old, err := getPaymentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := lockLedger(ctx, tx, old.StudentID); err != nil {
		return nil, err
	}

	// Re-read under the lock; the amount being backed out below must be
	// the committed one, not a pre-lock snapshot.
	old, err = getPaymentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	p := &Payment{}
	err = tx.QueryRowxContext(ctx, `
		UPDATE payments
		SET amount = $1, method = $2, status = $3, pay_date = $4, notes = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING id, obligation_id, student_id, reference, amount, method, status, currency_code, pay_date, due_date, notes, attachment_path, created_at, updated_at
	`, in.Amount, in.Method, in.Status, in.PayDate, in.Notes, id).StructScan(p)
	if err != nil {
		return nil, mapConflict(err)
	}

	result := &PaymentResult{Payment: p}

	if p.ObligationID != nil {
		o, err := getObligationTx(ctx, tx, *p.ObligationID)
		if err != nil {
			return nil, err
		}
		wasPaid := o.Status == StatusPaid
		// Back out the previous payment state, then apply the new one.
		RemovePayment(o, old)
		ApplyPayment(o, p)
		if err := saveObligationTx(ctx, tx, o); err != nil {
			return nil, err
		}
		result.Obligation = o
		result.BecamePaid = !wasPaid && o.Status == StatusPaid
	}

	if _, err := reconcileTx(ctx, tx, p.StudentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}
	return result, nil
}

func (r *repository) DeletePayment(ctx context.Context, id int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	old, err := getPaymentTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := lockLedger(ctx, tx, old.StudentID); err != nil {
		return err
	}

	// Fresh read under the lock so the credit removed from the obligation
	// matches what was actually committed.
	old, err = getPaymentTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if old.ObligationID != nil {
		o, err := getObligationTx(ctx, tx, *old.ObligationID)
		if err != nil {
			return err
		}
		RemovePayment(o, old)
		if err := saveObligationTx(ctx, tx, o); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
		return mapConflict(err)
	}

	if _, err := reconcileTx(ctx, tx, old.StudentID); err != nil {
		return err
	}

	return mapConflict(tx.Commit())
}

func (r *repository) GetPayment(ctx context.Context, id int) (*Payment, error) {
	p := &Payment{}
	err := r.db.GetContext(ctx, p, `SELECT * FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) ListPaymentsForObligation(ctx context.Context, obligationID int) ([]Payment, error) {
	payments := []Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT *
		FROM payments
		WHERE obligation_id = $1
		ORDER BY pay_date DESC, id DESC
	`, obligationID)
	return payments, err
}

func (r *repository) ListPaymentsForStudent(ctx context.Context, studentID int) ([]Payment, error) {
	payments := []Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT *
		FROM payments
		WHERE student_id = $1
		ORDER BY pay_date DESC, id DESC
	`, studentID)
	return payments, err
}

func (r *repository) GetBalance(ctx context.Context, studentID int) (*StudentBalance, error) {
	b := &StudentBalance{}
	err := r.db.GetContext(ctx, b, `SELECT * FROM student_balances WHERE student_id = $1`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		// No mutation has touched this student yet; the ledger is empty.
		return &StudentBalance{StudentID: studentID, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Reconcile forces a full recomputation outside of any triggering
// mutation, for admin re-sync.
func (r *repository) Reconcile(ctx context.Context, studentID int) (*StudentBalance, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockLedger(ctx, tx, studentID); err != nil {
		return nil, err
	}

	b, err := reconcileTx(ctx, tx, studentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}
	return b, nil
}

func (r *repository) GetStudentContact(ctx context.Context, studentID int) (string, string, error) {
	var row struct {
		Name  string `db:"name"`
		Email string `db:"email"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT name, email FROM students WHERE id = $1`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrStudentNotFound
	}
	if err != nil {
		return "", "", err
	}
	return row.Name, row.Email, nil
}
