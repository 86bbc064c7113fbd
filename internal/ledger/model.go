package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

type PaymentStatus string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"

	PaymentPaid    PaymentStatus = "paid"
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending_confirmation"
)

// Obligation is one billing period's amount owed by a student.
type Obligation struct {
	ID         int             `db:"id" json:"id"`
	StudentID  int             `db:"student_id" json:"student_id"`
	FeeType    *string         `db:"fee_type" json:"fee_type,omitempty"`
	Period     string          `db:"period" json:"period"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Fine       decimal.Decimal `db:"fine" json:"fine"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	PaidAmount decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Status     Status          `db:"status" json:"status"`
	DueDate    time.Time       `db:"due_date" json:"due_date"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// TotalDue is amount + fine - discount. Not clamped at zero.
func (o *Obligation) TotalDue() decimal.Decimal {
	return o.Amount.Add(o.Fine).Sub(o.Discount)
}

// Payment may exist without a generated obligation (obligation_id NULL);
// only payments with status paid count toward an obligation's paid amount.
type Payment struct {
	ID             int             `db:"id" json:"id"`
	ObligationID   *int            `db:"obligation_id" json:"obligation_id,omitempty"`
	StudentID      int             `db:"student_id" json:"student_id"`
	Reference      string          `db:"reference" json:"reference"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Method         string          `db:"method" json:"method"`
	Status         PaymentStatus   `db:"status" json:"status"`
	CurrencyCode   string          `db:"currency_code" json:"currency_code"`
	PayDate        time.Time       `db:"pay_date" json:"pay_date"`
	DueDate        *time.Time      `db:"due_date" json:"due_date,omitempty"`
	Notes          string          `db:"notes" json:"notes"`
	AttachmentPath *string         `db:"attachment_path" json:"attachment_path,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// StudentBalance is the derived aggregate for one student. It is always
// recomputed in full from obligations and successful payments, never
// patched incrementally.
type StudentBalance struct {
	StudentID int             `db:"student_id" json:"student_id"`
	TotalDue  decimal.Decimal `db:"total_due" json:"total_due"`
	TotalPaid decimal.Decimal `db:"total_paid" json:"total_paid"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

type ObligationInput struct {
	StudentID int             `json:"student_id" binding:"required"`
	FeeType   *string         `json:"fee_type,omitempty"`
	Period    string          `json:"period" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Fine      decimal.Decimal `json:"fine"`
	Discount  decimal.Decimal `json:"discount"`
	DueDate   time.Time       `json:"due_date" binding:"required"`
}

type ObligationUpdate struct {
	FeeType  *string         `json:"fee_type,omitempty"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Fine     decimal.Decimal `json:"fine"`
	Discount decimal.Decimal `json:"discount"`
	DueDate  time.Time       `json:"due_date" binding:"required"`
}

type PaymentInput struct {
	ObligationID   *int            `json:"obligation_id,omitempty"`
	StudentID      int             `json:"student_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Method         string          `json:"method" binding:"required"`
	Status         PaymentStatus   `json:"status" binding:"required,oneof=paid unpaid pending_confirmation"`
	CurrencyCode   string          `json:"currency_code" binding:"required,len=3"`
	PayDate        time.Time       `json:"pay_date" binding:"required"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Notes          string          `json:"notes"`
	AttachmentPath *string         `json:"attachment_path,omitempty"`
}

type PaymentUpdate struct {
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	Method  string          `json:"method" binding:"required"`
	Status  PaymentStatus   `json:"status" binding:"required,oneof=paid unpaid pending_confirmation"`
	PayDate time.Time       `json:"pay_date" binding:"required"`
	Notes   string          `json:"notes"`
}

// PaymentResult reports the payment write together with the owning
// obligation's state after the status machine ran. Obligation is nil for
// standalone payments. BecamePaid flags a pending/partial -> paid
// transition, used for receipt notifications.
type PaymentResult struct {
	Payment    *Payment    `json:"payment"`
	Obligation *Obligation `json:"obligation,omitempty"`
	BecamePaid bool        `json:"-"`
}

// Statement is the read model the presentation layer renders for one
// student: balance plus current obligations and payments.
type Statement struct {
	Balance     *StudentBalance `json:"balance"`
	Obligations []Obligation    `json:"obligations"`
	Payments    []Payment       `json:"payments"`
}
