package ledger

import (
	"context"
	"time"
)

type Repository interface {
	CreateObligation(ctx context.Context, in ObligationInput) (*Obligation, error)
	GetObligation(ctx context.Context, id int) (*Obligation, error)
	UpdateObligation(ctx context.Context, id int, in ObligationUpdate) (*Obligation, error)
	DeleteObligation(ctx context.Context, id int) error
	ListObligationsByStudent(ctx context.Context, studentID int) ([]Obligation, error)
	ListObligationsByStatus(ctx context.Context, status Status) ([]Obligation, error)
	ListObligationsDueBetween(ctx context.Context, from, to time.Time) ([]Obligation, error)
	FindObligationForPeriod(ctx context.Context, studentID int, period string, feeType *string) (*Obligation, error)

	CreatePayment(ctx context.Context, in PaymentInput) (*PaymentResult, error)
	GetPayment(ctx context.Context, id int) (*Payment, error)
	UpdatePayment(ctx context.Context, id int, in PaymentUpdate) (*PaymentResult, error)
	DeletePayment(ctx context.Context, id int) error
	ListPaymentsForObligation(ctx context.Context, obligationID int) ([]Payment, error)
	ListPaymentsForStudent(ctx context.Context, studentID int) ([]Payment, error)

	GetBalance(ctx context.Context, studentID int) (*StudentBalance, error)
	Reconcile(ctx context.Context, studentID int) (*StudentBalance, error)
	GetStudentContact(ctx context.Context, studentID int) (name, email string, err error)
}
