package ledger

import (
	"context"
	"errors"
	"time"

	"clubledger/internal/logger"
	"clubledger/internal/metrics"
)

const (
	reconcileAttempts = 3
	reconcileBackoff  = 50 * time.Millisecond
)

// Notifier queues billing notifications. Satisfied by notify.Service.
type Notifier interface {
	SendPaymentReceipt(ctx context.Context, email, name, period, amount string) error
}

type Service interface {
	CreateObligation(ctx context.Context, in ObligationInput) (*Obligation, error)
	GetObligation(ctx context.Context, id int) (*Obligation, error)
	UpdateObligation(ctx context.Context, id int, in ObligationUpdate) (*Obligation, error)
	DeleteObligation(ctx context.Context, id int) error
	ListObligationsByStudent(ctx context.Context, studentID int) ([]Obligation, error)
	ListObligationsByStatus(ctx context.Context, status Status) ([]Obligation, error)
	FindObligationForPeriod(ctx context.Context, studentID int, period string, feeType *string) (*Obligation, error)

	RecordPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error)
	GetPayment(ctx context.Context, id int) (*Payment, error)
	UpdatePayment(ctx context.Context, id int, in PaymentUpdate) (*PaymentResult, error)
	DeletePayment(ctx context.Context, id int) error
	ListPaymentsForObligation(ctx context.Context, obligationID int) ([]Payment, error)

	GetBalance(ctx context.Context, studentID int) (*StudentBalance, error)
	Reconcile(ctx context.Context, studentID int) (*StudentBalance, error)
	Statement(ctx context.Context, studentID int) (*Statement, error)
}

type service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) Service {
	return &service{
		repo:     repo,
		notifier: notifier,
	}
}

// withRetry re-runs a mutation whose reconciliation lost the per-student
// lock race. Everything else is terminal for the operation.
func withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= reconcileAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrReconciliationConflict) {
			return err
		}
		lastErr = err
		metrics.RecordReconciliationConflict()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconcileBackoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

func (s *service) CreateObligation(ctx context.Context, in ObligationInput) (*Obligation, error) {
	var o *Obligation
	err := withRetry(ctx, func() error {
		var err error
		o, err = s.repo.CreateObligation(ctx, in)
		return err
	})
	if err != nil {
		metrics.RecordReconciliation("obligation_create", "error")
		return nil, err
	}
	metrics.RecordReconciliation("obligation_create", "ok")
	return o, nil
}

func (s *service) GetObligation(ctx context.Context, id int) (*Obligation, error) {
	return s.repo.GetObligation(ctx, id)
}

func (s *service) UpdateObligation(ctx context.Context, id int, in ObligationUpdate) (*Obligation, error) {
	var o *Obligation
	err := withRetry(ctx, func() error {
		var err error
		o, err = s.repo.UpdateObligation(ctx, id, in)
		return err
	})
	if err != nil {
		metrics.RecordReconciliation("obligation_update", "error")
		return nil, err
	}
	metrics.RecordReconciliation("obligation_update", "ok")
	return o, nil
}

func (s *service) DeleteObligation(ctx context.Context, id int) error {
	err := withRetry(ctx, func() error {
		return s.repo.DeleteObligation(ctx, id)
	})
	if err != nil {
		metrics.RecordReconciliation("obligation_delete", "error")
		return err
	}
	metrics.RecordReconciliation("obligation_delete", "ok")
	return nil
}

func (s *service) ListObligationsByStudent(ctx context.Context, studentID int) ([]Obligation, error) {
	return s.repo.ListObligationsByStudent(ctx, studentID)
}

func (s *service) ListObligationsByStatus(ctx context.Context, status Status) ([]Obligation, error) {
	return s.repo.ListObligationsByStatus(ctx, status)
}

func (s *service) FindObligationForPeriod(ctx context.Context, studentID int, period string, feeType *string) (*Obligation, error) {
	return s.repo.FindObligationForPeriod(ctx, studentID, period, feeType)
}

func (s *service) RecordPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	var result *PaymentResult
	err := withRetry(ctx, func() error {
		var err error
		result, err = s.repo.CreatePayment(ctx, in)
		return err
	})
	if err != nil {
		metrics.RecordReconciliation("payment_create", "error")
		return nil, err
	}
	metrics.RecordReconciliation("payment_create", "ok")
	metrics.RecordPayment(in.Method, string(in.Status))

	s.maybeSendReceipt(ctx, result)
	return result, nil
}

func (s *service) GetPayment(ctx context.Context, id int) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

func (s *service) UpdatePayment(ctx context.Context, id int, in PaymentUpdate) (*PaymentResult, error) {
	var result *PaymentResult
	err := withRetry(ctx, func() error {
		var err error
		result, err = s.repo.UpdatePayment(ctx, id, in)
		return err
	})
	if err != nil {
		metrics.RecordReconciliation("payment_update", "error")
		return nil, err
	}
	metrics.RecordReconciliation("payment_update", "ok")

	s.maybeSendReceipt(ctx, result)
	return result, nil
}

func (s *service) DeletePayment(ctx context.Context, id int) error {
	err := withRetry(ctx, func() error {
		return s.repo.DeletePayment(ctx, id)
	})
	if err != nil {
		metrics.RecordReconciliation("payment_delete", "error")
		return err
	}
	metrics.RecordReconciliation("payment_delete", "ok")
	return nil
}

func (s *service) ListPaymentsForObligation(ctx context.Context, obligationID int) ([]Payment, error) {
	return s.repo.ListPaymentsForObligation(ctx, obligationID)
}

func (s *service) GetBalance(ctx context.Context, studentID int) (*StudentBalance, error) {
	return s.repo.GetBalance(ctx, studentID)
}

func (s *service) Reconcile(ctx context.Context, studentID int) (*StudentBalance, error) {
	var b *StudentBalance
	err := withRetry(ctx, func() error {
		var err error
		b, err = s.repo.Reconcile(ctx, studentID)
		return err
	})
	if err != nil {
		metrics.RecordReconciliation("manual", "error")
		return nil, err
	}
	metrics.RecordReconciliation("manual", "ok")
	return b, nil
}

func (s *service) Statement(ctx context.Context, studentID int) (*Statement, error) {
	balance, err := s.repo.GetBalance(ctx, studentID)
	if err != nil {
		return nil, err
	}
	obligations, err := s.repo.ListObligationsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPaymentsForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Balance:     balance,
		Obligations: obligations,
		Payments:    payments,
	}, nil
}

// maybeSendReceipt queues a receipt email when a payment settles its
// obligation. Notification failure never fails the payment.
func (s *service) maybeSendReceipt(ctx context.Context, result *PaymentResult) {
	if s.notifier == nil || !result.BecamePaid || result.Obligation == nil {
		return
	}

	name, email, err := s.repo.GetStudentContact(ctx, result.Obligation.StudentID)
	if err != nil {
		logger.Errorf("receipt lookup failed for student %d: %v", result.Obligation.StudentID, err)
		return
	}

	amount := result.Obligation.TotalDue().Round(2)
	if err := s.notifier.SendPaymentReceipt(ctx, email, name, result.Obligation.Period, amount.StringFixed(2)); err != nil {
		logger.Errorf("failed to queue receipt for student %d: %v", result.Obligation.StudentID, err)
	}
}
