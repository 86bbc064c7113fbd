package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock repositories
type MockLedgerRepo struct{ mock.Mock }
type MockNotifier struct{ mock.Mock }

func (m *MockLedgerRepo) CreateObligation(ctx context.Context, in ObligationInput) (*Obligation, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Obligation), args.Error(1)
}

func (m *MockLedgerRepo) GetObligation(ctx context.Context, id int) (*Obligation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Obligation), args.Error(1)
}

func (m *MockLedgerRepo) UpdateObligation(ctx context.Context, id int, in ObligationUpdate) (*Obligation, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Obligation), args.Error(1)
}

func (m *MockLedgerRepo) DeleteObligation(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLedgerRepo) ListObligationsByStudent(ctx context.Context, studentID int) ([]Obligation, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Obligation), args.Error(1)
}

func (m *MockLedgerRepo) ListObligationsByStatus(ctx context.Context, status Status) ([]Obligation, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Obligation), args.Error(1)
}

func (m *MockLedgerRepo) ListObligationsDueBetween(ctx context.Context, from, to time.Time) ([]Obligation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Obligation), args.Error(1)
}

func (m *MockLedgerRepo) FindObligationForPeriod(ctx context.Context, studentID int, period string, feeType *string) (*Obligation, error) {
	args := m.Called(ctx, studentID, period, feeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Obligation), args.Error(1)
}

func (m *MockLedgerRepo) CreatePayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentResult), args.Error(1)
}

func (m *MockLedgerRepo) GetPayment(ctx context.Context, id int) (*Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockLedgerRepo) UpdatePayment(ctx context.Context, id int, in PaymentUpdate) (*PaymentResult, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentResult), args.Error(1)
}

func (m *MockLedgerRepo) DeletePayment(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLedgerRepo) ListPaymentsForObligation(ctx context.Context, obligationID int) ([]Payment, error) {
	args := m.Called(ctx, obligationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

func (m *MockLedgerRepo) ListPaymentsForStudent(ctx context.Context, studentID int) ([]Payment, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

func (m *MockLedgerRepo) GetBalance(ctx context.Context, studentID int) (*StudentBalance, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StudentBalance), args.Error(1)
}

func (m *MockLedgerRepo) Reconcile(ctx context.Context, studentID int) (*StudentBalance, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StudentBalance), args.Error(1)
}

func (m *MockLedgerRepo) GetStudentContact(ctx context.Context, studentID int) (string, string, error) {
	args := m.Called(ctx, studentID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockNotifier) SendPaymentReceipt(ctx context.Context, email, name, period, amount string) error {
	return m.Called(ctx, email, name, period, amount).Error(0)
}

func TestService_CreateObligation_RetriesOnConflict(t *testing.T) {
	repo := new(MockLedgerRepo)

	in := ObligationInput{StudentID: 7, Period: "2024-02", Amount: dec("100")}
	repo.On("CreateObligation", mock.Anything, in).Return(nil, ErrReconciliationConflict).Twice()
	repo.On("CreateObligation", mock.Anything, in).Return(&Obligation{ID: 1, StudentID: 7}, nil).Once()

	svc := NewService(repo, nil)
	o, err := svc.CreateObligation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, o.ID)
	repo.AssertExpectations(t)
}

func TestService_CreateObligation_GivesUpAfterRetries(t *testing.T) {
	repo := new(MockLedgerRepo)

	in := ObligationInput{StudentID: 7, Period: "2024-02", Amount: dec("100")}
	repo.On("CreateObligation", mock.Anything, in).Return(nil, ErrReconciliationConflict).Times(3)

	svc := NewService(repo, nil)
	_, err := svc.CreateObligation(context.Background(), in)
	require.ErrorIs(t, err, ErrReconciliationConflict)
	repo.AssertExpectations(t)
}

func TestService_CreateObligation_OtherErrorsAreTerminal(t *testing.T) {
	repo := new(MockLedgerRepo)

	in := ObligationInput{StudentID: 7, Period: "2024-02", Amount: dec("100")}
	repo.On("CreateObligation", mock.Anything, in).Return(nil, errors.New("db down")).Once()

	svc := NewService(repo, nil)
	_, err := svc.CreateObligation(context.Background(), in)
	require.Error(t, err)
	repo.AssertExpectations(t)
}

func TestService_RecordPayment_SendsReceiptWhenObligationSettles(t *testing.T) {
	repo := new(MockLedgerRepo)
	notifier := new(MockNotifier)

	in := PaymentInput{StudentID: 7, Amount: dec("105"), Method: "transfer", Status: PaymentPaid, CurrencyCode: "MYR"}
	repo.On("CreatePayment", mock.Anything, in).Return(&PaymentResult{
		Payment: &Payment{ID: 11, StudentID: 7},
		Obligation: &Obligation{
			ID: 3, StudentID: 7, Period: "2024-02",
			Amount: dec("100"), Fine: dec("10"), Discount: dec("5"),
			Status: StatusPaid,
		},
		BecamePaid: true,
	}, nil)
	repo.On("GetStudentContact", mock.Anything, 7).Return("Aisyah", "aisyah@example.com", nil)
	notifier.On("SendPaymentReceipt", mock.Anything, "aisyah@example.com", "Aisyah", "2024-02", "105.00").Return(nil)

	svc := NewService(repo, notifier)
	res, err := svc.RecordPayment(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.BecamePaid)
	notifier.AssertExpectations(t)
}

func TestService_RecordPayment_NoReceiptWithoutTransition(t *testing.T) {
	repo := new(MockLedgerRepo)
	notifier := new(MockNotifier)

	in := PaymentInput{StudentID: 7, Amount: dec("50"), Method: "cash", Status: PaymentPaid, CurrencyCode: "MYR"}
	repo.On("CreatePayment", mock.Anything, in).Return(&PaymentResult{
		Payment:    &Payment{ID: 11, StudentID: 7},
		Obligation: &Obligation{ID: 3, StudentID: 7, Status: StatusPartial},
		BecamePaid: false,
	}, nil)

	svc := NewService(repo, notifier)
	_, err := svc.RecordPayment(context.Background(), in)
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "SendPaymentReceipt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RecordPayment_ReceiptFailureDoesNotFailPayment(t *testing.T) {
	repo := new(MockLedgerRepo)
	notifier := new(MockNotifier)

	in := PaymentInput{StudentID: 7, Amount: dec("100"), Method: "transfer", Status: PaymentPaid, CurrencyCode: "MYR"}
	repo.On("CreatePayment", mock.Anything, in).Return(&PaymentResult{
		Payment:    &Payment{ID: 11, StudentID: 7},
		Obligation: &Obligation{ID: 3, StudentID: 7, Period: "2024-02", Amount: dec("100"), Status: StatusPaid},
		BecamePaid: true,
	}, nil)
	repo.On("GetStudentContact", mock.Anything, 7).Return("Aisyah", "aisyah@example.com", nil)
	notifier.On("SendPaymentReceipt", mock.Anything, "aisyah@example.com", "Aisyah", "2024-02", "100.00").
		Return(errors.New("redis unavailable"))

	svc := NewService(repo, notifier)
	res, err := svc.RecordPayment(context.Background(), in)
	require.NoError(t, err, "queueing failure must not fail the payment")
	assert.True(t, res.BecamePaid)
}

func TestService_UpdatePayment_ReceiptOnLateConfirmation(t *testing.T) {
	repo := new(MockLedgerRepo)
	notifier := new(MockNotifier)

	// A pending_confirmation payment flips to paid and settles the obligation.
	in := PaymentUpdate{Amount: dec("105"), Method: "transfer", Status: PaymentPaid, PayDate: time.Now()}
	repo.On("UpdatePayment", mock.Anything, 11, in).Return(&PaymentResult{
		Payment:    &Payment{ID: 11, StudentID: 7},
		Obligation: &Obligation{ID: 3, StudentID: 7, Period: "2024-02", Amount: dec("105"), Status: StatusPaid},
		BecamePaid: true,
	}, nil)
	repo.On("GetStudentContact", mock.Anything, 7).Return("Aisyah", "aisyah@example.com", nil)
	notifier.On("SendPaymentReceipt", mock.Anything, "aisyah@example.com", "Aisyah", "2024-02", "105.00").Return(nil)

	svc := NewService(repo, notifier)
	_, err := svc.UpdatePayment(context.Background(), 11, in)
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestService_Statement(t *testing.T) {
	repo := new(MockLedgerRepo)

	repo.On("GetBalance", mock.Anything, 7).Return(&StudentBalance{StudentID: 7, TotalDue: dec("105"), TotalPaid: dec("50"), Balance: dec("55")}, nil)
	repo.On("ListObligationsByStudent", mock.Anything, 7).Return([]Obligation{{ID: 3, StudentID: 7}}, nil)
	repo.On("ListPaymentsForStudent", mock.Anything, 7).Return([]Payment{{ID: 11, StudentID: 7}}, nil)

	svc := NewService(repo, nil)
	st, err := svc.Statement(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, st.Obligations, 1)
	assert.Len(t, st.Payments, 1)
	assert.True(t, st.Balance.Balance.Equal(dec("55")))
}

func TestService_Reconcile_RetriesThenSucceeds(t *testing.T) {
	repo := new(MockLedgerRepo)

	repo.On("Reconcile", mock.Anything, 7).Return(nil, ErrReconciliationConflict).Once()
	repo.On("Reconcile", mock.Anything, 7).Return(&StudentBalance{StudentID: 7, Balance: dec("55")}, nil).Once()

	svc := NewService(repo, nil)
	b, err := svc.Reconcile(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(dec("55")))
	repo.AssertExpectations(t)
}
