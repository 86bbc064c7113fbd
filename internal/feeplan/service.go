package feeplan

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"clubledger/internal/currency"
	"clubledger/internal/ledger"
	"clubledger/internal/logger"
	"clubledger/internal/metrics"
)

var ErrAssignmentInactive = errors.New("fee plan assignment is not active")

// CurrencyCatalog is the slice of the currency repository period
// generation needs.
type CurrencyCatalog interface {
	GetByCode(ctx context.Context, code string) (*currency.Currency, error)
}

// ObligationCreator is satisfied by ledger.Service.
type ObligationCreator interface {
	CreateObligation(ctx context.Context, in ledger.ObligationInput) (*ledger.Obligation, error)
	FindObligationForPeriod(ctx context.Context, studentID int, period string, feeType *string) (*ledger.Obligation, error)
}

type Service interface {
	GeneratePeriod(ctx context.Context, assignmentID int) (*ledger.Obligation, error)
	GenerateDue(ctx context.Context, asOf time.Time) (int, error)
}

type service struct {
	repo        Repository
	currencies  CurrencyCatalog
	obligations ObligationCreator
}

func NewService(repo Repository, currencies CurrencyCatalog, obligations ObligationCreator) Service {
	return &service{
		repo:        repo,
		currencies:  currencies,
		obligations: obligations,
	}
}

// GeneratePeriod turns an assignment's next scheduled period into a fee
// obligation and advances the assignment's schedule. The assignment's
// discount is baked into the obligation amount; the obligation's own
// fine/discount fields start at zero and are edited later by staff.
func (s *service) GeneratePeriod(ctx context.Context, assignmentID int) (*ledger.Obligation, error) {
	a, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, ErrAssignmentInactive
	}

	// Validate the schedule before writing anything.
	nextStart, nextDue, err := Advance(a.NextPeriodStart, a.Interval, a.IntervalCount)
	if err != nil {
		return nil, err
	}

	var planBase *decimal.Decimal
	var feeType *string
	plan, err := s.repo.GetPlan(ctx, a.PlanID)
	switch {
	case err == nil:
		planBase = &plan.BaseAmount
		feeType = &plan.Name
	case errors.Is(err, ErrPlanNotFound):
		// Assignment may still resolve through its custom amount.
	default:
		return nil, err
	}

	period := a.NextPeriodStart.Format("2006-01")

	// A previous run may have committed the obligation and then died
	// before the schedule advanced. Re-running must not bill the period
	// twice: pick up where that run stopped.
	existing, err := s.obligations.FindObligationForPeriod(ctx, a.StudentID, period, feeType)
	switch {
	case err == nil:
		logger.Infof("obligation %d already exists for assignment %d period %s, advancing schedule only", existing.ID, a.ID, period)
		if err := s.repo.AdvanceSchedule(ctx, a.ID, nextStart, nextDue); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, ledger.ErrObligationNotFound):
		// Normal path, nothing billed yet.
	default:
		return nil, err
	}

	cur, err := s.currencies.GetByCode(ctx, a.CurrencyCode)
	if err != nil {
		return nil, err
	}

	amount, err := EffectiveAmount(a, planBase, cur.DecimalPlaces)
	if err != nil {
		return nil, err
	}

	ob, err := s.obligations.CreateObligation(ctx, ledger.ObligationInput{
		StudentID: a.StudentID,
		FeeType:   feeType,
		Period:    period,
		Amount:    amount,
		DueDate:   a.NextDueDate,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordObligationGenerated()

	if err := s.repo.AdvanceSchedule(ctx, a.ID, nextStart, nextDue); err != nil {
		// The obligation is committed; the next run finds it and only
		// advances the schedule, so surface the failure without retrying.
		logger.Errorf("obligation %d created but schedule advance failed for assignment %d: %v", ob.ID, a.ID, err)
		return nil, err
	}

	return ob, nil
}

// GenerateDue generates one period for every active assignment whose next
// period start has been reached. Failures on individual assignments are
// logged and skipped so one bad record cannot stall the rest of the run.
func (s *service) GenerateDue(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.repo.ListDueAssignments(ctx, asOf)
	if err != nil {
		return 0, err
	}

	generated := 0
	for _, a := range due {
		if _, err := s.GeneratePeriod(ctx, a.ID); err != nil {
			logger.Errorf("period generation failed for assignment %d (student %d): %v", a.ID, a.StudentID, err)
			continue
		}
		generated++
	}
	return generated, nil
}
