package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubledger/internal/currency"
	"clubledger/internal/feeplan"
	"clubledger/internal/ledger"
)

func createTestPlan(t *testing.T, db *sqlx.DB, name, baseAmount string) int {
	var planID int
	err := db.QueryRow(`
		INSERT INTO plans (club_id, name, base_amount, currency_code)
		VALUES (1, $1, $2, 'MYR')
		RETURNING id
	`, name, baseAmount).Scan(&planID)

	require.NoError(t, err)
	return planID
}

func newFeePlanService(db *sqlx.DB) (feeplan.Service, feeplan.Repository, ledger.Repository) {
	feeRepo := feeplan.NewRepository(db)
	curRepo := currency.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	ledgerSvc := ledger.NewService(ledgerRepo, nil)
	return feeplan.NewService(feeRepo, curRepo, ledgerSvc), feeRepo, ledgerRepo
}

func TestGeneratePeriod_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	cleanDatabase(t, db)
	seedCurrency(t, db, "MYR", "RM", true)
	studentID := createTestStudent(t, db, "Aisyah", "aisyah@test.com")
	planID := createTestPlan(t, db, "Junior Membership", "100.00")

	svc, feeRepo, ledgerRepo := newFeePlanService(db)
	ctx := context.Background()

	effective := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	a, err := feeRepo.CreateAssignment(ctx, feeplan.CreateAssignmentRequest{
		StudentID:     studentID,
		PlanID:        planID,
		CurrencyCode:  "MYR",
		Interval:      feeplan.IntervalMonthly,
		DiscountType:  feeplan.DiscountPercent,
		DiscountValue: mustDecimal(t, "10"),
		EffectiveFrom: effective,
	})
	require.NoError(t, err)

	// First period: 100 base with 10% off = 90.00, billed for 2024-01.
	o, err := svc.GeneratePeriod(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, o.Amount.Equal(mustDecimal(t, "90.00")), "amount %s", o.Amount)
	assert.Equal(t, "2024-01", o.Period)
	require.NotNil(t, o.FeeType)
	assert.Equal(t, "Junior Membership", *o.FeeType)

	// Schedule advanced one month, keeping the day of month.
	a, err = feeRepo.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, time.February, a.NextPeriodStart.UTC().Month())
	assert.Equal(t, 15, a.NextPeriodStart.UTC().Day())

	// Second period bills 2024-02.
	o, err = svc.GeneratePeriod(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", o.Period)

	// Balance reflects both generated obligations.
	b, err := ledgerRepo.GetBalance(ctx, studentID)
	require.NoError(t, err)
	assert.True(t, b.TotalDue.Equal(mustDecimal(t, "180.00")), "total_due %s", b.TotalDue)
}

func TestGeneratePeriod_InactiveAssignment_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	cleanDatabase(t, db)
	seedCurrency(t, db, "MYR", "RM", true)
	studentID := createTestStudent(t, db, "Hafiz", "hafiz@test.com")
	planID := createTestPlan(t, db, "Senior Membership", "150.00")

	svc, feeRepo, _ := newFeePlanService(db)
	ctx := context.Background()

	a, err := feeRepo.CreateAssignment(ctx, feeplan.CreateAssignmentRequest{
		StudentID:     studentID,
		PlanID:        planID,
		CurrencyCode:  "MYR",
		Interval:      feeplan.IntervalMonthly,
		EffectiveFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, feeRepo.SetAssignmentActive(ctx, a.ID, false))

	_, err = svc.GeneratePeriod(ctx, a.ID)
	require.ErrorIs(t, err, feeplan.ErrAssignmentInactive)
}

func TestGenerateDue_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	cleanDatabase(t, db)
	seedCurrency(t, db, "MYR", "RM", true)
	planID := createTestPlan(t, db, "Junior Membership", "100.00")

	svc, feeRepo, _ := newFeePlanService(db)
	ctx := context.Background()

	dueStudent := createTestStudent(t, db, "Due Student", "due@test.com")
	futureStudent := createTestStudent(t, db, "Future Student", "future@test.com")

	_, err := feeRepo.CreateAssignment(ctx, feeplan.CreateAssignmentRequest{
		StudentID:     dueStudent,
		PlanID:        planID,
		CurrencyCode:  "MYR",
		Interval:      feeplan.IntervalMonthly,
		EffectiveFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = feeRepo.CreateAssignment(ctx, feeplan.CreateAssignmentRequest{
		StudentID:     futureStudent,
		PlanID:        planID,
		CurrencyCode:  "MYR",
		Interval:      feeplan.IntervalMonthly,
		EffectiveFrom: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// Only the first assignment's next period has been reached.
	generated, err := svc.GenerateDue(ctx, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, generated)
}
