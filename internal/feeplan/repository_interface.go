package feeplan

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Repository interface {
	CreatePlan(ctx context.Context, clubID int, name string, baseAmount decimal.Decimal, currencyCode string) (*Plan, error)
	GetPlan(ctx context.Context, id int) (*Plan, error)
	ListPlansByClub(ctx context.Context, clubID int) ([]Plan, error)
	SetPlanActive(ctx context.Context, id int, active bool) error

	CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*Assignment, error)
	GetAssignment(ctx context.Context, id int) (*Assignment, error)
	ActiveAssignmentForStudent(ctx context.Context, studentID int) (*Assignment, error)
	ListDueAssignments(ctx context.Context, asOf time.Time) ([]Assignment, error)
	AdvanceSchedule(ctx context.Context, assignmentID int, nextStart, nextDue time.Time) error
	SetAssignmentActive(ctx context.Context, id int, active bool) error
}
