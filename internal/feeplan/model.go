package feeplan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Interval string

type DiscountType string

const (
	IntervalMonthly   Interval = "monthly"
	IntervalQuarterly Interval = "quarterly"
	IntervalSemester  Interval = "semester"
	IntervalYearly    Interval = "yearly"
	IntervalCustom    Interval = "custom"

	DiscountNone    DiscountType = "none"
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Plan is a club's fee offering. BaseAmount is a template; the per-student
// commitment lives on the Assignment.
type Plan struct {
	ID           int             `db:"id" json:"id"`
	ClubID       int             `db:"club_id" json:"club_id"`
	Name         string          `db:"name" json:"name"`
	BaseAmount   decimal.Decimal `db:"base_amount" json:"base_amount"`
	CurrencyCode string          `db:"currency_code" json:"currency_code"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Assignment binds a student to a plan with an interval and optional
// discount. NextPeriodStart/NextDueDate are advanced each time a billing
// period is generated.
type Assignment struct {
	ID              int              `db:"id" json:"id"`
	StudentID       int              `db:"student_id" json:"student_id"`
	PlanID          int              `db:"plan_id" json:"plan_id"`
	CustomAmount    *decimal.Decimal `db:"custom_amount" json:"custom_amount,omitempty"`
	CurrencyCode    string           `db:"currency_code" json:"currency_code"`
	Interval        Interval         `db:"interval" json:"interval"`
	IntervalCount   *int             `db:"interval_count" json:"interval_count,omitempty"`
	DiscountType    DiscountType     `db:"discount_type" json:"discount_type"`
	DiscountValue   decimal.Decimal  `db:"discount_value" json:"discount_value"`
	EffectiveFrom   time.Time        `db:"effective_from" json:"effective_from"`
	IsActive        bool             `db:"is_active" json:"is_active"`
	NextPeriodStart time.Time        `db:"next_period_start" json:"next_period_start"`
	NextDueDate     time.Time        `db:"next_due_date" json:"next_due_date"`
	Notes           string           `db:"notes" json:"notes"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

type CreatePlanRequest struct {
	ClubID       int             `json:"club_id" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	BaseAmount   decimal.Decimal `json:"base_amount" binding:"required"`
	CurrencyCode string          `json:"currency_code" binding:"required,len=3"`
}

type CreateAssignmentRequest struct {
	StudentID     int              `json:"student_id" binding:"required"`
	PlanID        int              `json:"plan_id" binding:"required"`
	CustomAmount  *decimal.Decimal `json:"custom_amount,omitempty"`
	CurrencyCode  string           `json:"currency_code" binding:"required,len=3"`
	Interval      Interval         `json:"interval" binding:"required,oneof=monthly quarterly semester yearly custom"`
	IntervalCount *int             `json:"interval_count,omitempty"`
	DiscountType  DiscountType     `json:"discount_type" binding:"omitempty,oneof=none percent fixed"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	EffectiveFrom time.Time        `json:"effective_from" binding:"required"`
	Notes         string           `json:"notes"`
}
