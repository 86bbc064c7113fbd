package ledger

import "github.com/shopspring/decimal"

// DeriveStatus maps cumulative paid amount against total due:
// paid when paid >= due, partial when 0 < paid < due, pending otherwise.
func DeriveStatus(totalDue, paidAmount decimal.Decimal) Status {
	switch {
	case paidAmount.GreaterThanOrEqual(totalDue):
		return StatusPaid
	case paidAmount.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// ApplyPayment credits a payment against the obligation and re-derives its
// status. Only successful payments move the paid amount. Idempotency is the
// caller's responsibility: applying the same payment twice double-counts.
func ApplyPayment(o *Obligation, p *Payment) Status {
	if p.Status == PaymentPaid {
		o.PaidAmount = o.PaidAmount.Add(p.Amount)
	}
	o.Status = DeriveStatus(o.TotalDue(), o.PaidAmount)
	return o.Status
}

// RemovePayment is the exact inverse of ApplyPayment, used when a payment
// is edited or deleted.
func RemovePayment(o *Obligation, p *Payment) Status {
	if p.Status == PaymentPaid {
		o.PaidAmount = o.PaidAmount.Sub(p.Amount)
	}
	o.Status = DeriveStatus(o.TotalDue(), o.PaidAmount)
	return o.Status
}
