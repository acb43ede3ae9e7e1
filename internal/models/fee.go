package models

import "time"

// StudentFee is a billing obligation for one student for one period.
// Invariant: when Status is FeeStatusPaid, AmountOutstanding is 0.
type StudentFee struct {
	ID                string     `json:"id"`
	OrganizationID    string     `json:"organization_id"`
	StudentID         string     `json:"student_id"`
	Description       string     `json:"description"`
	DueDate           time.Time  `json:"due_date"`
	Amount            float64    `json:"amount"`
	FinalAmount       *float64   `json:"final_amount,omitempty"`
	Status            string     `json:"status"`
	AmountPaid        float64    `json:"amount_paid"`
	AmountOutstanding float64    `json:"amount_outstanding"`
	PaidDate          *time.Time `json:"paid_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Fee status constants
const (
	FeeStatusPending             = "pending"
	FeeStatusOverdue             = "overdue"
	FeeStatusPartiallyPaid       = "partially_paid"
	FeeStatusPendingVerification = "pending_verification"
	FeeStatusPaid                = "paid"
)

// OutstandingFeeStatuses are the statuses a fee can hold while still
// eligible for reconciliation against an approved payment.
var OutstandingFeeStatuses = []string{
	FeeStatusPending,
	FeeStatusOverdue,
	FeeStatusPartiallyPaid,
	FeeStatusPendingVerification,
}

// SettlementAmount returns the amount recorded as paid when the fee is
// settled: final amount if set, else the fee amount, else the payment
// amount from the approved upload.
func (f *StudentFee) SettlementAmount(paymentAmount float64) float64 {
	if f.FinalAmount != nil {
		return *f.FinalAmount
	}
	if f.Amount > 0 {
		return f.Amount
	}
	return paymentAmount
}
