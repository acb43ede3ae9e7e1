package models

import (
	"math"
	"time"
)

// PaymentRecord is a ledger entry mirroring an approved upload's amount,
// method and reference. AmountCents is stored redundantly alongside the
// decimal amount so downstream accounting never re-derives it.
type PaymentRecord struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	StudentID      string    `json:"student_id"`
	UploadID       string    `json:"upload_id"`
	FeeID          string    `json:"fee_id,omitempty"`
	InvoiceID      string    `json:"invoice_id,omitempty"`
	Amount         float64   `json:"amount"`
	AmountCents    int64     `json:"amount_cents"`
	Method         string    `json:"method"`
	Reference      string    `json:"reference"`
	PaymentDate    time.Time `json:"payment_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// Cents converts a decimal amount to integer cents
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
