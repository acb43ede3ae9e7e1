package models

import "time"

// Invoice is a generated accounting document. One invoice is synthesized
// per approved payment proof.
type Invoice struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	StudentID      string     `json:"student_id"`
	UploadID       string     `json:"upload_id,omitempty"`
	InvoiceNumber  string     `json:"invoice_number"`
	BillToName     string     `json:"bill_to_name"`
	BillToEmail    string     `json:"bill_to_email,omitempty"`
	Subtotal       float64    `json:"subtotal"`
	Total          float64    `json:"total"`
	PaidAmount     float64    `json:"paid_amount"`
	Status         string     `json:"status"`
	DueDate        time.Time  `json:"due_date"`
	PaidDate       *time.Time `json:"paid_date,omitempty"`
	StatementPath  string     `json:"statement_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// InvoiceItem is a single line on an invoice
type InvoiceItem struct {
	ID          string  `json:"id"`
	InvoiceID   string  `json:"invoice_id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Invoice status constants
const (
	InvoiceStatusPending = "pending"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusVoid    = "void"
)
