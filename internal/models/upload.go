package models

import "time"

// POPUpload is one submitted proof-of-payment (or progress picture).
// Rows are never deleted; an admin action only transitions the status.
type POPUpload struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organization_id"`
	StudentID        string     `json:"student_id"`
	UploadedBy       string     `json:"uploaded_by"`
	UploadType       string     `json:"upload_type"` // payment_proof, progress_picture
	PaymentAmount    *float64   `json:"payment_amount,omitempty"`
	PaymentMethod    string     `json:"payment_method,omitempty"`
	PaymentDate      *time.Time `json:"payment_date,omitempty"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	FilePath         string     `json:"file_path"`
	FileName         string     `json:"file_name"`
	FileSize         int64      `json:"file_size"`
	FileType         string     `json:"file_type"`
	Status           string     `json:"status"` // pending, approved, rejected
	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote       string     `json:"review_note,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Upload type constants. The type set is closed: anything else is rejected
// at the API boundary.
const (
	UploadTypePaymentProof    = "payment_proof"
	UploadTypeProgressPicture = "progress_picture"
)

// Upload status constants
const (
	UploadStatusPending  = "pending"
	UploadStatusApproved = "approved"
	UploadStatusRejected = "rejected"
)

// IsPaymentProof reports whether the upload carries payment details
func (u *POPUpload) IsPaymentProof() bool {
	return u.UploadType == UploadTypePaymentProof
}

// EffectivePaymentDate returns the payment date when given, otherwise the
// submission time. Fee matching keys off this date.
func (u *POPUpload) EffectivePaymentDate() time.Time {
	if u.PaymentDate != nil {
		return *u.PaymentDate
	}
	return u.CreatedAt
}
