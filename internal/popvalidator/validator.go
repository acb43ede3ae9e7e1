// Package popvalidator rejects proof-of-payment submissions that would
// create ambiguity or duplication before any file is persisted.
package popvalidator

import (
	"fmt"
	"time"

	"github.com/edudashpro/finance-service/internal/models"
	"github.com/edudashpro/finance-service/internal/repository"
	"go.uber.org/zap"
)

// Rejection codes
const (
	CodePeriodSettled      = "period_already_settled"
	CodeDuplicateReference = "duplicate_reference"
	CodeDuplicateAmount    = "duplicate_amount"
)

// RejectionError is a business-rule rejection surfaced to the submitter
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// Submission carries the fields of an upload that are checked before the
// file transfer and database insert happen.
type Submission struct {
	OrganizationID   string
	StudentID        string
	UploadType       string
	PaymentAmount    *float64
	PaymentDate      *time.Time
	PaymentReference string
}

// Validator runs the pre-persistence business-rule checks
type Validator struct {
	uploads *repository.UploadRepository
	fees    *repository.FeeRepository
	logger  *zap.Logger
}

// NewValidator creates a new validator
func NewValidator(uploads *repository.UploadRepository, fees *repository.FeeRepository, logger *zap.Logger) *Validator {
	return &Validator{
		uploads: uploads,
		fees:    fees,
		logger:  logger,
	}
}

// CheckSubmission runs the checks in order: period already paid, duplicate
// reference, duplicate amount within 24 hours. Checks are best-effort
// reads: a failing read counts as "no match" rather than blocking the
// submission, since over-accepting only defers the conflict to the
// approval step while over-rejecting blocks a legitimate payment.
func (v *Validator) CheckSubmission(sub *Submission) error {
	if sub.UploadType != models.UploadTypePaymentProof {
		return nil
	}

	if err := v.checkPeriodSettled(sub); err != nil {
		return err
	}
	if sub.PaymentReference != "" {
		return v.checkDuplicateReference(sub)
	}
	return v.checkDuplicateAmount(sub)
}

func (v *Validator) checkPeriodSettled(sub *Submission) error {
	if sub.PaymentDate == nil {
		return nil
	}

	period := models.PeriodOf(*sub.PaymentDate)
	fee, err := v.fees.FindPaidInWindow(sub.OrganizationID, sub.StudentID, period.Start, period.End)
	if err != nil {
		v.logger.Warn("Period-settled check failed, treating as no match",
			zap.String("student_id", sub.StudentID),
			zap.Error(err))
		return nil
	}
	if fee == nil {
		return nil
	}

	return &RejectionError{
		Code: CodePeriodSettled,
		Message: fmt.Sprintf("payment period %s is already settled by %q",
			period.Label(), fee.Description),
	}
}

func (v *Validator) checkDuplicateReference(sub *Submission) error {
	existing, err := v.uploads.FindByReference(sub.OrganizationID, sub.PaymentReference)
	if err != nil {
		v.logger.Warn("Duplicate-reference check failed, treating as no match",
			zap.String("reference", sub.PaymentReference),
			zap.Error(err))
		return nil
	}
	if existing == nil {
		return nil
	}

	return &RejectionError{
		Code: CodeDuplicateReference,
		Message: fmt.Sprintf("payment reference %q was already used by a %s upload",
			sub.PaymentReference, existing.Status),
	}
}

func (v *Validator) checkDuplicateAmount(sub *Submission) error {
	if sub.PaymentAmount == nil {
		return nil
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	existing, err := v.uploads.FindRecentSameAmount(sub.OrganizationID, sub.StudentID, *sub.PaymentAmount, since)
	if err != nil {
		v.logger.Warn("Duplicate-amount check failed, treating as no match",
			zap.String("student_id", sub.StudentID),
			zap.Error(err))
		return nil
	}
	if existing == nil {
		return nil
	}

	return &RejectionError{
		Code: CodeDuplicateAmount,
		Message: fmt.Sprintf("a payment of %.2f for this student was already submitted in the last 24 hours; add a payment reference to distinguish them",
			*sub.PaymentAmount),
	}
}
