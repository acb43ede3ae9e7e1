// Package reconcile matches approved payments to outstanding billing
// obligations and synthesizes the accounting records.
package reconcile

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/models"
	"github.com/edudashpro/finance-service/internal/repository"
	"github.com/edudashpro/finance-service/pkg/database"
)

// Engine errors
var (
	ErrUploadNotFound = errors.New("upload not found")
	ErrUploadRejected = errors.New("cannot approve a rejected upload")
	ErrUploadApproved = errors.New("cannot reject an approved upload")
)

// StatementGenerator renders a payment statement document for a settled
// invoice. Implemented by the statement package; optional.
type StatementGenerator interface {
	Generate(invoice *models.Invoice, item *models.InvoiceItem, student *models.Student) (string, error)
}

// Notifier announces review outcomes to organization admins. Optional.
type Notifier interface {
	UploadReviewed(upload *models.POPUpload, approved bool)
}

// Outcome is the result of processing an admin review action
type Outcome struct {
	Upload  *models.POPUpload
	Fee     *models.StudentFee    // settled fee; nil when no fee matched
	Invoice *models.Invoice       // synthesized invoice
	Payment *models.PaymentRecord // ledger entry
	// AlreadyProcessed is set when the upload had been reviewed before;
	// no new records were created.
	AlreadyProcessed bool
}

// Engine runs fee matching, settlement and record synthesis for approved
// uploads. All database writes of one approval share a transaction: a
// failing step rolls back the whole approval rather than leaving fee,
// invoice and ledger in disagreement.
type Engine struct {
	db         *database.DB
	uploads    *repository.UploadRepository
	fees       *repository.FeeRepository
	invoices   *repository.InvoiceRepository
	payments   *repository.PaymentRepository
	students   *repository.StudentRepository
	statements StatementGenerator
	notifier   Notifier
	logger     *zap.Logger
}

// NewEngine creates a new reconciliation engine. statements and notifier
// may be nil; they run best-effort after the approval commits.
func NewEngine(
	db *database.DB,
	uploads *repository.UploadRepository,
	fees *repository.FeeRepository,
	invoices *repository.InvoiceRepository,
	payments *repository.PaymentRepository,
	students *repository.StudentRepository,
	statements StatementGenerator,
	notifier Notifier,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:         db,
		uploads:    uploads,
		fees:       fees,
		invoices:   invoices,
		payments:   payments,
		students:   students,
		statements: statements,
		notifier:   notifier,
		logger:     logger,
	}
}

// Approve processes an administrator's approval of a pending upload.
// Approving an already-approved upload is idempotent: the existing
// records are returned and nothing new is created.
func (e *Engine) Approve(organizationID, uploadID, reviewerID, note string) (*Outcome, error) {
	upload, err := e.uploads.GetByID(organizationID, uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, ErrUploadNotFound
	}

	switch upload.Status {
	case models.UploadStatusApproved:
		return e.replayOutcome(upload)
	case models.UploadStatusRejected:
		return nil, ErrUploadRejected
	}

	now := time.Now().UTC()

	if !upload.IsPaymentProof() {
		// Progress pictures carry no payment; approval is just a status
		// transition.
		err := e.db.WithTransaction(func(tx *sql.Tx) error {
			return e.uploads.UpdateReview(tx, upload.ID, models.UploadStatusApproved, reviewerID, note, now)
		})
		if err != nil {
			return nil, err
		}
		upload.Status = models.UploadStatusApproved
		e.notifyReviewed(upload, true)
		return &Outcome{Upload: upload}, nil
	}

	paymentAmount := 0.0
	if upload.PaymentAmount != nil {
		paymentAmount = *upload.PaymentAmount
	}
	period := models.PeriodOf(upload.EffectivePaymentDate())

	student, err := e.students.GetByID(organizationID, upload.StudentID)
	if err != nil {
		return nil, err
	}
	studentName := "Student"
	if student != nil {
		studentName = student.FullName()
	}

	fee, err := e.matchFee(upload, period)
	if err != nil {
		return nil, err
	}

	pendingInvoice, err := e.invoices.FindPendingInWindow(organizationID, upload.StudentID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	invoice := e.buildInvoice(upload, student, period, paymentAmount, now)
	item := &models.InvoiceItem{
		ID:          uuid.NewString(),
		InvoiceID:   invoice.ID,
		Description: fmt.Sprintf("%s School Fees - %s", period.Label(), studentName),
		Quantity:    1,
		UnitPrice:   paymentAmount,
		Amount:      paymentAmount,
	}
	payment := e.buildPayment(upload, fee, invoice, paymentAmount)

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		if err := e.uploads.UpdateReview(tx, upload.ID, models.UploadStatusApproved, reviewerID, note, now); err != nil {
			return err
		}
		if fee != nil {
			settled := fee.SettlementAmount(paymentAmount)
			if err := e.fees.MarkPaid(tx, fee.ID, settled, now); err != nil {
				return err
			}
			fee.Status = models.FeeStatusPaid
			fee.AmountPaid = settled
			fee.AmountOutstanding = 0
			fee.PaidDate = &now
		}
		if pendingInvoice != nil {
			if err := e.invoices.MarkPaid(tx, pendingInvoice.ID, paymentAmount, now); err != nil {
				return err
			}
		}
		if err := e.invoices.Create(tx, invoice); err != nil {
			return err
		}
		if err := e.invoices.CreateItem(tx, item); err != nil {
			return err
		}
		return e.payments.Create(tx, payment)
	})
	if err != nil {
		e.logger.Error("Approval transaction failed",
			zap.String("upload_id", upload.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to approve upload: %w", err)
	}

	upload.Status = models.UploadStatusApproved
	upload.ReviewedBy = reviewerID
	upload.ReviewedAt = &now
	upload.ReviewNote = note

	e.logger.Info("Upload approved",
		zap.String("upload_id", upload.ID),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Float64("amount", paymentAmount),
		zap.Bool("fee_matched", fee != nil))

	e.generateStatement(invoice, item, student)
	e.notifyReviewed(upload, true)

	return &Outcome{
		Upload:  upload,
		Fee:     fee,
		Invoice: invoice,
		Payment: payment,
	}, nil
}

// Reject transitions a pending upload to rejected. Rejecting an already
// rejected upload is idempotent; an approved upload cannot be rejected.
func (e *Engine) Reject(organizationID, uploadID, reviewerID, note string) (*Outcome, error) {
	upload, err := e.uploads.GetByID(organizationID, uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, ErrUploadNotFound
	}

	switch upload.Status {
	case models.UploadStatusRejected:
		return &Outcome{Upload: upload, AlreadyProcessed: true}, nil
	case models.UploadStatusApproved:
		return nil, ErrUploadApproved
	}

	now := time.Now().UTC()
	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		return e.uploads.UpdateReview(tx, upload.ID, models.UploadStatusRejected, reviewerID, note, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject upload: %w", err)
	}

	upload.Status = models.UploadStatusRejected
	upload.ReviewedBy = reviewerID
	upload.ReviewedAt = &now
	upload.ReviewNote = note

	e.logger.Info("Upload rejected",
		zap.String("upload_id", upload.ID),
		zap.String("reviewer", reviewerID))

	e.notifyReviewed(upload, false)
	return &Outcome{Upload: upload}, nil
}

// matchFee runs the two-pass fee search: outstanding fees due in the
// payment's calendar month first, then the single oldest outstanding fee.
// The fallback exists because payment dates and billing due dates often
// disagree by a few days at month boundaries; crediting some outstanding
// obligation beats leaving a confirmed payment unreconciled.
func (e *Engine) matchFee(upload *models.POPUpload, period models.BillingPeriod) (*models.StudentFee, error) {
	inWindow, err := e.fees.FindOutstandingInWindow(upload.OrganizationID, upload.StudentID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	if len(inWindow) > 0 {
		return inWindow[0], nil
	}
	return e.fees.FindOldestOutstanding(upload.OrganizationID, upload.StudentID)
}

func (e *Engine) buildInvoice(upload *models.POPUpload, student *models.Student, period models.BillingPeriod, amount float64, now time.Time) *models.Invoice {
	invoice := &models.Invoice{
		ID:             uuid.NewString(),
		OrganizationID: upload.OrganizationID,
		StudentID:      upload.StudentID,
		UploadID:       upload.ID,
		InvoiceNumber:  InvoiceNumber(period.Start, upload.ID),
		Subtotal:       amount,
		Total:          amount,
		PaidAmount:     amount,
		Status:         models.InvoiceStatusPaid,
		DueDate:        period.End,
		PaidDate:       &now,
	}
	if student != nil {
		invoice.BillToName = student.GuardianName
		invoice.BillToEmail = student.GuardianEmail
	}
	return invoice
}

func (e *Engine) buildPayment(upload *models.POPUpload, fee *models.StudentFee, invoice *models.Invoice, amount float64) *models.PaymentRecord {
	payment := &models.PaymentRecord{
		ID:             uuid.NewString(),
		OrganizationID: upload.OrganizationID,
		StudentID:      upload.StudentID,
		UploadID:       upload.ID,
		InvoiceID:      invoice.ID,
		Amount:         amount,
		AmountCents:    models.Cents(amount),
		Method:         upload.PaymentMethod,
		Reference:      PaymentReference(upload),
		PaymentDate:    upload.EffectivePaymentDate(),
	}
	if fee != nil {
		payment.FeeID = fee.ID
	}
	return payment
}

// replayOutcome returns the records created by a previous approval
func (e *Engine) replayOutcome(upload *models.POPUpload) (*Outcome, error) {
	invoice, err := e.invoices.GetByUploadID(upload.ID)
	if err != nil {
		return nil, err
	}
	payment, err := e.payments.GetByUploadID(upload.ID)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Upload:           upload,
		Invoice:          invoice,
		Payment:          payment,
		AlreadyProcessed: true,
	}, nil
}

func (e *Engine) generateStatement(invoice *models.Invoice, item *models.InvoiceItem, student *models.Student) {
	if e.statements == nil {
		return
	}
	path, err := e.statements.Generate(invoice, item, student)
	if err != nil {
		e.logger.Warn("Statement generation failed",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err))
		return
	}
	invoice.StatementPath = path
	if err := e.invoices.UpdateStatementPath(invoice.ID, path); err != nil {
		e.logger.Warn("Failed to record statement path",
			zap.String("invoice_id", invoice.ID),
			zap.Error(err))
	}
}

func (e *Engine) notifyReviewed(upload *models.POPUpload, approved bool) {
	if e.notifier == nil {
		return
	}
	e.notifier.UploadReviewed(upload, approved)
}

// InvoiceNumber builds the invoice number for a billing period and upload:
// INV-{year}{month}-{first four characters of the upload id, uppercased}.
func InvoiceNumber(periodStart time.Time, uploadID string) string {
	short := uploadID
	if len(short) > 4 {
		short = short[:4]
	}
	return fmt.Sprintf("INV-%d%02d-%s", periodStart.Year(), int(periodStart.Month()), strings.ToUpper(short))
}

// PaymentReference returns the upload's reference, or the generated
// POP-{first eight characters of the upload id} fallback.
func PaymentReference(upload *models.POPUpload) string {
	if upload.PaymentReference != "" {
		return upload.PaymentReference
	}
	short := upload.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return "POP-" + short
}
