package reconcile

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/models"
	"github.com/edudashpro/finance-service/internal/repository"
	"github.com/edudashpro/finance-service/pkg/database"
)

const testOrg = "org-1"

type fixture struct {
	db       *database.DB
	uploads  *repository.UploadRepository
	fees     *repository.FeeRepository
	invoices *repository.InvoiceRepository
	payments *repository.PaymentRepository
	students *repository.StudentRepository
	engine   *Engine
	student  *models.Student
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run("../../migrations"))

	f := &fixture{
		db:       db,
		uploads:  repository.NewUploadRepository(db.DB, logger),
		fees:     repository.NewFeeRepository(db.DB, logger),
		invoices: repository.NewInvoiceRepository(db.DB, logger),
		payments: repository.NewPaymentRepository(db.DB, logger),
		students: repository.NewStudentRepository(db.DB, logger),
	}
	f.engine = NewEngine(db, f.uploads, f.fees, f.invoices, f.payments, f.students, nil, nil, logger)

	f.student = &models.Student{
		ID:             uuid.NewString(),
		OrganizationID: testOrg,
		FirstName:      "Sipho",
		LastName:       "Dlamini",
		GuardianName:   "N. Dlamini",
		GuardianEmail:  "guardian@example.com",
	}
	require.NoError(t, f.students.Create(nil, f.student))
	return f
}

func (f *fixture) addFee(t *testing.T, dueDate time.Time, amount float64, status string) *models.StudentFee {
	t.Helper()
	fee := &models.StudentFee{
		ID:                uuid.NewString(),
		OrganizationID:    testOrg,
		StudentID:         f.student.ID,
		Description:       fmt.Sprintf("%s %d Tuition", dueDate.Month(), dueDate.Year()),
		DueDate:           dueDate,
		Amount:            amount,
		Status:            status,
		AmountOutstanding: amount,
	}
	require.NoError(t, f.fees.Create(nil, fee))
	return fee
}

func (f *fixture) addUpload(t *testing.T, amount float64, paymentDate time.Time, reference string) *models.POPUpload {
	t.Helper()
	upload := &models.POPUpload{
		ID:               uuid.NewString(),
		OrganizationID:   testOrg,
		StudentID:        f.student.ID,
		UploadedBy:       "parent-1",
		UploadType:       models.UploadTypePaymentProof,
		PaymentAmount:    &amount,
		PaymentMethod:    "bank_transfer",
		PaymentDate:      &paymentDate,
		PaymentReference: reference,
		FilePath:         "proofs/" + uuid.NewString() + ".pdf",
		FileName:         "proof.pdf",
	}
	require.NoError(t, f.uploads.Create(nil, upload))
	return upload
}

func TestApprove_SettlesMatchingFee(t *testing.T) {
	f := newFixture(t)
	fee := f.addFee(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), 1200, models.FeeStatusPending)
	upload := f.addUpload(t, 1200, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "")

	outcome, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "verified against bank statement")
	require.NoError(t, err)
	require.NotNil(t, outcome.Fee)
	assert.Equal(t, fee.ID, outcome.Fee.ID)

	settled, err := f.fees.GetByID(fee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, settled.Status)
	assert.Equal(t, 1200.0, settled.AmountPaid)
	assert.Equal(t, 0.0, settled.AmountOutstanding)
	require.NotNil(t, settled.PaidDate)

	invoice, err := f.invoices.GetByUploadID(upload.ID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, 1200.0, invoice.PaidAmount)
	assert.Equal(t, "N. Dlamini", invoice.BillToName)

	wantNumber := "INV-202506-" + strings.ToUpper(upload.ID[:4])
	assert.Equal(t, wantNumber, invoice.InvoiceNumber)

	items, err := f.invoices.ItemsByInvoice(invoice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "June 2025 School Fees - Sipho Dlamini", items[0].Description)
	assert.Equal(t, 1200.0, items[0].Amount)

	payment, err := f.payments.GetByUploadID(upload.ID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, 1200.0, payment.Amount)
	assert.Equal(t, int64(120000), payment.AmountCents)
	assert.Equal(t, "POP-"+upload.ID[:8], payment.Reference)
	assert.Equal(t, fee.ID, payment.FeeID)

	reviewed, err := f.uploads.GetByID(testOrg, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusApproved, reviewed.Status)
	assert.Equal(t, "admin-1", reviewed.ReviewedBy)
}

func TestApprove_FallbackSelectsOldestOutstandingFee(t *testing.T) {
	f := newFixture(t)
	mayFee := f.addFee(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 1200, models.FeeStatusOverdue)
	juneFee := f.addFee(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 1200, models.FeeStatusPending)

	// Payment dated July: no fee due that month, so the fallback credits
	// the oldest outstanding obligation.
	upload := f.addUpload(t, 1200, time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC), "REF-JULY")

	outcome, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "")
	require.NoError(t, err)
	require.NotNil(t, outcome.Fee)
	assert.Equal(t, mayFee.ID, outcome.Fee.ID)

	settled, err := f.fees.GetByID(mayFee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, settled.Status)

	untouched, err := f.fees.GetByID(juneFee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPending, untouched.Status)
}

func TestApprove_ExactMonthBeatsFallback(t *testing.T) {
	f := newFixture(t)
	f.addFee(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 1200, models.FeeStatusOverdue)
	juneFee := f.addFee(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 1200, models.FeeStatusPending)

	upload := f.addUpload(t, 1200, time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), "REF-JUNE")

	outcome, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "")
	require.NoError(t, err)
	require.NotNil(t, outcome.Fee)
	assert.Equal(t, juneFee.ID, outcome.Fee.ID)
}

func TestApprove_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addFee(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), 800, models.FeeStatusPending)
	upload := f.addUpload(t, 800, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "")

	first, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "")
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)

	second, err := f.engine.Approve(testOrg, upload.ID, "admin-2", "")
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	require.NotNil(t, second.Invoice)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)
	require.NotNil(t, second.Payment)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)

	var invoiceCount, paymentCount int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(1) FROM invoices WHERE upload_id = ?", upload.ID).Scan(&invoiceCount))
	require.NoError(t, f.db.QueryRow("SELECT COUNT(1) FROM payment_records WHERE upload_id = ?", upload.ID).Scan(&paymentCount))
	assert.Equal(t, 1, invoiceCount)
	assert.Equal(t, 1, paymentCount)
}

func TestApprove_SettlesPendingInvoiceInSameMonth(t *testing.T) {
	f := newFixture(t)
	pending := &models.Invoice{
		ID:             uuid.NewString(),
		OrganizationID: testOrg,
		StudentID:      f.student.ID,
		InvoiceNumber:  "INV-MANUAL-1",
		Total:          1200,
		Status:         models.InvoiceStatusPending,
		DueDate:        time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.invoices.Create(nil, pending))

	upload := f.addUpload(t, 1200, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "REF-1")
	_, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "")
	require.NoError(t, err)

	var status string
	require.NoError(t, f.db.QueryRow("SELECT status FROM invoices WHERE id = ?", pending.ID).Scan(&status))
	assert.Equal(t, models.InvoiceStatusPaid, status)
}

func TestApprove_RollsBackWhenLedgerInsertFails(t *testing.T) {
	f := newFixture(t)
	fee := f.addFee(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), 1200, models.FeeStatusPending)
	upload := f.addUpload(t, 1200, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "")

	// Pre-existing ledger row for the same upload trips the unique index
	// inside the approval transaction.
	conflicting := &models.PaymentRecord{
		ID:             uuid.NewString(),
		OrganizationID: testOrg,
		StudentID:      f.student.ID,
		UploadID:       upload.ID,
		Amount:         1,
		AmountCents:    100,
		PaymentDate:    time.Now(),
	}
	require.NoError(t, f.payments.Create(nil, conflicting))

	_, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "")
	require.Error(t, err)

	// Nothing from the failed approval may stick.
	after, err := f.uploads.GetByID(testOrg, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusPending, after.Status)

	feeAfter, err := f.fees.GetByID(fee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPending, feeAfter.Status)

	invoice, err := f.invoices.GetByUploadID(upload.ID)
	require.NoError(t, err)
	assert.Nil(t, invoice)
}

func TestApprove_KeepsExplicitReference(t *testing.T) {
	f := newFixture(t)
	upload := f.addUpload(t, 450, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "EFT-20250610")

	outcome, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "")
	require.NoError(t, err)
	assert.Equal(t, "EFT-20250610", outcome.Payment.Reference)
	// No outstanding fee existed: payment is still recorded.
	assert.Nil(t, outcome.Fee)
	require.NotNil(t, outcome.Invoice)
}

func TestReject(t *testing.T) {
	f := newFixture(t)

	t.Run("pending upload is rejected", func(t *testing.T) {
		upload := f.addUpload(t, 100, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "R1")
		outcome, err := f.engine.Reject(testOrg, upload.ID, "admin-1", "amount does not match bank record")
		require.NoError(t, err)
		assert.Equal(t, models.UploadStatusRejected, outcome.Upload.Status)

		// No accounting artifacts for rejected uploads.
		invoice, err := f.invoices.GetByUploadID(upload.ID)
		require.NoError(t, err)
		assert.Nil(t, invoice)
	})

	t.Run("rejecting twice is idempotent", func(t *testing.T) {
		upload := f.addUpload(t, 110, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "R2")
		_, err := f.engine.Reject(testOrg, upload.ID, "admin-1", "")
		require.NoError(t, err)
		outcome, err := f.engine.Reject(testOrg, upload.ID, "admin-1", "")
		require.NoError(t, err)
		assert.True(t, outcome.AlreadyProcessed)
	})

	t.Run("approved upload cannot be rejected", func(t *testing.T) {
		upload := f.addUpload(t, 120, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "R3")
		_, err := f.engine.Approve(testOrg, upload.ID, "admin-1", "")
		require.NoError(t, err)
		_, err = f.engine.Reject(testOrg, upload.ID, "admin-1", "")
		assert.ErrorIs(t, err, ErrUploadApproved)
	})

	t.Run("rejected upload cannot be approved", func(t *testing.T) {
		upload := f.addUpload(t, 130, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "R4")
		_, err := f.engine.Reject(testOrg, upload.ID, "admin-1", "")
		require.NoError(t, err)
		_, err = f.engine.Approve(testOrg, upload.ID, "admin-1", "")
		assert.ErrorIs(t, err, ErrUploadRejected)
	})
}

func TestApprove_UnknownUpload(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Approve(testOrg, uuid.NewString(), "admin-1", "")
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestInvoiceNumber(t *testing.T) {
	uploadID := "a1b2c3d4-0000-0000-0000-000000000000"
	got := InvoiceNumber(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), uploadID)
	assert.Equal(t, "INV-202506-A1B2", got)
}

func TestPaymentReference_Fallback(t *testing.T) {
	upload := &models.POPUpload{ID: "a1b2c3d4-0000-0000-0000-000000000000"}
	assert.Equal(t, "POP-a1b2c3d4", PaymentReference(upload))

	upload.PaymentReference = "REF100"
	assert.Equal(t, "REF100", PaymentReference(upload))
}
