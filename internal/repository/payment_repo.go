package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/edudashpro/finance-service/internal/models"
	"go.uber.org/zap"
)

// PaymentRepository handles payment ledger rows
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) *PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new payment record
func (r *PaymentRepository) Create(tx *sql.Tx, payment *models.PaymentRecord) error {
	payment.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO payment_records (
			id, organization_id, student_id, upload_id, fee_id, invoice_id,
			amount, amount_cents, method, reference, payment_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := on(r.db, tx).Exec(query,
		payment.ID,
		payment.OrganizationID,
		payment.StudentID,
		payment.UploadID,
		payment.FeeID,
		payment.InvoiceID,
		payment.Amount,
		payment.AmountCents,
		payment.Method,
		payment.Reference,
		payment.PaymentDate.UTC(),
		payment.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment record", zap.String("upload_id", payment.UploadID), zap.Error(err))
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

// GetByUploadID returns the ledger entry created for an upload, if any
func (r *PaymentRepository) GetByUploadID(uploadID string) (*models.PaymentRecord, error) {
	query := `
		SELECT id, organization_id, student_id, upload_id, fee_id, invoice_id,
			amount, amount_cents, method, reference, payment_date, created_at
		FROM payment_records
		WHERE upload_id = ?
	`
	var payment models.PaymentRecord
	err := r.db.QueryRow(query, uploadID).Scan(
		&payment.ID,
		&payment.OrganizationID,
		&payment.StudentID,
		&payment.UploadID,
		&payment.FeeID,
		&payment.InvoiceID,
		&payment.Amount,
		&payment.AmountCents,
		&payment.Method,
		&payment.Reference,
		&payment.PaymentDate,
		&payment.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment by upload", zap.String("upload_id", uploadID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// Summary aggregates the ledger for an organization since a given time
func (r *PaymentRepository) Summary(organizationID string, since time.Time) (count int64, total float64, err error) {
	query := `
		SELECT COUNT(1), COALESCE(SUM(amount), 0)
		FROM payment_records
		WHERE organization_id = ? AND payment_date >= ?
	`
	if err := r.db.QueryRow(query, organizationID, since.UTC()).Scan(&count, &total); err != nil {
		r.logger.Error("Failed to summarize payments", zap.String("organization_id", organizationID), zap.Error(err))
		return 0, 0, fmt.Errorf("failed to summarize payments: %w", err)
	}
	return count, total, nil
}
