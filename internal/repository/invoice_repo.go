package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/edudashpro/finance-service/internal/models"
	"go.uber.org/zap"
)

// InvoiceRepository handles invoice and invoice line item rows
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `id, organization_id, student_id, upload_id, invoice_number,
	bill_to_name, bill_to_email, subtotal, total, paid_amount, status,
	due_date, paid_date, statement_path, created_at`

// Create inserts a new invoice
func (r *InvoiceRepository) Create(tx *sql.Tx, invoice *models.Invoice) error {
	invoice.CreatedAt = time.Now().UTC()
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusPending
	}

	var paidDate interface{}
	if invoice.PaidDate != nil {
		paidDate = invoice.PaidDate.UTC()
	}

	query := `
		INSERT INTO invoices (
			id, organization_id, student_id, upload_id, invoice_number,
			bill_to_name, bill_to_email, subtotal, total, paid_amount, status,
			due_date, paid_date, statement_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := on(r.db, tx).Exec(query,
		invoice.ID,
		invoice.OrganizationID,
		invoice.StudentID,
		invoice.UploadID,
		invoice.InvoiceNumber,
		invoice.BillToName,
		invoice.BillToEmail,
		invoice.Subtotal,
		invoice.Total,
		invoice.PaidAmount,
		invoice.Status,
		invoice.DueDate.UTC(),
		paidDate,
		invoice.StatementPath,
		invoice.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("invoice_number", invoice.InvoiceNumber), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// CreateItem inserts an invoice line item
func (r *InvoiceRepository) CreateItem(tx *sql.Tx, item *models.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := on(r.db, tx).Exec(query,
		item.ID,
		item.InvoiceID,
		item.Description,
		item.Quantity,
		item.UnitPrice,
		item.Amount,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice item", zap.String("invoice_id", item.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to create invoice item: %w", err)
	}
	return nil
}

// GetByUploadID returns the invoice synthesized for an upload, if any.
// The approval idempotency guard checks this before creating records.
func (r *InvoiceRepository) GetByUploadID(uploadID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE upload_id = ?`
	return r.scanOne(r.db.QueryRow(query, uploadID))
}

// FindPendingInWindow returns a pending invoice for the student due inside
// the window. This is the loose secondary match of the reconciliation flow:
// due-date month only, no amount comparison.
func (r *InvoiceRepository) FindPendingInWindow(organizationID, studentID string, start, end time.Time) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE organization_id = ? AND student_id = ? AND status = ?
			AND due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC
		LIMIT 1
	`
	row := r.db.QueryRow(query, organizationID, studentID,
		models.InvoiceStatusPending, start.UTC(), end.UTC())
	return r.scanOne(row)
}

// MarkPaid settles an invoice
func (r *InvoiceRepository) MarkPaid(tx *sql.Tx, id string, paidAmount float64, paidDate time.Time) error {
	query := `
		UPDATE invoices
		SET status = ?, paid_amount = ?, paid_date = ?
		WHERE id = ?
	`
	_, err := on(r.db, tx).Exec(query, models.InvoiceStatusPaid, paidAmount, paidDate.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark invoice paid", zap.String("invoice_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	return nil
}

// UpdateStatementPath records the generated statement file for an invoice
func (r *InvoiceRepository) UpdateStatementPath(id, path string) error {
	_, err := r.db.Exec("UPDATE invoices SET statement_path = ? WHERE id = ?", path, id)
	if err != nil {
		r.logger.Error("Failed to update statement path", zap.String("invoice_id", id), zap.Error(err))
		return fmt.Errorf("failed to update statement path: %w", err)
	}
	return nil
}

// ItemsByInvoice returns the line items of an invoice
func (r *InvoiceRepository) ItemsByInvoice(invoiceID string) ([]*models.InvoiceItem, error) {
	rows, err := r.db.Query(
		"SELECT id, invoice_id, description, quantity, unit_price, amount FROM invoice_items WHERE invoice_id = ?",
		invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	var items []*models.InvoiceItem
	for rows.Next() {
		var item models.InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *InvoiceRepository) scanOne(row *sql.Row) (*models.Invoice, error) {
	var invoice models.Invoice
	var paidDate sql.NullTime

	err := row.Scan(
		&invoice.ID,
		&invoice.OrganizationID,
		&invoice.StudentID,
		&invoice.UploadID,
		&invoice.InvoiceNumber,
		&invoice.BillToName,
		&invoice.BillToEmail,
		&invoice.Subtotal,
		&invoice.Total,
		&invoice.PaidAmount,
		&invoice.Status,
		&invoice.DueDate,
		&paidDate,
		&invoice.StatementPath,
		&invoice.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to scan invoice", zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if paidDate.Valid {
		invoice.PaidDate = &paidDate.Time
	}
	return &invoice, nil
}
