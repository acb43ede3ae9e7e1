package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/edudashpro/finance-service/internal/models"
	"go.uber.org/zap"
)

// FeeRepository handles student fee rows
type FeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFeeRepository creates a new fee repository
func NewFeeRepository(db *sql.DB, logger *zap.Logger) *FeeRepository {
	return &FeeRepository{
		db:     db,
		logger: logger,
	}
}

const feeColumns = `id, organization_id, student_id, description, due_date,
	amount, final_amount, status, amount_paid, amount_outstanding, paid_date,
	created_at, updated_at`

// Create inserts a new fee
func (r *FeeRepository) Create(tx *sql.Tx, fee *models.StudentFee) error {
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	if fee.Status == "" {
		fee.Status = models.FeeStatusPending
	}

	var finalAmount interface{}
	if fee.FinalAmount != nil {
		finalAmount = *fee.FinalAmount
	}

	query := `
		INSERT INTO student_fees (
			id, organization_id, student_id, description, due_date,
			amount, final_amount, status, amount_paid, amount_outstanding,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := on(r.db, tx).Exec(query,
		fee.ID,
		fee.OrganizationID,
		fee.StudentID,
		fee.Description,
		fee.DueDate.UTC(),
		fee.Amount,
		finalAmount,
		fee.Status,
		fee.AmountPaid,
		fee.AmountOutstanding,
		fee.CreatedAt,
		fee.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create fee", zap.String("fee_id", fee.ID), zap.Error(err))
		return fmt.Errorf("failed to create fee: %w", err)
	}
	return nil
}

// GetByID retrieves a fee by ID
func (r *FeeRepository) GetByID(id string) (*models.StudentFee, error) {
	query := `SELECT ` + feeColumns + ` FROM student_fees WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// FindPaidInWindow returns a fee for the student already marked paid whose
// due date falls in the window. Used by the period-already-paid check.
func (r *FeeRepository) FindPaidInWindow(organizationID, studentID string, start, end time.Time) (*models.StudentFee, error) {
	query := `
		SELECT ` + feeColumns + `
		FROM student_fees
		WHERE organization_id = ? AND student_id = ? AND status = ?
			AND due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC
		LIMIT 1
	`
	row := r.db.QueryRow(query, organizationID, studentID, models.FeeStatusPaid,
		start.UTC(), end.UTC())
	return r.scanOne(row)
}

// FindOutstandingInWindow returns the student's outstanding fees with due
// dates inside the window, ordered by due date. First pass of fee matching.
func (r *FeeRepository) FindOutstandingInWindow(organizationID, studentID string, start, end time.Time) ([]*models.StudentFee, error) {
	query := `
		SELECT ` + feeColumns + `
		FROM student_fees
		WHERE organization_id = ? AND student_id = ?
			AND status IN (` + outstandingPlaceholders() + `)
			AND due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC, id ASC
	`
	args := []interface{}{organizationID, studentID}
	args = append(args, outstandingArgs()...)
	args = append(args, start.UTC(), end.UTC())
	return r.queryFees(query, args...)
}

// FindOldestOutstanding returns the single oldest outstanding fee by due
// date. Fallback pass: payment dates and billing-period due dates often
// disagree by a few days at month boundaries, and crediting some
// obligation beats leaving a confirmed payment unreconciled.
func (r *FeeRepository) FindOldestOutstanding(organizationID, studentID string) (*models.StudentFee, error) {
	query := `
		SELECT ` + feeColumns + `
		FROM student_fees
		WHERE organization_id = ? AND student_id = ?
			AND status IN (` + outstandingPlaceholders() + `)
		ORDER BY due_date ASC, id ASC
		LIMIT 1
	`
	args := []interface{}{organizationID, studentID}
	args = append(args, outstandingArgs()...)
	return r.scanOne(r.db.QueryRow(query, args...))
}

// ListByStudent returns all fees for a student, newest due date first
func (r *FeeRepository) ListByStudent(organizationID, studentID string) ([]*models.StudentFee, error) {
	query := `
		SELECT ` + feeColumns + `
		FROM student_fees
		WHERE organization_id = ? AND student_id = ?
		ORDER BY due_date DESC
	`
	return r.queryFees(query, organizationID, studentID)
}

// MarkPaid settles a fee in full: paid status, zero outstanding
func (r *FeeRepository) MarkPaid(tx *sql.Tx, id string, amountPaid float64, paidDate time.Time) error {
	query := `
		UPDATE student_fees
		SET status = ?, amount_paid = ?, amount_outstanding = 0, paid_date = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := on(r.db, tx).Exec(query, models.FeeStatusPaid, amountPaid,
		paidDate.UTC(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark fee paid", zap.String("fee_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark fee paid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fee not found: %s", id)
	}
	return nil
}

// MarkOverdueBefore flips pending fees past their due date to overdue.
// Returns the number of fees transitioned.
func (r *FeeRepository) MarkOverdueBefore(cutoff time.Time) (int64, error) {
	query := `
		UPDATE student_fees
		SET status = ?, updated_at = ?
		WHERE status = ? AND due_date < ?
	`
	result, err := r.db.Exec(query, models.FeeStatusOverdue, time.Now().UTC(),
		models.FeeStatusPending, cutoff.UTC())
	if err != nil {
		r.logger.Error("Failed to mark overdue fees", zap.Error(err))
		return 0, fmt.Errorf("failed to mark overdue fees: %w", err)
	}
	return result.RowsAffected()
}

// OutstandingTotal sums amount_outstanding across a student's open fees
func (r *FeeRepository) OutstandingTotal(organizationID, studentID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount_outstanding), 0)
		FROM student_fees
		WHERE organization_id = ? AND student_id = ?
			AND status IN (` + outstandingPlaceholders() + `)
	`
	args := []interface{}{organizationID, studentID}
	args = append(args, outstandingArgs()...)

	var total float64
	if err := r.db.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum outstanding fees: %w", err)
	}
	return total, nil
}

func (r *FeeRepository) queryFees(query string, args ...interface{}) ([]*models.StudentFee, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to query fees", zap.Error(err))
		return nil, fmt.Errorf("failed to query fees: %w", err)
	}
	defer rows.Close()

	var fees []*models.StudentFee
	for rows.Next() {
		fee, err := scanFee(rows.Scan)
		if err != nil {
			r.logger.Error("Failed to scan fee row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan fee: %w", err)
		}
		fees = append(fees, fee)
	}
	return fees, rows.Err()
}

func (r *FeeRepository) scanOne(row *sql.Row) (*models.StudentFee, error) {
	fee, err := scanFee(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to scan fee", zap.Error(err))
		return nil, fmt.Errorf("failed to get fee: %w", err)
	}
	return fee, nil
}

func scanFee(scan func(dest ...interface{}) error) (*models.StudentFee, error) {
	var fee models.StudentFee
	var finalAmount sql.NullFloat64
	var paidDate sql.NullTime

	err := scan(
		&fee.ID,
		&fee.OrganizationID,
		&fee.StudentID,
		&fee.Description,
		&fee.DueDate,
		&fee.Amount,
		&finalAmount,
		&fee.Status,
		&fee.AmountPaid,
		&fee.AmountOutstanding,
		&paidDate,
		&fee.CreatedAt,
		&fee.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if finalAmount.Valid {
		fee.FinalAmount = &finalAmount.Float64
	}
	if paidDate.Valid {
		fee.PaidDate = &paidDate.Time
	}
	return &fee, nil
}

func outstandingPlaceholders() string {
	return strings.TrimSuffix(strings.Repeat("?, ", len(models.OutstandingFeeStatuses)), ", ")
}

func outstandingArgs() []interface{} {
	args := make([]interface{}, len(models.OutstandingFeeStatuses))
	for i, s := range models.OutstandingFeeStatuses {
		args[i] = s
	}
	return args
}
