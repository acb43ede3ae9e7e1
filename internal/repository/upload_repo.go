package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/edudashpro/finance-service/internal/models"
	"go.uber.org/zap"
)

// UploadRepository handles proof-of-payment upload rows
type UploadRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository(db *sql.DB, logger *zap.Logger) *UploadRepository {
	return &UploadRepository{
		db:     db,
		logger: logger,
	}
}

const uploadColumns = `id, organization_id, student_id, uploaded_by, upload_type,
	payment_amount, payment_method, payment_date, payment_reference,
	file_path, file_name, file_size, file_type, status,
	reviewed_by, reviewed_at, review_note, created_at, updated_at`

// Create inserts a new upload in pending state
func (r *UploadRepository) Create(tx *sql.Tx, upload *models.POPUpload) error {
	now := time.Now().UTC()
	upload.CreatedAt = now
	upload.UpdatedAt = now
	if upload.Status == "" {
		upload.Status = models.UploadStatusPending
	}

	query := `
		INSERT INTO pop_uploads (
			id, organization_id, student_id, uploaded_by, upload_type,
			payment_amount, payment_method, payment_date, payment_reference,
			file_path, file_name, file_size, file_type, status,
			reviewed_by, review_note, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var amount interface{}
	if upload.PaymentAmount != nil {
		amount = *upload.PaymentAmount
	}
	var paymentDate interface{}
	if upload.PaymentDate != nil {
		paymentDate = upload.PaymentDate.UTC()
	}

	_, err := on(r.db, tx).Exec(query,
		upload.ID,
		upload.OrganizationID,
		upload.StudentID,
		upload.UploadedBy,
		upload.UploadType,
		amount,
		upload.PaymentMethod,
		paymentDate,
		upload.PaymentReference,
		upload.FilePath,
		upload.FileName,
		upload.FileSize,
		upload.FileType,
		upload.Status,
		upload.ReviewedBy,
		upload.ReviewNote,
		upload.CreatedAt,
		upload.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create upload", zap.String("upload_id", upload.ID), zap.Error(err))
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

// GetByID retrieves an upload by ID within an organization
func (r *UploadRepository) GetByID(organizationID, id string) (*models.POPUpload, error) {
	query := `SELECT ` + uploadColumns + ` FROM pop_uploads WHERE organization_id = ? AND id = ?`
	return r.scanOne(r.db.QueryRow(query, organizationID, id))
}

// FindByReference looks for any pending or approved upload in the
// organization carrying the given payment reference.
func (r *UploadRepository) FindByReference(organizationID, reference string) (*models.POPUpload, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM pop_uploads
		WHERE organization_id = ? AND payment_reference = ? AND payment_reference != ''
			AND status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.db.QueryRow(query, organizationID, reference,
		models.UploadStatusPending, models.UploadStatusApproved)
	return r.scanOne(row)
}

// FindRecentSameAmount looks for a payment-proof upload for the same
// student with an identical amount created since the given time.
func (r *UploadRepository) FindRecentSameAmount(organizationID, studentID string, amount float64, since time.Time) (*models.POPUpload, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM pop_uploads
		WHERE organization_id = ? AND student_id = ?
			AND upload_type = ?
			AND status IN (?, ?)
			AND payment_amount = ?
			AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.db.QueryRow(query, organizationID, studentID,
		models.UploadTypePaymentProof,
		models.UploadStatusPending, models.UploadStatusApproved,
		amount, since.UTC())
	return r.scanOne(row)
}

// List returns uploads for an organization, optionally filtered by status
// and student, newest first.
func (r *UploadRepository) List(organizationID, status, studentID string, limit, offset int) ([]*models.POPUpload, error) {
	query := `SELECT ` + uploadColumns + ` FROM pop_uploads WHERE organization_id = ?`
	args := []interface{}{organizationID}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if studentID != "" {
		query += ` AND student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list uploads", zap.String("organization_id", organizationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*models.POPUpload
	for rows.Next() {
		upload, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

// UpdateReview transitions an upload's status and records the reviewer
func (r *UploadRepository) UpdateReview(tx *sql.Tx, id, status, reviewedBy, note string, reviewedAt time.Time) error {
	query := `
		UPDATE pop_uploads
		SET status = ?, reviewed_by = ?, reviewed_at = ?, review_note = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := on(r.db, tx).Exec(query, status, reviewedBy, reviewedAt.UTC(), note, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update upload review", zap.String("upload_id", id), zap.Error(err))
		return fmt.Errorf("failed to update upload review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("upload not found: %s", id)
	}
	return nil
}

// ExistsByFilePath reports whether any upload row references the stored
// file path. The orphan reaper uses this to find files with no record.
func (r *UploadRepository) ExistsByFilePath(filePath string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(1) FROM pop_uploads WHERE file_path = ?", filePath).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check file path: %w", err)
	}
	return count > 0, nil
}

func (r *UploadRepository) scanOne(row *sql.Row) (*models.POPUpload, error) {
	upload, err := scanUpload(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to scan upload", zap.Error(err))
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

func (r *UploadRepository) scanRow(rows *sql.Rows) (*models.POPUpload, error) {
	upload, err := scanUpload(rows.Scan)
	if err != nil {
		r.logger.Error("Failed to scan upload row", zap.Error(err))
		return nil, fmt.Errorf("failed to scan upload: %w", err)
	}
	return upload, nil
}

func scanUpload(scan func(dest ...interface{}) error) (*models.POPUpload, error) {
	var upload models.POPUpload
	var amount sql.NullFloat64
	var paymentDate, reviewedAt sql.NullTime

	err := scan(
		&upload.ID,
		&upload.OrganizationID,
		&upload.StudentID,
		&upload.UploadedBy,
		&upload.UploadType,
		&amount,
		&upload.PaymentMethod,
		&paymentDate,
		&upload.PaymentReference,
		&upload.FilePath,
		&upload.FileName,
		&upload.FileSize,
		&upload.FileType,
		&upload.Status,
		&upload.ReviewedBy,
		&reviewedAt,
		&upload.ReviewNote,
		&upload.CreatedAt,
		&upload.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if amount.Valid {
		upload.PaymentAmount = &amount.Float64
	}
	if paymentDate.Valid {
		upload.PaymentDate = &paymentDate.Time
	}
	if reviewedAt.Valid {
		upload.ReviewedAt = &reviewedAt.Time
	}
	return &upload, nil
}
