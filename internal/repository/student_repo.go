package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/edudashpro/finance-service/internal/models"
	"go.uber.org/zap"
)

// StudentRepository handles student rows
type StudentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *sql.DB, logger *zap.Logger) *StudentRepository {
	return &StudentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new student
func (r *StudentRepository) Create(tx *sql.Tx, student *models.Student) error {
	student.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO students (id, organization_id, first_name, last_name, guardian_name, guardian_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := on(r.db, tx).Exec(query,
		student.ID,
		student.OrganizationID,
		student.FirstName,
		student.LastName,
		student.GuardianName,
		student.GuardianEmail,
		student.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create student", zap.String("student_id", student.ID), zap.Error(err))
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// GetByID retrieves a student within an organization
func (r *StudentRepository) GetByID(organizationID, id string) (*models.Student, error) {
	query := `
		SELECT id, organization_id, first_name, last_name, guardian_name, guardian_email, created_at
		FROM students
		WHERE organization_id = ? AND id = ?
	`
	var student models.Student
	err := r.db.QueryRow(query, organizationID, id).Scan(
		&student.ID,
		&student.OrganizationID,
		&student.FirstName,
		&student.LastName,
		&student.GuardianName,
		&student.GuardianEmail,
		&student.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get student", zap.String("student_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &student, nil
}
