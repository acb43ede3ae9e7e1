package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/edudashpro/finance-service/internal/models"
	"go.uber.org/zap"
)

// MemberRepository handles organization membership rows
type MemberRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *sql.DB, logger *zap.Logger) *MemberRepository {
	return &MemberRepository{
		db:     db,
		logger: logger,
	}
}

// ErrMemberExists signals that the user already belongs to the organization
var ErrMemberExists = fmt.Errorf("member already exists")

// Create inserts a membership row. A unique-constraint hit maps to
// ErrMemberExists so the retrying caller can treat it as success.
func (r *MemberRepository) Create(member *models.OrganizationMember) error {
	member.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO organization_members (id, organization_id, user_id, role, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		member.ID,
		member.OrganizationID,
		member.UserID,
		member.Role,
		member.Status,
		member.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrMemberExists
		}
		r.logger.Error("Failed to create member",
			zap.String("user_id", member.UserID),
			zap.String("organization_id", member.OrganizationID),
			zap.Error(err))
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetByUser retrieves a membership by user within an organization
func (r *MemberRepository) GetByUser(organizationID, userID string) (*models.OrganizationMember, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, created_at
		FROM organization_members
		WHERE organization_id = ? AND user_id = ?
	`
	var member models.OrganizationMember
	err := r.db.QueryRow(query, organizationID, userID).Scan(
		&member.ID,
		&member.OrganizationID,
		&member.UserID,
		&member.Role,
		&member.Status,
		&member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get member", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}
