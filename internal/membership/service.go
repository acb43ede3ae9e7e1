// Package membership creates organization-member rows after account
// signup. The auth provider is eventually consistent, so creation runs
// under the retry policy instead of failing the signup on the first miss.
package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/models"
	"github.com/edudashpro/finance-service/internal/repository"
	"github.com/edudashpro/finance-service/internal/retry"
)

// Service creates organization memberships
type Service struct {
	members *repository.MemberRepository
	policy  retry.Policy
	logger  *zap.Logger
}

// NewService creates a membership service using the standard retry policy
func NewService(members *repository.MemberRepository, logger *zap.Logger) *Service {
	return &Service{
		members: members,
		policy:  retry.MembershipPolicy(),
		logger:  logger,
	}
}

// CreateMember adds userID to the organization with the given role. An
// existing membership is treated as success and returned as-is, so a
// retried signup never fails on its own earlier attempt.
func (s *Service) CreateMember(ctx context.Context, organizationID, userID, role string) (*models.OrganizationMember, error) {
	if role == "" {
		role = models.MemberRoleParent
	}

	member := &models.OrganizationMember{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		Status:         models.MemberStatusActive,
	}

	err := s.policy.Do(ctx, func() error {
		return s.members.Create(member)
	})
	if errors.Is(err, repository.ErrMemberExists) {
		existing, getErr := s.members.GetByUser(organizationID, userID)
		if getErr != nil {
			return nil, getErr
		}
		if existing != nil {
			s.logger.Info("Membership already present",
				zap.String("organization_id", organizationID),
				zap.String("user_id", userID))
			return existing, nil
		}
		return nil, fmt.Errorf("member reported existing but not found")
	}
	if err != nil {
		s.logger.Error("Failed to create membership",
			zap.String("organization_id", organizationID),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	s.logger.Info("Membership created",
		zap.String("organization_id", organizationID),
		zap.String("user_id", userID),
		zap.String("role", role))
	return member, nil
}
