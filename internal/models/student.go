package models

import "time"

// Student is the minimal student record the finance flow needs: identity,
// tenant ownership and the guardian billing contact.
type Student struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	GuardianName   string    `json:"guardian_name,omitempty"`
	GuardianEmail  string    `json:"guardian_email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FullName returns the student's display name
func (s *Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// OrganizationMember links a user account to an organization. Created
// right after account signup; the auth provider is eventually consistent,
// so creation goes through the retry policy.
type OrganizationMember struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Member role constants
const (
	MemberRoleAdmin   = "admin"
	MemberRoleTeacher = "teacher"
	MemberRoleParent  = "parent"
)

// Member status constants
const (
	MemberStatusActive  = "active"
	MemberStatusPending = "pending"
)
