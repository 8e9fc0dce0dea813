package models

import "time"

// UserRole distinguishes the supervising authority from school tenants. The
// tenant itself is carried separately in SchoolID.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleSchool UserRole = "SCHOOL"
)

// User represents a provisioned portal account. There is no self-registration;
// accounts are created by the provisioning CLI only.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	SchoolID     *string    `db:"school_id" json:"school_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// School is one of the supervised schools. Name is the display label used for
// consolidation sheet names.
type School struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}
