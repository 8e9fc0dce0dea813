package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	SchoolID *string  `json:"school_id,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens. SchoolID is the
// tenant partition for SCHOOL accounts and empty for the admin.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	SchoolID string   `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims belong to the supervising authority.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// OwnsSchool reports whether the claims belong to the given school tenant.
func (c *JWTClaims) OwnsSchool(schoolID string) bool {
	return c != nil && c.Role == RoleSchool && c.SchoolID != "" && c.SchoolID == schoolID
}
