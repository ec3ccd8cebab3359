package auth

import (
	"strings"
	"time"
)

// Role is the single access level assigned to a user.
type Role string

const (
	RoleSystemAdmin   Role = "system_admin"
	RoleDomainManager Role = "domain_manager"
	RoleAdmin         Role = "admin"
	RoleUser          Role = "user"
	RoleViewer        Role = "viewer"
	RoleDemo          Role = "demo"
)

// ValidRole reports whether the value is one of the enumerated roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSystemAdmin, RoleDomainManager, RoleAdmin, RoleUser, RoleViewer, RoleDemo:
		return true
	}
	return false
}

// NormalizeRole lower-cases and trims a raw role string.
func NormalizeRole(raw string) Role {
	return Role(strings.TrimSpace(strings.ToLower(raw)))
}

// User is an account scoped to exactly one organization. The password hash
// never leaves the server: the json tag keeps it out of every response body.
type User struct {
	ID                 string     `json:"id"`
	OrganizationID     string     `json:"organization_id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	PasswordHash       string     `json:"-"`
	Role               Role       `json:"role"`
	Active             bool       `json:"active"`
	MustChangePassword bool       `json:"must_change_password"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	DataConsentAt      *time.Time `json:"data_consent_at,omitempty"`
	TransferConsentAt  *time.Time `json:"transfer_consent_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// RequestMeta carries per-request attributes recorded in audit events.
// Passwords never travel through it.
type RequestMeta struct {
	IP        string
	UserAgent string
}
