package models

// UserRole represents the marketplace roles carried in access tokens.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleProvider UserRole = "provider"
	RoleFounder  UserRole = "founder"
)

// SystemActor is recorded as reviewer for automated transitions.
const SystemActor = "system"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
