package models

// Roles stored in User.Role.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Account statuses stored in User.Status. Only admins move a user between them.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusDisabled = "disabled"
)

// ToggledStatus is the status an admin toggle moves an account to: approved
// accounts are disabled, everything else becomes approved.
func ToggledStatus(status string) string {
	if status == StatusApproved {
		return StatusDisabled
	}
	return StatusApproved
}
