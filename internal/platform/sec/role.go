// Copyright (c) 2026 1move Community. All rights reserved.

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
//
// The set is closed: adding a role is a compile-time-visible change here,
// never a new magic string scattered through handlers.
type UserRole string

const (
	// Unrestricted system access: approves affiliates, manages requests
	RoleAdmin UserRole = "admin"

	// Approved partner with a unique tracking link and recruited members
	RoleAffiliate UserRole = "affiliate"

	// Member recruited through an affiliate's tracking link
	RoleReferral UserRole = "referral"
)

// IsValid reports whether the role is one of the known values.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleAffiliate, RoleReferral:
		return true
	}
	return false
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-30) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 30
	case RoleAffiliate:
		return 20
	case RoleReferral:
		return 10
	default:
		return 0
	}
}
