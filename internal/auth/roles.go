package auth

import "fmt"

// Role is carried in admin tokens and checked per route
type Role string

const (
	// RoleAdmin may mutate accounts, balances and price lists
	RoleAdmin Role = "admin"

	// RoleViewer may read balances, transactions and the reconciliation queue
	RoleViewer Role = "viewer"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// HasPermission reports whether r satisfies required. Admin satisfies every role.
func (r Role) HasPermission(required Role) bool {
	return r == RoleAdmin || r == required
}

// ParseRole converts a flag or claim value into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
