package domain

type Role string

const (
	RoleUser     Role = "user"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"

	// RoleService marks machine callers such as the external processor
	// reporting progress. Service tokens carry no document ownership.
	RoleService Role = "service"
)

// Actor is the authenticated caller as established by the identity provider.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// CanApprove reports whether the actor holds reviewer-or-above privilege.
func (a Actor) CanApprove() bool {
	return a.Role == RoleReviewer || a.Role == RoleAdmin
}
