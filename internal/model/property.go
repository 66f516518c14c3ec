package model

// Role gates workflow transitions. Roles arrive with the request; verifying
// them is the caller's concern, interpreting them is ours.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleCampWorker Role = "camp_worker"
)

// CanReview reports whether the role may approve, request changes on, or
// reject submitted orders.
func (r Role) CanReview() bool {
	return r == RoleAdmin || r == RoleSupervisor
}

// Actor is the authenticated caller as the upstream gateway presents it.
type Actor struct {
	UserID     string
	Role       Role
	PropertyID *string
}

// CanAccessProperty reports whether the actor may act on the given property.
// Camp workers are bound to their own property; supervisors and admins roam.
func (a Actor) CanAccessProperty(propertyID string) bool {
	if a.Role.CanReview() {
		return true
	}
	return a.PropertyID != nil && *a.PropertyID == propertyID
}

// Property is a camp site. Managed elsewhere; this service only reads it for
// order numbering and display.
type Property struct {
	BaseModel
	Name     string `db:"name" json:"name"`
	Code     string `db:"code" json:"code"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Supplier rows are managed elsewhere; receipt reconciliation matches against
// them by name and aliases reference them.
type Supplier struct {
	BaseModel
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

type User struct {
	BaseModel
	Email      string  `db:"email" json:"email"`
	FullName   string  `db:"full_name" json:"full_name"`
	Role       Role    `db:"role" json:"role"`
	PropertyID *string `db:"property_id" json:"property_id"`
	IsActive   bool    `db:"is_active" json:"is_active"`
}
