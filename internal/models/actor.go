package models

import (
	"strings"
	"time"
)

// Role is an actor's capability tier within a tenant.
type Role string

const (
	RoleOwnerAdmin  Role = "OWNER_ADMIN"
	RoleSupervisor  Role = "SUPERVISOR"
	RoleContributor Role = "CONTRIBUTOR"
	RoleAuxiliary   Role = "AUXILIARY"
)

var roleAliases = map[string]Role{
	"owner_admin": RoleOwnerAdmin,
	"principal":   RoleOwnerAdmin,
	"supervisor":  RoleSupervisor,
	"admin":       RoleSupervisor,
	"contributor": RoleContributor,
	"teacher":     RoleContributor,
	"auxiliary":   RoleAuxiliary,
	"support":     RoleAuxiliary,
	"clerk":       RoleAuxiliary,
}

// ParseRole accepts canonical role names as well as the school vocabulary
// (principal, admin, teacher, support, clerk).
func ParseRole(raw string) (Role, bool) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	return role, ok
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwnerAdmin, RoleSupervisor, RoleContributor, RoleAuxiliary:
		return true
	}
	return false
}

// Actor is a user account belonging to exactly one tenant.
type Actor struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         Role      `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ActorContext is the resolved identity of the caller for one request. A nil
// *ActorContext stands for an anonymous caller.
type ActorContext struct {
	ActorID  string `json:"actor_id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// IsOwnerAdmin reports whether the caller holds override authority.
func (a *ActorContext) IsOwnerAdmin() bool {
	return a != nil && a.Role == RoleOwnerAdmin
}

// ActorFilter narrows actor listings within a tenant.
type ActorFilter struct {
	Role     *Role
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
