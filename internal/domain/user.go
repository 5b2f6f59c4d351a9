package domain

import "time"

// Role enumerates the organisational roles that drive visibility.
type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleSupervisor       Role = "SUPERVISOR"
	RoleJuniorSupervisor Role = "JUNIOR_SUPERVISOR"
	RoleTeamMember       Role = "TEAM_MEMBER"
)

// Roles lists every known role, most senior first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleSupervisor, RoleJuniorSupervisor, RoleTeamMember}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleJuniorSupervisor, RoleTeamMember:
		return true
	}
	return false
}

// User is a member of the organisation who can own tasks, logs and events.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	ManagerID    *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
