package types

// Role identifies one of the three fixed conversational participants.
type Role string

const (
	// RoleInitiator opens topics, cracks jokes, drives energy.
	RoleInitiator Role = "initiator"
	// RoleReactor responds, rebuts, and builds on the initiator.
	RoleReactor Role = "reactor"
	// RoleModerator steers the conversation back on track.
	RoleModerator Role = "moderator"
)

// AllRoles returns the fixed cast in round-robin order.
func AllRoles() []Role {
	return []Role{RoleModerator, RoleInitiator, RoleReactor}
}

// Valid reports whether r is one of the three cast roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInitiator, RoleReactor, RoleModerator:
		return true
	}
	return false
}
