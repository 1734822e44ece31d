package user

// Capability is a named ability a role may hold.
type Capability string

const (
	CanApproveProject      Capability = "canApproveProject"
	CanAddTimeline         Capability = "canAddTimeline"
	CanAssignSupervisors   Capability = "canAssignSupervisors"
	CanCreateProject       Capability = "canCreateProject"
	CanReserveProject      Capability = "canReserveProject"
	CanManageUsers         Capability = "canManageUsers"
	CanViewAllReservations Capability = "canViewAllReservations"
)

// rolePermissions is the fixed role -> capability table.
// Every role has an entry, even if empty; absent capabilities read as false.
// Immutable after process start.
var rolePermissions = map[string]map[Capability]bool{
	RoleAdmin: {
		CanApproveProject:      true,
		CanAddTimeline:         true,
		CanAssignSupervisors:   true,
		CanCreateProject:       true,
		CanManageUsers:         true,
		CanViewAllReservations: true,
	},
	RoleProjectManager: {
		CanApproveProject:      true,
		CanAddTimeline:         true,
		CanAssignSupervisors:   true,
		CanCreateProject:       true,
		CanViewAllReservations: true,
	},
	RoleSupervisor: {
		CanAddTimeline: true,
	},
	RoleLecturer: {
		CanCreateProject: true,
		CanAddTimeline:   true,
	},
	RoleInstructor: {
		CanAddTimeline: true,
	},
	RoleEmployer: {
		CanCreateProject: true,
	},
	RoleStudent: {
		CanReserveProject: true,
	},
}

// HasPermission reports whether role holds the given capability.
// Unknown roles and unknown capabilities answer false; it never panics.
func HasPermission(role string, c Capability) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return perms[c]
}
