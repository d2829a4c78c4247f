// Package rbac is the single place project-level permissions are defined.
// Handlers never compare role strings inline; they ask Can.
package rbac

type Role string
type Action string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

const (
	ActionViewProject   Action = "view_project"
	ActionManageMembers Action = "manage_members"
	ActionDeleteProject Action = "delete_project"
	ActionCreateTask    Action = "create_task"
	ActionEditTask      Action = "edit_task"
	ActionDeleteTask    Action = "delete_task"
	ActionComment       Action = "comment"
)

// Can reports whether a project member with the given role may perform the
// action. Callers must have established membership first; Can never grants
// anything to non-members.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser, RoleGuest:
		return action == ActionViewProject || action == ActionComment || action == ActionEditTask
	default:
		return false
	}
}

// Normalize maps a stored role string onto the enumerated set. Membership
// roles are free-form on the wire; anything unrecognized gets the least
// privileged role rather than failing.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleUser, RoleGuest:
		return Role(role)
	default:
		return RoleGuest
	}
}
