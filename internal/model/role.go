package model

type UserRole int8

const (
	UserRoleDefault = UserRole(iota)
	UserRoleElevated
	UserRoleAdmin
)

func ParseUserRole(s string) UserRole {
	switch s {
	case "admin":
		return UserRoleAdmin
	case "elevated":
		return UserRoleElevated
	default:
		return UserRoleDefault
	}
}

func (r UserRole) String() string {
	switch r {
	case UserRoleAdmin:
		return "admin"
	case UserRoleElevated:
		return "elevated"
	default:
		return "default"
	}
}

func (r UserRole) AtLeast(required UserRole) bool {
	return r >= required
}
