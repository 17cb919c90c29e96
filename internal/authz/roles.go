package authz

const (
	RoleClient = 10
	RoleWriter = 20
	RoleAdmin  = 50
)

func IsStaff(roleID int) bool {
	return roleID == RoleWriter || roleID == RoleAdmin
}

func IsValidRole(roleID int) bool {
	return roleID == RoleClient || roleID == RoleWriter || roleID == RoleAdmin
}
