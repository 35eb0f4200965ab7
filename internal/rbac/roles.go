package rbac

// Role names as stored on users and carried in access tokens.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleAgent      = "agent"
	RoleCustomer   = "customer"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsBillingContact reports whether a user with role receives billing notices.
func IsBillingContact(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
