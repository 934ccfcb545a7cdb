package access

// Role is a user role as stored on the account and carried in tokens.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleEditor   Role = "editor"
	RoleCustomer Role = "customer"
)

// KnownRole reports whether r is one of the roles accounts may hold.
func KnownRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleEditor, RoleCustomer:
		return true
	}
	return false
}

// Principal is the actor behind a request. The zero value is anonymous.
type Principal struct {
	UserID uint
	Roles  []Role
}

func Anonymous() Principal {
	return Principal{}
}

func User(id uint, roles ...Role) Principal {
	return Principal{UserID: id, Roles: roles}
}

// System is the principal used by trusted server-side callers such as
// payment webhooks and the admin seed. It is an admin with no user id.
func System() Principal {
	return Principal{Roles: []Role{RoleAdmin}}
}

func (p Principal) Authenticated() bool {
	return p.UserID != 0 || p.IsAdmin()
}

func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}
