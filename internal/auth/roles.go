package auth

import "strings"

// Role is the access level carried in a token. Viewers read reports, statements and
// the rate card; operators also upload readings; admins also trigger runs.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// roleLevels lists the roles from least to most privileged.
var roleLevels = []Role{RoleViewer, RoleOperator, RoleAdmin}

// ParseRole accepts a role name in any case.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if role.level() == 0 {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Allows reports whether r may call an endpoint that needs required.
// Unknown roles allow nothing.
func (r Role) Allows(required Role) bool {
	level := r.level()
	return level > 0 && level >= required.level()
}

func (r Role) level() int {
	for i, role := range roleLevels {
		if role == r {
			return i + 1
		}
	}
	return 0
}
