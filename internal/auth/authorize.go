package auth

// Principal is a user with its resolved permission set. It is computed at
// most once per request and cached on the request context; it must never be
// reused across requests or principals.
type Principal struct {
	User        *User
	Permissions map[string]struct{}

	wildcard string
}

func (s *Service) newPrincipal(user *User) Principal {
	return Principal{
		User:        user,
		Permissions: s.ResolvePermissions(user),
		wildcard:    s.wildcard,
	}
}

// NewPrincipal constructs a principal from an already-resolved permission
// list, using the default wildcard token.
func NewPrincipal(user *User, perms []string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Principal{User: user, Permissions: set, wildcard: WildcardPermission}
}

// HasPermission reports whether the principal may perform the action named by
// key: either the literal name is in the resolved set or the principal holds
// the wildcard.
func (p Principal) HasPermission(key string) bool {
	if key == "" {
		return false
	}
	if _, ok := p.Permissions[key]; ok {
		return true
	}
	wildcard := p.wildcard
	if wildcard == "" {
		wildcard = WildcardPermission
	}
	_, ok := p.Permissions[wildcard]
	return ok
}

// PermissionNames returns the resolved set sorted for display.
func (p Principal) PermissionNames() []string {
	return SortedPermissions(p.Permissions)
}
