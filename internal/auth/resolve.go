package auth

import "sort"

// ResolvePermissions flattens the user's role/permission graph into a
// deduplicated set. A permission granted by several roles counts once. A
// superuser contributes the wildcard token in addition to any enumerated
// names. An empty result is a valid deny-everything outcome, not an error.
func (s *Service) ResolvePermissions(user *User) map[string]struct{} {
	set := make(map[string]struct{})
	if user == nil {
		return set
	}
	if user.IsSuperuser {
		set[s.wildcard] = struct{}{}
	}
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			if perm.Name != "" {
				set[perm.Name] = struct{}{}
			}
		}
	}
	return set
}

// SortedPermissions returns the set as a lexicographically sorted slice so
// output surfaced to callers is deterministic.
func SortedPermissions(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
