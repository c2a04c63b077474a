package permission

import (
	"sort"
	"strings"
)

// AuthorityPrefix is prepended to upper-cased role names by [AuthorityTag].
const AuthorityPrefix = "ROLE_"

// Permission is a leaf grant. Only Name participates in decisions.
type Permission struct {
	ID   string
	Name string
}

// Role groups permissions under a unique name.
type Role struct {
	ID          string
	Name        string
	Description string
	Permissions []Permission
}

// Set is an unordered collection of permission names.
type Set map[string]struct{}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of distinct names.
func (s Set) Len() int { return len(s) }

// Names returns the names in ascending order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the union of permission names over roles.
func Resolve(roles []Role) Set {
	set := make(Set)
	for _, role := range roles {
		for _, perm := range role.Permissions {
			if perm.Name == "" {
				continue
			}
			set[perm.Name] = struct{}{}
		}
	}
	return set
}

// HasRole reports whether roles contains a role named name.
func HasRole(roles []Role, name string) bool {
	for _, role := range roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether any role grants name.
func HasPermission(roles []Role, name string) bool {
	for _, role := range roles {
		for _, perm := range role.Permissions {
			if perm.Name == name {
				return true
			}
		}
	}
	return false
}

// HasAny reports whether at least one of names is granted. It is false for an
// empty names list.
func HasAny(roles []Role, names ...string) bool {
	if len(names) == 0 {
		return false
	}
	set := Resolve(roles)
	for _, name := range names {
		if set.Has(name) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of names is granted. It is true for an
// empty names list.
func HasAll(roles []Role, names ...string) bool {
	if len(names) == 0 {
		return true
	}
	set := Resolve(roles)
	for _, name := range names {
		if !set.Has(name) {
			return false
		}
	}
	return true
}

// RoleNames returns the role names in the order given.
func RoleNames(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, role.Name)
	}
	return out
}

// AuthorityTag maps a role name to its authority form, e.g. "admin" to
// "ROLE_ADMIN".
func AuthorityTag(roleName string) string {
	return AuthorityPrefix + strings.ToUpper(strings.TrimSpace(roleName))
}

// AuthorityTags maps every role name through [AuthorityTag].
func AuthorityTags(roleNames []string) []string {
	out := make([]string, 0, len(roleNames))
	for _, name := range roleNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		out = append(out, AuthorityTag(name))
	}
	return out
}

// RoleNamesFromAuthorities reverses [AuthorityTags]. Entries without the
// prefix are skipped. Names come back lower-cased.
func RoleNamesFromAuthorities(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		name, ok := strings.CutPrefix(tag, AuthorityPrefix)
		if !ok || name == "" {
			continue
		}
		out = append(out, strings.ToLower(name))
	}
	return out
}
