package auth

import "strings"

// RoleVIP unlocks 1080p video downloads.
const RoleVIP = "vip"

// Identity is the caller as seen by handlers, whichever way it was authenticated.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

// HasRole reports whether the identity carries role, case-insensitively.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsVIP reports whether the identity carries the vip role.
func (id Identity) IsVIP() bool {
	return id.HasRole(RoleVIP)
}

// ParseRoles splits a comma separated role header.
func ParseRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
