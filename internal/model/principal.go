package model

import "strings"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleViewer  Role = "VIEWER"
)

// Principal is the authenticated caller as extracted from the access token.
type Principal struct {
	UserID string
	Name   string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsReadOnly reports whether the caller may only query state.
func (p Principal) IsReadOnly() bool {
	return p.Role == RoleViewer || p.Role == ""
}

func ParseRole(raw string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	default:
		return RoleViewer
	}
}
