package user

import (
	"errors"
	"strings"
)

// Role is the marketplace side a user acts on.
type Role string

const (
	RoleDriver  Role = "DRIVER"
	RoleShipper Role = "SHIPPER"
	RoleAdmin   Role = "ADMIN"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the known roles.
func (role Role) Valid() bool {
	switch role {
	case RoleDriver, RoleShipper, RoleAdmin:
		return true
	default:
		return false
	}
}

func (role Role) String() string {
	return string(role)
}

func (role Role) IsDriver() bool  { return role == RoleDriver }
func (role Role) IsShipper() bool { return role == RoleShipper }
func (role Role) IsAdmin() bool   { return role == RoleAdmin }

// AllRoles lists every role, in a stable order.
func AllRoles() []Role {
	return []Role{RoleDriver, RoleShipper, RoleAdmin}
}
