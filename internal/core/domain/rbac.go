package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Built-in role names. ADMIN is the superuser.
const (
	RoleUser      = "USER"
	RoleAdmin     = "ADMIN"
	RoleDesigner  = "DESIGNER"
	RoleSupport   = "SUPPORT"
	RoleFinance   = "FINANCE"
	RoleMarketing = "MARKETING"
)

// SuperuserRole is granted every capability without a table lookup.
const SuperuserRole = RoleAdmin

// Principal is the authenticated actor attached to a request.
type Principal struct {
	ID   string
	Role string
}

// PermissionSet maps capability names to grants. Absent keys are denials.
type PermissionSet map[string]bool

// Allows reports whether the capability is explicitly granted.
func (p PermissionSet) Allows(capability string) bool {
	if p == nil {
		return false
	}
	return p[capability]
}

// Clone returns an independent copy.
func (p PermissionSet) Clone() PermissionSet {
	if p == nil {
		return PermissionSet{}
	}
	out := make(PermissionSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Granted returns the sorted names of capabilities set to true.
func (p PermissionSet) Granted() []string {
	names := make([]string, 0, len(p))
	for k, v := range p {
		if v {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// ErrNonBooleanPermission is returned when a permission value is not a boolean.
var ErrNonBooleanPermission = errors.New("permission values must be boolean")

// ErrEmptyPermissionKey is returned when a capability name is blank.
var ErrEmptyPermissionKey = errors.New("permission names must not be empty")

// ParsePermissionSet converts loosely typed input (typically decoded JSON)
// into a PermissionSet, rejecting any non-boolean value.
func ParsePermissionSet(raw map[string]any) (PermissionSet, error) {
	set := make(PermissionSet, len(raw))
	for key, value := range raw {
		name := strings.TrimSpace(key)
		if name == "" {
			return nil, ErrEmptyPermissionKey
		}
		granted, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNonBooleanPermission, name)
		}
		set[name] = granted
	}
	return set, nil
}

// Role is an admin-defined custom role persisted in the database.
type Role struct {
	ID          string
	Name        string
	Description string
	Permissions PermissionSet
	IsActive    bool
	CreatedBy   string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeRoleName trims and upper-cases a role name.
func NormalizeRoleName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// RoleSource indicates where a role's permission set came from.
type RoleSource string

const (
	RoleSourceBuiltin RoleSource = "builtin"
	RoleSourceCustom  RoleSource = "custom"
)
