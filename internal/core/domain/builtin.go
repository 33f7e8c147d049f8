package domain

import "sort"

// Capability names used by the platform's route gates. The list is advisory:
// custom roles may carry any key.
const (
	CapRolesRead       = "roles:read"
	CapRolesManage     = "roles:manage"
	CapUsersRead       = "users:read"
	CapUsersEdit       = "users:edit"
	CapUsersAssignRole = "users:assign_role"
	CapGamesManage     = "games:manage"
	CapBannersManage   = "banners:manage"
	CapWalletRead      = "wallet:read"
	CapWithdrawReview  = "withdrawals:review"
	CapRechargeReview  = "recharges:review"
	CapVIPManage       = "vip:manage"
	CapMarketingSend   = "marketing:send"
	CapNotifySend      = "notifications:send"
	CapReportsRead     = "reports:read"
)

// KnownCapabilities lists capability names the platform checks today. Used for
// autocomplete and typo warnings only.
var KnownCapabilities = []string{
	CapRolesRead,
	CapRolesManage,
	CapUsersRead,
	CapUsersEdit,
	CapUsersAssignRole,
	CapGamesManage,
	CapBannersManage,
	CapWalletRead,
	CapWithdrawReview,
	CapRechargeReview,
	CapVIPManage,
	CapMarketingSend,
	CapNotifySend,
	CapReportsRead,
}

// IsKnownCapability reports whether name appears in KnownCapabilities.
func IsKnownCapability(name string) bool {
	for _, known := range KnownCapabilities {
		if known == name {
			return true
		}
	}
	return false
}

// UnknownCapabilities returns the keys of set that are not known, sorted.
func UnknownCapabilities(set PermissionSet) []string {
	var unknown []string
	for name := range set {
		if !IsKnownCapability(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// BuiltinTable is the read-only permission table for built-in roles. It is
// built once at start-up and injected where needed; it has no mutators.
type BuiltinTable struct {
	entries map[string]PermissionSet
}

// NewBuiltinTable deep-copies entries into an immutable table. Role names are
// normalized.
func NewBuiltinTable(entries map[string]PermissionSet) BuiltinTable {
	copied := make(map[string]PermissionSet, len(entries))
	for name, set := range entries {
		copied[NormalizeRoleName(name)] = set.Clone()
	}
	return BuiltinTable{entries: copied}
}

// IsBuiltin reports whether name is a built-in role.
func (t BuiltinTable) IsBuiltin(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Lookup returns a copy of the permission set for a built-in role.
func (t BuiltinTable) Lookup(name string) (PermissionSet, bool) {
	set, ok := t.entries[name]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Allows reports whether the built-in role grants capability. Unknown roles
// and absent keys deny.
func (t BuiltinTable) Allows(role, capability string) bool {
	set, ok := t.entries[role]
	if !ok {
		return false
	}
	return set.Allows(capability)
}

// Names returns the built-in role names, sorted.
func (t BuiltinTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBuiltinTable returns the platform's built-in role table.
func DefaultBuiltinTable() BuiltinTable {
	return NewBuiltinTable(map[string]PermissionSet{
		RoleUser: {
			CapWalletRead: true,
		},
		RoleAdmin: {
			CapRolesRead:       true,
			CapRolesManage:     true,
			CapUsersRead:       true,
			CapUsersEdit:       true,
			CapUsersAssignRole: true,
			CapGamesManage:     true,
			CapBannersManage:   true,
			CapWalletRead:      true,
			CapWithdrawReview:  true,
			CapRechargeReview:  true,
			CapVIPManage:       true,
			CapMarketingSend:   true,
			CapNotifySend:      true,
			CapReportsRead:     true,
		},
		RoleDesigner: {
			CapGamesManage:   true,
			CapBannersManage: true,
			CapRolesRead:     true,
		},
		RoleSupport: {
			CapUsersRead: true,
		},
		RoleFinance: {
			CapWalletRead:     true,
			CapWithdrawReview: true,
			CapRechargeReview: true,
			CapReportsRead:    true,
		},
		RoleMarketing: {
			CapMarketingSend: true,
			CapNotifySend:    true,
		},
	})
}
