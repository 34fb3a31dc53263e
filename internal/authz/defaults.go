package authz

// roleDefaults is the fixed coarse-grained permission table keyed by
// (role, resource type). Admins never reach this table: they are allowed
// unconditionally before defaults are consulted. Supervisors have no row at
// all; their access comes entirely from PropertyAccess grants.
var roleDefaults = map[Role]map[ResourceType][]Action{
	RoleManager: {
		ResourceProperty: {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAssign},
		ResourceShift:    {ActionRead, ActionUpdate, ActionApprove},
		ResourceExpense:  {ActionRead, ActionApprove},
		ResourceGuard:    {ActionRead, ActionUpdate},
		ResourceClient:   {ActionRead, ActionUpdate},
	},
	RoleClient: {
		ResourceProperty: {ActionCreate, ActionRead, ActionUpdate},
		ResourceShift:    {ActionRead},
		ResourceExpense:  {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	},
	RoleGuard: {
		ResourceShift:    {ActionCreate, ActionRead, ActionUpdate},
		ResourceProperty: {ActionRead},
	},
}

// roleDefaultAllows reports whether the fixed table grants the action.
func roleDefaultAllows(role Role, resource ResourceType, action Action) bool {
	actions, ok := roleDefaults[role][resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// capabilityFlagFor maps a (resource type, action) pair to the PropertyAccess
// capability flag that enables it. Reads are not flag-gated: holding any
// active access row makes the property's data visible.
func capabilityFlagFor(resource ResourceType, action Action) (string, bool) {
	switch resource {
	case ResourceShift:
		switch action {
		case ActionCreate:
			return FlagCanCreateShifts, true
		case ActionUpdate:
			return FlagCanEditShifts, true
		}
	case ResourceExpense:
		switch action {
		case ActionCreate:
			return FlagCanCreateExpenses, true
		case ActionUpdate:
			return FlagCanEditExpenses, true
		case ActionApprove:
			return FlagCanApproveExpenses, true
		}
	}
	return "", false
}
