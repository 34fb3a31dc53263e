package authz

// The authorization engine works over four closed vocabularies. Every value
// arriving from the outside is validated against them; anything unknown is
// treated as an automatic deny rather than an error.

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleClient     Role = "client"
	RoleGuard      Role = "guard"
	RoleSupervisor Role = "supervisor"

	// RoleUnassigned is the lowest-privilege sentinel returned for principals
	// without a role row. It is never stored.
	RoleUnassigned Role = "unassigned"
)

type ResourceType string

const (
	ResourceProperty ResourceType = "property"
	ResourceShift    ResourceType = "shift"
	ResourceExpense  ResourceType = "expense"
	ResourceGuard    ResourceType = "guard"
	ResourceClient   ResourceType = "client"
)

type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionAssign  Action = "assign"
)

type AccessType string

const (
	AccessOwner         AccessType = "owner"
	AccessAssignedGuard AccessType = "assigned_guard"
	AccessSupervisor    AccessType = "supervisor"
	AccessViewer        AccessType = "viewer"
)

// AllRoles lists the assignable roles; the unassigned sentinel is excluded on
// purpose since it only exists as a default.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleClient, RoleGuard, RoleSupervisor}
}

func AllResourceTypes() []ResourceType {
	return []ResourceType{ResourceProperty, ResourceShift, ResourceExpense, ResourceGuard, ResourceClient}
}

func AllActions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionApprove, ActionAssign}
}

func AllAccessTypes() []AccessType {
	return []AccessType{AccessOwner, AccessAssignedGuard, AccessSupervisor, AccessViewer}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleClient, RoleGuard, RoleSupervisor:
		return true
	}
	return false
}

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceProperty, ResourceShift, ResourceExpense, ResourceGuard, ResourceClient:
		return true
	}
	return false
}

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionApprove, ActionAssign:
		return true
	}
	return false
}

func (t AccessType) Valid() bool {
	switch t {
	case AccessOwner, AccessAssignedGuard, AccessSupervisor, AccessViewer:
		return true
	}
	return false
}

// PropertyScoped reports whether objects of this resource type belong to a
// property, which routes object-scoped checks through the PropertyAccess table.
func (t ResourceType) PropertyScoped() bool {
	switch t {
	case ResourceProperty, ResourceShift, ResourceExpense:
		return true
	}
	return false
}
