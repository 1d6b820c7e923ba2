// FilePath: internal/models/models.role.go
package models

// Permission names an action a role may grant.
type Permission string

const (
	PermUserView         Permission = "USER_VIEW"
	PermUserCreate       Permission = "USER_CREATE"
	PermUserUpdate       Permission = "USER_UPDATE"
	PermUserDelete       Permission = "USER_DELETE"
	PermReportView       Permission = "REPORT_VIEW"
	PermReportCreate     Permission = "REPORT_CREATE"
	PermReportUpdate     Permission = "REPORT_UPDATE"
	PermReportDelete     Permission = "REPORT_DELETE"
	PermViewSensorData   Permission = "VIEW_SENSOR_DATA"
	PermSensorCreate     Permission = "SENSOR_CREATE"
	PermSensorUpdate     Permission = "SENSOR_UPDATE"
	PermSensorDelete     Permission = "SENSOR_DELETE"
	PermRoleAssign       Permission = "ROLE_ASSIGN"
	PermRoleCreate       Permission = "ROLE_CREATE"
	PermRoleUpdate       Permission = "ROLE_UPDATE"
	PermRoleDelete       Permission = "ROLE_DELETE"
	PermNodeView         Permission = "NODE_VIEW"
	PermNodeCreate       Permission = "NODE_CREATE"
	PermNodeUpdate       Permission = "NODE_UPDATE"
	PermNodeDelete       Permission = "NODE_DELETE"
	PermAcknowledgeAlert Permission = "ACKNOWLEDGE_ALERT"
)

// AllPermissions lists every known permission.
var AllPermissions = []Permission{
	PermUserView, PermUserCreate, PermUserUpdate, PermUserDelete,
	PermReportView, PermReportCreate, PermReportUpdate, PermReportDelete,
	PermViewSensorData, PermSensorCreate, PermSensorUpdate, PermSensorDelete,
	PermRoleAssign, PermRoleCreate, PermRoleUpdate, PermRoleDelete,
	PermNodeView, PermNodeCreate, PermNodeUpdate, PermNodeDelete,
	PermAcknowledgeAlert,
}

// NodeLevelPermissions may be scoped to a single node in a role action.
var NodeLevelPermissions = []Permission{
	PermNodeView, PermNodeCreate, PermNodeUpdate, PermNodeDelete,
	PermViewSensorData, PermSensorCreate, PermSensorUpdate, PermSensorDelete,
	PermReportView, PermReportCreate, PermReportUpdate, PermReportDelete,
}

// Role as served by /roles.
type Role struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	SMSEnabled     bool         `json:"sms_enabled"`
	EmailEnabled   bool         `json:"email_enabled"`
	MSTeamsEnabled bool         `json:"ms_teams_enabled"`
	HasRootAccess  bool         `json:"has_root_access"`
	RoleActions    []RoleAction `json:"role_actions"`
}

// RoleAction grants actions, optionally scoped to one node.
type RoleAction struct {
	Actions []string `json:"actions"`
	NodeID  *string  `json:"node_id"`
}

type RoleInput struct {
	Name            string       `json:"name" validate:"required"`
	Description     string       `json:"description"`
	RoleActions     []RoleAction `json:"role_actions" validate:"dive"`
	FullNodeAccess  *bool        `json:"full_node_access,omitempty"`
	AccessibleNodes []string     `json:"accessible_nodes,omitempty"`
}

// UserPermissions is the effective permission set of a signed-in user.
type UserPermissions struct {
	Permissions     []Permission `json:"permissions"`
	AccessibleNodes []string     `json:"accessible_nodes,omitempty"`
	HasRootAccess   bool         `json:"has_root_access"`
}

// Has reports whether p is granted.
func (u *UserPermissions) Has(p Permission) bool {
	if u == nil {
		return false
	}
	if u.HasRootAccess {
		return true
	}
	for _, granted := range u.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one of ps is granted.
func (u *UserPermissions) HasAny(ps ...Permission) bool {
	if len(ps) == 0 {
		return true
	}
	for _, p := range ps {
		if u.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of ps is granted.
func (u *UserPermissions) HasAll(ps ...Permission) bool {
	for _, p := range ps {
		if !u.Has(p) {
			return false
		}
	}
	return true
}

// PermissionsFromRole derives the effective permissions of a role.
func PermissionsFromRole(role *Role) *UserPermissions {
	if role == nil {
		return &UserPermissions{}
	}
	perms := &UserPermissions{HasRootAccess: role.HasRootAccess}
	seen := make(map[Permission]bool)
	nodes := make(map[string]bool)
	for _, ra := range role.RoleActions {
		for _, a := range ra.Actions {
			p := Permission(a)
			if !seen[p] {
				seen[p] = true
				perms.Permissions = append(perms.Permissions, p)
			}
		}
		if ra.NodeID != nil && *ra.NodeID != "" && !nodes[*ra.NodeID] {
			nodes[*ra.NodeID] = true
			perms.AccessibleNodes = append(perms.AccessibleNodes, *ra.NodeID)
		}
	}
	return perms
}
