package authz

import "strings"

// Role is one of the built-in tenant roles. Roles are non-exclusive.
type Role string

const (
	RoleSuperAdmin       Role = "superadmin"
	RoleCompanyManager   Role = "company_manager"
	RoleFinanceManager   Role = "finance_manager"
	RoleSalesManager     Role = "sales_manager"
	RoleSalesCoordinator Role = "sales_coordinator"
	RoleSalesExecutive   Role = "sales_executive"
)

// AllRoles lists the built-in roles from the top tier down
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleCompanyManager,
	RoleFinanceManager,
	RoleSalesManager,
	RoleSalesCoordinator,
	RoleSalesExecutive,
}

// Valid reports whether r is a built-in role
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// RoleSet is an unordered set of roles used by policy rules
type RoleSet []Role

// Contains reports whether the set holds role
func (s RoleSet) Contains(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Matching returns the roles in held that are also in s
func (s RoleSet) Matching(held []Role) []Role {
	var matched []Role
	for _, r := range held {
		if s.Contains(r) {
			matched = append(matched, r)
		}
	}
	return matched
}

// Without returns a copy of s with the given roles removed
func (s RoleSet) Without(roles ...Role) RoleSet {
	drop := RoleSet(roles)
	out := make(RoleSet, 0, len(s))
	for _, r := range s {
		if !drop.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// ResourceType identifies the kind of protected resource
type ResourceType string

const (
	ResourceAssessment        ResourceType = "assessment"
	ResourceAssessmentSection ResourceType = "assessment_section"
	ResourceAssessmentPhoto   ResourceType = "assessment_photo"
	ResourceLead              ResourceType = "lead"
	ResourceInvoice           ResourceType = "invoice"
	ResourceQuotation         ResourceType = "quotation"
	ResourceCustomer          ResourceType = "customer"
	ResourceCustomerSegment   ResourceType = "customer_segment"
	ResourceTeam              ResourceType = "team"
	ResourceCompany           ResourceType = "company"
	ResourceCompanyBrand      ResourceType = "company_brand"
	ResourcePricingItem       ResourceType = "pricing_item"
	ResourcePricingCategory   ResourceType = "pricing_category"
	ResourceServiceTemplate   ResourceType = "service_template"
	ResourceServiceCategory   ResourceType = "service_category"
	ResourceProof             ResourceType = "proof"
	ResourceWebhookEndpoint   ResourceType = "webhook_endpoint"
	ResourceUser              ResourceType = "user"
)

// Action is an operation an actor attempts on a resource
type Action string

const (
	ActionViewAny         Action = "view_any"
	ActionView            Action = "view"
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionAssign          Action = "assign"
	ActionApprove         Action = "approve"
	ActionSend            Action = "send"
	ActionChangeStatus    Action = "change_status"
	ActionUploadPhotos    Action = "upload_photos"
	ActionGeneratePDF     Action = "generate_pdf"
	ActionDuplicate       Action = "duplicate"
	ActionExport          Action = "export"
	ActionConvert         Action = "convert"
	ActionRecordPayment   Action = "record_payment"
	ActionVoid            Action = "void"
	ActionPublish         Action = "publish"
	ActionApproveContent  Action = "approve_content"
	ActionManageRetention Action = "manage_retention"
	ActionManageMembers   Action = "manage_members"
	ActionUpdateProfile   Action = "update_profile"
	ActionAssignRole      Action = "assign_role"
	ActionSetDefault      Action = "set_default"
	ActionTest            Action = "test"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource ResourceType `json:"resource"`
	Action   Action       `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// ParsePermission parses the "resource:action" form produced by String
func ParsePermission(s string) (Permission, bool) {
	resource, action, ok := strings.Cut(s, ":")
	if !ok || resource == "" || action == "" {
		return Permission{}, false
	}
	return Permission{Resource: ResourceType(resource), Action: Action(action)}, true
}

// Actor is the authenticated principal a decision is made for
type Actor struct {
	ID                 int64        `json:"id"`
	CompanyID          int64        `json:"company_id"`
	Roles              []Role       `json:"roles"`
	Permissions        []Permission `json:"permissions,omitempty"`
	TeamIDs            []int64      `json:"team_ids,omitempty"`
	ManagedTeamIDs     []int64      `json:"managed_team_ids,omitempty"`
	CoordinatedTeamIDs []int64      `json:"coordinated_team_ids,omitempty"`
}

// HasRole reports whether the actor holds any of the given roles
func (a *Actor) HasRole(roles ...Role) bool {
	return len(RoleSet(roles).Matching(a.Roles)) > 0
}

// IsSuperAdmin reports whether the actor holds the superadmin role
func (a *Actor) IsSuperAdmin() bool {
	return a.HasRole(RoleSuperAdmin)
}

// HasPermission reports whether the actor was granted p explicitly
func (a *Actor) HasPermission(p Permission) bool {
	for _, granted := range a.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// LeadsTeam reports whether the actor manages or coordinates the team
func (a *Actor) LeadsTeam(teamID int64) bool {
	return containsID(a.ManagedTeamIDs, teamID) || containsID(a.CoordinatedTeamIDs, teamID)
}

// MemberOf reports whether the actor belongs to the team in any capacity
func (a *Actor) MemberOf(teamID int64) bool {
	return containsID(a.TeamIDs, teamID) || a.LeadsTeam(teamID)
}

// Resource is the polymorphic view of a protected record the engine decides on.
// Only the attributes a policy reads need to be populated.
type Resource struct {
	Type        ResourceType `json:"type"`
	ID          int64        `json:"id,omitempty"`
	CompanyID   int64        `json:"company_id"`
	AssignedTo  *int64       `json:"assigned_to,omitempty"`
	CreatedBy   *int64       `json:"created_by,omitempty"`
	TeamID      *int64       `json:"team_id,omitempty"`
	LeadOwnerID *int64       `json:"lead_owner_id,omitempty"`
	Status      string       `json:"status,omitempty"`
	// Dependents counts child records (photos, invoices, members) that block deletion
	Dependents int `json:"dependents,omitempty"`
	// Changes names the fields a pending mutation touches
	Changes   []string  `json:"changes,omitempty"`
	Roles     []Role    `json:"roles,omitempty"`
	IsDefault bool      `json:"is_default,omitempty"`
	Parent    *Resource `json:"parent,omitempty"`
}

// Gate names the evaluation step that produced a denial
type Gate string

const (
	GateNone        Gate = ""
	GateTenant      Gate = "tenant"
	GateRole        Gate = "role"
	GateState       Gate = "state"
	GateScope       Gate = "scope"
	GateEligibility Gate = "eligibility"
	GateUndefined   Gate = "undefined"
)

// Decision is the outcome of evaluating a permission for an actor
type Decision struct {
	Allowed      bool       `json:"allowed"`
	Permission   Permission `json:"permission"`
	Gate         Gate       `json:"gate,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	MatchedRoles []Role     `json:"matched_roles,omitempty"`
}

// Outcome returns a low-cardinality label for metrics
func (d *Decision) Outcome() string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}

// Err returns a *ForbiddenError for denied decisions and nil otherwise
func (d *Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &ForbiddenError{Decision: d}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
