package authz

import (
	"fmt"
	"strings"
)

const (
	sa = RoleSuperAdmin
	cm = RoleCompanyManager
	fm = RoleFinanceManager
	sm = RoleSalesManager
	sc = RoleSalesCoordinator
	se = RoleSalesExecutive
)

var (
	everyone = RoleSet{sa, cm, fm, sm, sc, se}
	sales    = RoleSet{sa, cm, sm, sc, se}
	managers = RoleSet{sa, cm, sm}
	topTier  = RoleSet{sa, cm}
	finance  = RoleSet{sa, cm, fm}
	field    = RoleSet{sc, se}
)

// Assessment statuses as seen by the engine
const (
	assessmentDraft     = "draft"
	assessmentCompleted = "completed"
	assessmentCancelled = "cancelled"
)

// TerminalEditableFields are the assessment fields that stay writable after
// an assessment is completed or cancelled.
var TerminalEditableFields = []string{"notes", "recommendations", "follow_up_required", "follow_up_date"}

// DefaultPolicy returns the built-in allow-list for every resource type
func DefaultPolicy() Policy {
	p := Policy{}
	addAssessmentRules(p)
	addLeadRules(p)
	addCommercialRules(p)
	addCustomerRules(p)
	addOrganizationRules(p)
	addCatalogRules(p)
	addProofRules(p)
	addUserRules(p)
	return p
}

func addAssessmentRules(p Policy) {
	viewer := Rule{Roles: everyone, Narrowed: field}
	editor := Rule{Roles: sales, Narrowed: field}

	p[perm(ResourceAssessment, ActionViewAny)] = Rule{Roles: everyone}
	p[perm(ResourceAssessment, ActionView)] = viewer
	p[perm(ResourceAssessment, ActionCreate)] = Rule{Roles: sales}
	p[perm(ResourceAssessment, ActionUpdate)] = with(editor, func(r *Rule) {
		r.State = terminalEditsOnly
	})
	p[perm(ResourceAssessment, ActionDelete)] = with(editor, func(r *Rule) {
		r.State = statusNotIn(assessmentCompleted)
		r.Eligible = dependentsRequire(managers, "photos")
	})
	p[perm(ResourceAssessment, ActionChangeStatus)] = with(editor, func(r *Rule) {
		r.State = statusNotIn(assessmentCompleted, assessmentCancelled)
	})
	p[perm(ResourceAssessment, ActionUploadPhotos)] = with(editor, func(r *Rule) {
		r.State = statusNotIn(assessmentCancelled)
	})
	p[perm(ResourceAssessment, ActionGeneratePDF)] = with(viewer, func(r *Rule) {
		r.State = statusNotIn(assessmentDraft)
	})
	p[perm(ResourceAssessment, ActionDuplicate)] = editor
	p[perm(ResourceAssessment, ActionApprove)] = Rule{Roles: managers, State: statusIn(assessmentCompleted)}
	p[perm(ResourceAssessment, ActionAssign)] = Rule{
		Roles:    RoleSet{sa, cm, sm, sc},
		Narrowed: RoleSet{sc},
		State:    statusNotIn(assessmentCompleted, assessmentCancelled),
	}
	p[perm(ResourceAssessment, ActionExport)] = Rule{Roles: RoleSet{sa, cm, fm, sm}}

	// Sections and photos are scoped and gated through their parent assessment.
	p[perm(ResourceAssessmentSection, ActionView)] = viewer
	for _, a := range []Action{ActionCreate, ActionUpdate} {
		p[perm(ResourceAssessmentSection, a)] = with(editor, func(r *Rule) {
			r.State = parentStatusNotIn(assessmentCompleted, assessmentCancelled)
		})
	}
	p[perm(ResourceAssessmentSection, ActionDelete)] = with(editor, func(r *Rule) {
		r.State = parentStatusNotIn(assessmentCompleted, assessmentCancelled)
		r.Eligible = func(a *Actor, res *Resource) string {
			if res.Status == "completed" && !a.HasRole(managers...) {
				return "completed sections can only be removed by a manager"
			}
			return ""
		}
	})

	p[perm(ResourceAssessmentPhoto, ActionView)] = viewer
	for _, a := range []Action{ActionCreate, ActionUpdate} {
		p[perm(ResourceAssessmentPhoto, a)] = with(editor, func(r *Rule) {
			r.State = parentStatusNotIn(assessmentCancelled)
		})
	}
	p[perm(ResourceAssessmentPhoto, ActionDelete)] = with(editor, func(r *Rule) {
		r.Eligible = func(a *Actor, res *Resource) string {
			if res.Parent != nil && isTerminalAssessment(res.Parent.Status) && !a.HasRole(managers...) {
				return "photos of a closed assessment can only be removed by a manager"
			}
			return ""
		}
	})
}

func addLeadRules(p Policy) {
	editor := Rule{Roles: sales, Narrowed: field}

	p[perm(ResourceLead, ActionViewAny)] = Rule{Roles: sales}
	p[perm(ResourceLead, ActionCreate)] = Rule{Roles: sales}
	p[perm(ResourceLead, ActionView)] = editor
	p[perm(ResourceLead, ActionUpdate)] = with(editor, func(r *Rule) {
		r.State = func(a *Actor, res *Resource) string {
			if (res.Status == "won" || res.Status == "lost") && !a.HasRole(managers...) {
				return fmt.Sprintf("lead is %s; only managers may edit it", res.Status)
			}
			return ""
		}
	})
	p[perm(ResourceLead, ActionDelete)] = Rule{Roles: managers, State: statusNotIn("won")}
	p[perm(ResourceLead, ActionAssign)] = Rule{
		Roles:    RoleSet{sa, cm, sm, sc},
		Narrowed: RoleSet{sc},
		State:    statusNotIn("won", "lost"),
	}
	p[perm(ResourceLead, ActionConvert)] = with(editor, func(r *Rule) {
		r.State = statusIn("qualified", "proposal")
	})
}

func addCommercialRules(p Policy) {
	quoteViewer := Rule{Roles: everyone, Narrowed: field}
	quoteEditor := Rule{Roles: sales, Narrowed: field}

	p[perm(ResourceQuotation, ActionViewAny)] = Rule{Roles: everyone}
	p[perm(ResourceQuotation, ActionView)] = quoteViewer
	p[perm(ResourceQuotation, ActionGeneratePDF)] = quoteViewer
	p[perm(ResourceQuotation, ActionCreate)] = Rule{Roles: sales}
	p[perm(ResourceQuotation, ActionUpdate)] = with(quoteEditor, func(r *Rule) { r.State = statusIn("draft") })
	p[perm(ResourceQuotation, ActionDelete)] = with(quoteEditor, func(r *Rule) { r.State = statusIn("draft") })
	p[perm(ResourceQuotation, ActionSend)] = with(quoteEditor, func(r *Rule) { r.State = statusIn("draft", "approved") })
	p[perm(ResourceQuotation, ActionApprove)] = Rule{Roles: managers, State: statusIn("draft")}
	p[perm(ResourceQuotation, ActionDuplicate)] = quoteEditor
	p[perm(ResourceQuotation, ActionExport)] = Rule{Roles: RoleSet{sa, cm, fm, sm}}

	invoiceViewer := Rule{Roles: everyone, Narrowed: field}
	p[perm(ResourceInvoice, ActionViewAny)] = Rule{Roles: everyone}
	p[perm(ResourceInvoice, ActionView)] = invoiceViewer
	p[perm(ResourceInvoice, ActionGeneratePDF)] = invoiceViewer
	p[perm(ResourceInvoice, ActionCreate)] = Rule{Roles: RoleSet{sa, cm, fm, sm}}
	p[perm(ResourceInvoice, ActionUpdate)] = Rule{Roles: finance, State: statusIn("draft", "sent")}
	p[perm(ResourceInvoice, ActionDelete)] = Rule{Roles: finance, State: statusIn("draft")}
	p[perm(ResourceInvoice, ActionSend)] = Rule{Roles: RoleSet{sa, cm, fm, sm}, State: statusIn("draft", "sent")}
	p[perm(ResourceInvoice, ActionRecordPayment)] = Rule{Roles: finance, State: statusIn("sent", "partial", "overdue")}
	p[perm(ResourceInvoice, ActionVoid)] = Rule{Roles: finance, State: statusNotIn("paid", "cancelled")}
	p[perm(ResourceInvoice, ActionExport)] = Rule{Roles: finance}
}

func addCustomerRules(p Policy) {
	p[perm(ResourceCustomer, ActionViewAny)] = Rule{Roles: everyone}
	p[perm(ResourceCustomer, ActionCreate)] = Rule{Roles: everyone}
	p[perm(ResourceCustomer, ActionView)] = Rule{Roles: everyone, Narrowed: field}
	p[perm(ResourceCustomer, ActionUpdate)] = Rule{Roles: everyone, Narrowed: field}
	p[perm(ResourceCustomer, ActionDelete)] = Rule{Roles: managers, Eligible: dependentsRequire(topTier, "linked records")}
	p[perm(ResourceCustomer, ActionExport)] = Rule{Roles: RoleSet{sa, cm, fm, sm}}

	p[perm(ResourceCustomerSegment, ActionViewAny)] = Rule{Roles: everyone}
	p[perm(ResourceCustomerSegment, ActionView)] = Rule{Roles: everyone}
	p[perm(ResourceCustomerSegment, ActionCreate)] = Rule{Roles: managers}
	p[perm(ResourceCustomerSegment, ActionUpdate)] = Rule{Roles: managers}
	p[perm(ResourceCustomerSegment, ActionDelete)] = Rule{Roles: managers, Eligible: dependentsRequire(topTier, "customers")}
}

func addOrganizationRules(p Policy) {
	p[perm(ResourceTeam, ActionViewAny)] = Rule{Roles: everyone}
	p[perm(ResourceTeam, ActionView)] = Rule{Roles: everyone, Narrowed: everyone.Without(sa, cm), Scope: teamMember}
	p[perm(ResourceTeam, ActionCreate)] = Rule{Roles: topTier}
	p[perm(ResourceTeam, ActionUpdate)] = Rule{Roles: managers, Narrowed: RoleSet{sm}, Scope: teamManager}
	p[perm(ResourceTeam, ActionDelete)] = Rule{Roles: topTier, Eligible: func(_ *Actor, r *Resource) string {
		if r.Dependents > 0 {
			return "team still has members"
		}
		return ""
	}}
	p[perm(ResourceTeam, ActionManageMembers)] = Rule{Roles: RoleSet{sa, cm, sm, sc}, Narrowed: RoleSet{sm, sc}, Scope: teamLeader}

	p[perm(ResourceCompany, ActionViewAny)] = Rule{Roles: RoleSet{sa}, CrossTenant: true}
	p[perm(ResourceCompany, ActionCreate)] = Rule{Roles: RoleSet{sa}, CrossTenant: true}
	p[perm(ResourceCompany, ActionDelete)] = Rule{Roles: RoleSet{sa}, CrossTenant: true}
	p[perm(ResourceCompany, ActionView)] = Rule{Roles: everyone}
	p[perm(ResourceCompany, ActionUpdate)] = Rule{Roles: topTier}

	p[perm(ResourceCompanyBrand, ActionViewAny)] = Rule{Roles: everyone}
	p[perm(ResourceCompanyBrand, ActionView)] = Rule{Roles: everyone}
	p[perm(ResourceCompanyBrand, ActionCreate)] = Rule{Roles: topTier}
	p[perm(ResourceCompanyBrand, ActionUpdate)] = Rule{Roles: topTier}
	p[perm(ResourceCompanyBrand, ActionSetDefault)] = Rule{Roles: topTier}
	p[perm(ResourceCompanyBrand, ActionDelete)] = Rule{Roles: topTier, State: func(_ *Actor, r *Resource) string {
		if r.IsDefault {
			return "the default brand cannot be deleted"
		}
		return ""
	}}

	for _, a := range []Action{ActionViewAny, ActionView, ActionCreate, ActionUpdate, ActionDelete} {
		p[perm(ResourceWebhookEndpoint, a)] = Rule{Roles: topTier}
	}
	p[perm(ResourceWebhookEndpoint, ActionTest)] = Rule{Roles: topTier, State: statusIn("active")}
}

func addCatalogRules(p Policy) {
	for _, res := range []ResourceType{ResourcePricingItem, ResourcePricingCategory} {
		p[perm(res, ActionViewAny)] = Rule{Roles: everyone}
		p[perm(res, ActionView)] = Rule{Roles: everyone}
		p[perm(res, ActionCreate)] = Rule{Roles: RoleSet{sa, cm, fm, sm}}
		p[perm(res, ActionUpdate)] = Rule{Roles: RoleSet{sa, cm, fm, sm}}
		p[perm(res, ActionDelete)] = Rule{Roles: finance, Eligible: dependentsRequire(topTier, "quotation lines")}
	}
	p[perm(ResourcePricingItem, ActionExport)] = Rule{Roles: RoleSet{sa, cm, fm, sm}}

	for _, res := range []ResourceType{ResourceServiceTemplate, ResourceServiceCategory} {
		p[perm(res, ActionViewAny)] = Rule{Roles: everyone}
		p[perm(res, ActionView)] = Rule{Roles: everyone}
		p[perm(res, ActionCreate)] = Rule{Roles: managers}
		p[perm(res, ActionUpdate)] = Rule{Roles: managers}
		p[perm(res, ActionDelete)] = Rule{Roles: managers, Eligible: dependentsRequire(topTier, "dependent records")}
	}
	p[perm(ResourceServiceTemplate, ActionDuplicate)] = Rule{Roles: managers}
}

func addProofRules(p Policy) {
	editor := Rule{Roles: sales, Narrowed: field}

	p[perm(ResourceProof, ActionViewAny)] = Rule{Roles: sales}
	p[perm(ResourceProof, ActionCreate)] = Rule{Roles: sales}
	p[perm(ResourceProof, ActionView)] = with(editor, func(r *Rule) { r.OpenStates = []string{"published"} })
	p[perm(ResourceProof, ActionUpdate)] = with(editor, func(r *Rule) { r.State = statusNotIn("archived") })
	p[perm(ResourceProof, ActionDelete)] = with(editor, func(r *Rule) {
		r.Eligible = func(a *Actor, res *Resource) string {
			if res.Status == "published" && !a.HasRole(managers...) {
				return "published proof can only be removed by a manager"
			}
			return ""
		}
	})
	p[perm(ResourceProof, ActionPublish)] = Rule{Roles: managers, State: statusIn("approved")}
	p[perm(ResourceProof, ActionApproveContent)] = Rule{Roles: topTier, State: statusIn("draft", "pending_approval")}
	p[perm(ResourceProof, ActionManageRetention)] = Rule{Roles: topTier}
}

func addUserRules(p Policy) {
	p[perm(ResourceUser, ActionViewAny)] = Rule{Roles: RoleSet{sa, cm, sm, sc}}
	p[perm(ResourceUser, ActionView)] = Rule{Roles: everyone, Narrowed: everyone.Without(sa, cm), Scope: selfOrTeammate}
	p[perm(ResourceUser, ActionCreate)] = Rule{Roles: topTier, Eligible: superadminTargetsNeedSuperadmin}
	p[perm(ResourceUser, ActionUpdate)] = Rule{Roles: topTier, Eligible: superadminTargetsNeedSuperadmin}
	p[perm(ResourceUser, ActionUpdateProfile)] = Rule{Roles: everyone, Eligible: func(a *Actor, r *Resource) string {
		if r.ID != a.ID {
			return "profiles can only be edited by their owner"
		}
		return ""
	}}
	notSelf := func(a *Actor, r *Resource) string {
		if r.ID == a.ID {
			return "users cannot perform this action on themselves"
		}
		return superadminTargetsNeedSuperadmin(a, r)
	}
	p[perm(ResourceUser, ActionDelete)] = Rule{Roles: topTier, Eligible: notSelf}
	p[perm(ResourceUser, ActionAssignRole)] = Rule{Roles: topTier, Eligible: notSelf}
}

func perm(r ResourceType, a Action) Permission {
	return Permission{Resource: r, Action: a}
}

// with copies base and applies fn to the copy
func with(base Rule, fn func(*Rule)) Rule {
	r := base
	fn(&r)
	return r
}

func isTerminalAssessment(status string) bool {
	return status == assessmentCompleted || status == assessmentCancelled
}

func terminalEditsOnly(_ *Actor, r *Resource) string {
	if !isTerminalAssessment(r.Status) {
		return ""
	}
	if len(r.Changes) == 0 {
		return fmt.Sprintf("assessment is %s; only %s may change",
			r.Status, strings.Join(TerminalEditableFields, ", "))
	}
	for _, field := range r.Changes {
		if !containsString(TerminalEditableFields, field) {
			return fmt.Sprintf("field %q cannot change once the assessment is %s", field, r.Status)
		}
	}
	return ""
}

func statusIn(statuses ...string) func(*Actor, *Resource) string {
	return func(_ *Actor, r *Resource) string {
		if containsString(statuses, r.Status) {
			return ""
		}
		return fmt.Sprintf("not allowed while %s is %q", r.Type, r.Status)
	}
}

func statusNotIn(statuses ...string) func(*Actor, *Resource) string {
	return func(_ *Actor, r *Resource) string {
		if containsString(statuses, r.Status) {
			return fmt.Sprintf("not allowed while %s is %q", r.Type, r.Status)
		}
		return ""
	}
}

func parentStatusNotIn(statuses ...string) func(*Actor, *Resource) string {
	return func(_ *Actor, r *Resource) string {
		if r.Parent != nil && containsString(statuses, r.Parent.Status) {
			return fmt.Sprintf("not allowed while the parent %s is %q", r.Parent.Type, r.Parent.Status)
		}
		return ""
	}
}

// dependentsRequire restricts deletion of records with children to roles
func dependentsRequire(roles RoleSet, what string) func(*Actor, *Resource) string {
	return func(a *Actor, r *Resource) string {
		if r.Dependents > 0 && !a.HasRole(roles...) {
			return fmt.Sprintf("%s with %d %s requires one of %v", r.Type, r.Dependents, what, roles)
		}
		return ""
	}
}

func superadminTargetsNeedSuperadmin(a *Actor, r *Resource) string {
	if RoleSet(r.Roles).Contains(RoleSuperAdmin) && !a.IsSuperAdmin() {
		return "only a superadmin may manage superadmin accounts"
	}
	return ""
}

func teamMember(a *Actor, r *Resource) bool {
	return a.MemberOf(r.ID)
}

func teamLeader(a *Actor, r *Resource) bool {
	return a.LeadsTeam(r.ID)
}

func teamManager(a *Actor, r *Resource) bool {
	return containsID(a.ManagedTeamIDs, r.ID)
}

func selfOrTeammate(a *Actor, r *Resource) bool {
	if r.ID == a.ID {
		return true
	}
	return r.TeamID != nil && a.MemberOf(*r.TeamID)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
