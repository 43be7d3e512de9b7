package authz

import "fmt"

// Rule is the allow-list entry for one (resource, action) pair.
//
// A rule is evaluated in a fixed order: tenant, role, state, scope and
// eligibility. State, Scope and Eligible return an empty string (or true for
// Scope) when the gate passes.
type Rule struct {
	// Roles may perform the action at all.
	Roles RoleSet
	// Narrowed roles only act on resources within their own scope. Roles not
	// listed here are tenant-wide for this action.
	Narrowed RoleSet
	// CrossTenant lets a superadmin act outside their own company.
	CrossTenant bool
	// OpenStates lists resource statuses in which scope is not enforced.
	OpenStates []string
	State      func(a *Actor, r *Resource) string
	Scope      func(a *Actor, r *Resource) bool
	Eligible   func(a *Actor, r *Resource) string
}

// Policy maps every known permission to its rule
type Policy map[Permission]Rule

// Engine evaluates permissions against a Policy. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	policy Policy
}

// Option configures an Engine
type Option func(*Engine)

// WithRule overrides or adds the rule for a permission
func WithRule(p Permission, rule Rule) Option {
	return func(e *Engine) {
		e.policy[p] = rule
	}
}

// NewEngine creates an engine backed by the built-in policy
func NewEngine(opts ...Option) *Engine {
	e := &Engine{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Can reports whether actor may perform action on target. A nil target means
// a collection-level check such as view_any or create.
func (e *Engine) Can(actor *Actor, resource ResourceType, action Action, target *Resource) bool {
	return e.Evaluate(actor, Permission{Resource: resource, Action: action}, target).Allowed
}

// Evaluate runs every gate for the permission and returns the decision.
// Denial is reported in the decision, never as an error.
func (e *Engine) Evaluate(actor *Actor, perm Permission, target *Resource) *Decision {
	d := &Decision{Permission: perm}

	if actor == nil {
		return d.deny(GateRole, "no authenticated actor")
	}

	rule, ok := e.policy[perm]
	if !ok {
		return d.deny(GateUndefined, fmt.Sprintf("no policy for %s", perm))
	}

	if target != nil && !(rule.CrossTenant && actor.IsSuperAdmin()) {
		if !sameTenant(actor, target) {
			return d.deny(GateTenant, "resource belongs to another company")
		}
	}

	d.MatchedRoles = rule.Roles.Matching(actor.Roles)
	if len(d.MatchedRoles) == 0 && !actor.HasPermission(perm) {
		return d.deny(GateRole, fmt.Sprintf("no role grants %s", perm))
	}

	if target == nil {
		return d.allow()
	}

	if rule.State != nil {
		if reason := rule.State(actor, target); reason != "" {
			return d.deny(GateState, reason)
		}
	}

	if e.needsScope(rule, d.MatchedRoles, target) {
		scope := rule.Scope
		if scope == nil {
			scope = BelongsToActorScope
		}
		if !scope(actor, target) {
			return d.deny(GateScope, "resource is outside the actor's assignments and teams")
		}
	}

	if rule.Eligible != nil {
		if reason := rule.Eligible(actor, target); reason != "" {
			return d.deny(GateEligibility, reason)
		}
	}

	return d.allow()
}

// Rule returns the rule registered for p
func (e *Engine) Rule(p Permission) (Rule, bool) {
	rule, ok := e.policy[p]
	return rule, ok
}

// Permissions lists every permission the engine has a rule for
func (e *Engine) Permissions() []Permission {
	perms := make([]Permission, 0, len(e.policy))
	for p := range e.policy {
		perms = append(perms, p)
	}
	return perms
}

// needsScope reports whether the scope gate applies. Any matched tenant-wide
// role lifts it; actors acting through an explicit grant alone are narrowed.
func (e *Engine) needsScope(rule Rule, matched []Role, target *Resource) bool {
	for _, r := range matched {
		if !rule.Narrowed.Contains(r) {
			return false
		}
	}
	for _, s := range rule.OpenStates {
		if target.Status == s {
			return false
		}
	}
	return true
}

// BelongsToActorScope reports whether the resource (or, failing that, one of
// its parents) is assigned to, created by or lead-owned by the actor, or sits
// in a team the actor manages or coordinates.
func BelongsToActorScope(actor *Actor, target *Resource) bool {
	for r := target; r != nil; r = r.Parent {
		if isActor(r.AssignedTo, actor) || isActor(r.CreatedBy, actor) || isActor(r.LeadOwnerID, actor) {
			return true
		}
		if r.TeamID != nil && actor.LeadsTeam(*r.TeamID) {
			return true
		}
	}
	return false
}

func isActor(id *int64, actor *Actor) bool {
	return id != nil && *id == actor.ID
}

func sameTenant(actor *Actor, target *Resource) bool {
	for r := target; r != nil; r = r.Parent {
		if r.CompanyID != actor.CompanyID {
			return false
		}
	}
	return true
}

func (d *Decision) allow() *Decision {
	d.Allowed = true
	d.Gate = GateNone
	if len(d.MatchedRoles) > 0 {
		d.Reason = fmt.Sprintf("granted by roles: %v", d.MatchedRoles)
	} else {
		d.Reason = "granted by explicit permission"
	}
	return d
}

func (d *Decision) deny(gate Gate, reason string) *Decision {
	d.Allowed = false
	d.Gate = gate
	d.Reason = reason
	return d
}
