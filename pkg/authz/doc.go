// Package authz decides whether an actor may perform an action on a resource.
//
// # Overview
//
// Every tenant resource (assessments, leads, invoices, quotations, customers,
// teams, pricing, proof content, users and so on) is guarded by an explicit
// allow-list keyed by "resource:action". There is no role inheritance: each
// rule enumerates the roles it admits.
//
// # Evaluation Order
//
// A decision runs the following gates and stops at the first denial:
//
//	1. tenant       actor.CompanyID must match the resource and its parents
//	2. role         actor holds a listed role or an explicit permission grant
//	3. state        the resource status permits the action
//	4. scope        narrowed roles must own, be assigned, own the lead or lead the team
//	5. eligibility  action-specific checks such as dependents or self-protection
//
// Collection-level checks (view_any, create, export) pass a nil resource and
// stop after the role gate. Denials carry the failing Gate so callers can log
// and count them.
//
// # Usage Example
//
//	engine := authz.NewEngine()
//	d := engine.Evaluate(actor, authz.Permission{
//		Resource: authz.ResourceAssessment,
//		Action:   authz.ActionUpdate,
//	}, &authz.Resource{
//		Type:      authz.ResourceAssessment,
//		CompanyID: a.CompanyID,
//		Status:    string(a.Status),
//		Changes:   []string{"notes"},
//	})
//	if !d.Allowed {
//		return d.Err()
//	}
//
// # Actors
//
// Store materializes actors from SQL. Provider fronts it with an expirable LRU
// and an optional Redis cache; call Invalidate after role or team changes.
package authz
