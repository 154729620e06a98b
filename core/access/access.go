// Package access implements the capability model used to authorize document
// operations. Each collection supplies a predicate per operation; a predicate
// is a pure function of the requesting principal and resolves to one of three
// decisions: unconditional allow, unconditional deny, or a scoped filter that
// restricts the operation to documents matching persistence-level criteria.
package access

// Operation identifies the document lifecycle operation being authorized.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Principal is the authenticated (or anonymous) actor behind a request.
// The engine never constructs one; it is supplied per request by an external
// authentication collaborator. An empty ID means anonymous.
type Principal struct {
	ID     string         `json:"id,omitempty"`
	Role   string         `json:"role,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`
}

// Anonymous reports whether the principal carries no identity.
func (p Principal) Anonymous() bool {
	return p.ID == ""
}

// DecisionKind discriminates the AccessDecision variants.
type DecisionKind string

const (
	DecisionAllow  DecisionKind = "allow"
	DecisionDeny   DecisionKind = "deny"
	DecisionScoped DecisionKind = "scoped"
)

// AccessDecision is the result of evaluating a predicate. For a scoped
// decision, Criteria is a field→value equality map that the persistence layer
// must apply as a query constraint, never as a post-hoc in-memory filter, so
// pagination counts stay correct.
type AccessDecision struct {
	Kind     DecisionKind
	Criteria map[string]any
}

// Allow grants the operation unconditionally.
func Allow() AccessDecision {
	return AccessDecision{Kind: DecisionAllow}
}

// Deny refuses the operation unconditionally.
func Deny() AccessDecision {
	return AccessDecision{Kind: DecisionDeny}
}

// Scoped permits the operation only against documents matching criteria.
func Scoped(criteria map[string]any) AccessDecision {
	return AccessDecision{Kind: DecisionScoped, Criteria: criteria}
}

// Predicate decides whether an operation is permitted for a principal.
// Predicates must be total and side-effect free: they are evaluated
// synchronously, possibly repeatedly, and must handle the anonymous principal
// without special-casing by the caller.
type Predicate func(p Principal) AccessDecision

// Policy maps each operation to its predicate. A missing entry fails closed.
type Policy map[Operation]Predicate

// Evaluate resolves the decision for an operation against a policy.
// A missing predicate yields Deny. A scoped decision on create is meaningless
// (there is no existing document to filter) and is collapsed to Deny.
func Evaluate(policy Policy, op Operation, p Principal) AccessDecision {
	if policy == nil {
		return Deny()
	}
	predicate, ok := policy[op]
	if !ok || predicate == nil {
		return Deny()
	}
	decision := predicate(p)
	if op == OperationCreate && decision.Kind == DecisionScoped {
		return Deny()
	}
	return decision
}

// AllowAll is a predicate granting the operation to any principal, including
// anonymous ones. Matches the original public-read collections.
func AllowAll(Principal) AccessDecision {
	return Allow()
}

// Authenticated grants the operation to any principal with an identity.
func Authenticated(p Principal) AccessDecision {
	if p.Anonymous() {
		return Deny()
	}
	return Allow()
}

// RequireRole grants the operation only to principals carrying the role.
func RequireRole(role string) Predicate {
	return func(p Principal) AccessDecision {
		if p.Role == role {
			return Allow()
		}
		return Deny()
	}
}

// OwnerOnly scopes the operation to documents whose ownerField equals the
// principal's id; admins pass unscoped. Anonymous principals are denied.
func OwnerOnly(ownerField string) Predicate {
	return func(p Principal) AccessDecision {
		if p.Role == "admin" {
			return Allow()
		}
		if p.Anonymous() {
			return Deny()
		}
		return Scoped(map[string]any{ownerField: p.ID})
	}
}
