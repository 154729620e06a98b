package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_DefaultsToDeny(t *testing.T) {
	// No policy at all.
	decision := Evaluate(nil, OperationRead, Principal{ID: "u1"})
	assert.Equal(t, DecisionDeny, decision.Kind)

	// Policy present but operation unbound.
	policy := Policy{OperationRead: AllowAll}
	decision = Evaluate(policy, OperationDelete, Principal{ID: "u1"})
	assert.Equal(t, DecisionDeny, decision.Kind)
}

func TestEvaluate_ScopedOnCreateDenies(t *testing.T) {
	policy := Policy{
		OperationCreate: func(Principal) AccessDecision {
			return Scoped(map[string]any{"owner": "u1"})
		},
	}
	decision := Evaluate(policy, OperationCreate, Principal{ID: "u1"})
	assert.Equal(t, DecisionDeny, decision.Kind)
}

func TestAllowAll(t *testing.T) {
	assert.Equal(t, DecisionAllow, AllowAll(Principal{}).Kind)
	assert.Equal(t, DecisionAllow, AllowAll(Principal{ID: "u1"}).Kind)
}

func TestAuthenticated(t *testing.T) {
	assert.Equal(t, DecisionDeny, Authenticated(Principal{}).Kind)
	assert.Equal(t, DecisionAllow, Authenticated(Principal{ID: "u1"}).Kind)
}

func TestRequireRole(t *testing.T) {
	admin := RequireRole("admin")
	assert.Equal(t, DecisionAllow, admin(Principal{ID: "u1", Role: "admin"}).Kind)
	assert.Equal(t, DecisionDeny, admin(Principal{ID: "u1", Role: "editor"}).Kind)
	assert.Equal(t, DecisionDeny, admin(Principal{}).Kind)
}

func TestOwnerOnly(t *testing.T) {
	predicate := OwnerOnly("customer")

	decision := predicate(Principal{ID: "u1"})
	assert.Equal(t, DecisionScoped, decision.Kind)
	assert.Equal(t, map[string]any{"customer": "u1"}, decision.Criteria)

	// Admins bypass the scope.
	assert.Equal(t, DecisionAllow, predicate(Principal{ID: "u2", Role: "admin"}).Kind)

	// Anonymous callers get nothing.
	assert.Equal(t, DecisionDeny, predicate(Principal{}).Kind)
}

func TestPrincipal_Anonymous(t *testing.T) {
	assert.True(t, Principal{}.Anonymous())
	assert.False(t, Principal{ID: "u1"}.Anonymous())
}
