package registry

import (
	"fmt"

	"github.com/google/uuid"
)

// Role identifies a protocol permission. Every mutating entry point in
// the ledger, auction book, and liquidator is gated by one of these.
type Role string

const (
	RoleWhitelisted  Role = "whitelisted"   // end users: vault and auction operations
	RoleAssetManager Role = "asset_manager" // deposit adapters and asset configuration
	RoleLiquidator   Role = "liquidator"    // liquidation policy layer
	RoleTeller       Role = "teller"        // interest accrual driver and price feed
	RoleGov          Role = "gov"           // administrative teardown and penalties
)

// ParseRole maps a role name to its Role, rejecting unknown names.
func ParseRole(name string) (Role, error) {
	switch Role(name) {
	case RoleWhitelisted, RoleAssetManager, RoleLiquidator, RoleTeller, RoleGov:
		return Role(name), nil
	}
	return "", fmt.Errorf("registry: unknown role %q", name)
}

// Registry is the in-memory role store. Checks fail closed: an unknown
// role or caller is simply not authorized.
type Registry struct {
	grants map[Role]map[uuid.UUID]bool
}

func NewRegistry() *Registry {
	return &Registry{
		grants: make(map[Role]map[uuid.UUID]bool),
	}
}

// HasRole reports whether caller holds role.
func (r *Registry) HasRole(role Role, caller uuid.UUID) bool {
	return r.grants[role][caller]
}

// Grant assigns role to account. Only gov may grant, except that a fresh
// registry (no gov assigned yet) accepts the first gov grant to bootstrap.
func (r *Registry) Grant(caller uuid.UUID, role Role, account uuid.UUID) error {
	if len(r.grants[RoleGov]) > 0 && !r.HasRole(RoleGov, caller) {
		return fmt.Errorf("registry: caller %s lacks gov role", caller)
	}
	if r.grants[role] == nil {
		r.grants[role] = make(map[uuid.UUID]bool)
	}
	r.grants[role][account] = true
	return nil
}

// Revoke removes role from account. Gov only.
func (r *Registry) Revoke(caller uuid.UUID, role Role, account uuid.UUID) error {
	if !r.HasRole(RoleGov, caller) {
		return fmt.Errorf("registry: caller %s lacks gov role", caller)
	}
	delete(r.grants[role], account)
	return nil
}
