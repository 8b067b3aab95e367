// internal/scope/registry.go
package scope

import (
	"context"
	"sort"
	"sync"

	"github.com/arbiterhq/arbiter/internal/policy"
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * In-memory policy registry and scope resolver.
 *
 * Holds the authored definitions for each tenant and answers the two
 * questions evaluation asks before any rule is scanned: which policies apply
 * to this resource, and what does a given version's document look like.
 *
 * Applicability is containment, not equality: a resource at record
 * granularity is governed by record, entity_version, entity, module and
 * global policies alike. The determinism comparator later ranks their rules
 * by scope specificity; resolution only filters out policies that cannot
 * match at all.
 *
 * Replace swaps a tenant's whole definition set atomically, which is the
 * unit of hot reload for file-backed bundles.
 */

// Registry is a concurrency-safe definition store for one process.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string][]types.PolicyDefinition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tenants: make(map[string][]types.PolicyDefinition)}
}

// Replace installs a tenant's full definition set, dropping the previous one.
func (r *Registry) Replace(tenantID string, defs []types.PolicyDefinition) {
	copied := make([]types.PolicyDefinition, len(defs))
	copy(copied, defs)
	r.mu.Lock()
	r.tenants[tenantID] = copied
	r.mu.Unlock()
}

// ResolvePolicies returns references to every policy whose scope contains the
// resource, ordered by policy ID for a stable iteration order.
func (r *Registry) ResolvePolicies(_ context.Context, tenantID string, resource types.Resource) ([]policy.PolicyRef, error) {
	r.mu.RLock()
	defs := r.tenants[tenantID]
	r.mu.RUnlock()

	var refs []policy.PolicyRef
	for i := range defs {
		def := &defs[i]
		if !Applies(def.ScopeType, def.ScopeRef, resource) {
			continue
		}
		refs = append(refs, policy.PolicyRef{
			ID:        def.ID,
			Name:      def.Name,
			VersionID: def.VersionID,
			ScopeType: def.ScopeType,
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// LoadDefinition returns the definition for one version, or nil when the
// tenant holds no such version.
func (r *Registry) LoadDefinition(_ context.Context, tenantID, versionID string) (*types.PolicyDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.tenants[tenantID] {
		if r.tenants[tenantID][i].VersionID == versionID {
			def := r.tenants[tenantID][i]
			return &def, nil
		}
	}
	return nil, nil
}

// Applies reports whether a policy at the given scope governs the resource.
func Applies(scope types.ScopeType, ref types.ScopeRef, resource types.Resource) bool {
	switch scope {
	case types.ScopeGlobal:
		return true
	case types.ScopeModule:
		return ref.Module != "" && ref.Module == resource.Module
	case types.ScopeEntity:
		return ref.EntityType != "" && ref.EntityType == resource.Type
	case types.ScopeEntityVersion:
		return ref.EntityType == resource.Type && ref.EntityVersion != "" && ref.EntityVersion == resource.Version
	case types.ScopeRecord:
		return ref.EntityType == resource.Type && ref.RecordID != "" && ref.RecordID == resource.ID
	default:
		return false
	}
}
