// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/arbiterhq/arbiter/internal/policy"
	"github.com/arbiterhq/arbiter/internal/scope"
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Typed store accessors.
 *
 * Store backs three engine collaborators at once: scope resolution (which
 * policies govern a resource), definition loading (the JSON document behind
 * a version) and the operation catalog. Policy documents are immutable per
 * version; publishing a change inserts a new policy_versions row and flips
 * current_version_id on the policy.
 *
 * Scope columns on policies are a denormalization of the document's scope
 * block so resolution never decodes JSON.
 */

// policyRow mirrors the policies table.
type policyRow struct {
	ID                 string `db:"id"`
	TenantID           string `db:"tenant_id"`
	Name               string `db:"name"`
	CurrentVersionID   string `db:"current_version_id"`
	ScopeType          string `db:"scope_type"`
	ScopeModule        string `db:"scope_module"`
	ScopeEntityType    string `db:"scope_entity_type"`
	ScopeEntityVersion string `db:"scope_entity_version"`
	ScopeRecordID      string `db:"scope_record_id"`
}

// versionRow mirrors the policy_versions table.
type versionRow struct {
	VersionID string `db:"version_id"`
	PolicyID  string `db:"policy_id"`
	TenantID  string `db:"tenant_id"`
	Document  string `db:"document"`
}

// Store is the SQL-backed policy and catalog store.
type Store struct {
	db      *sqlx.DB
	queries *Queries
}

// New wires a store over an open database.
func New(db *sqlx.DB) (*Store, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, queries: queries}, nil
}

// SavePolicy publishes a definition: inserts a new immutable version row and
// creates or repoints the policy row.
func (s *Store) SavePolicy(ctx context.Context, def *types.PolicyDefinition) error {
	if def == nil {
		return fmt.Errorf("definition cannot be nil")
	}
	if def.ID == "" || def.TenantID == "" || def.VersionID == "" {
		return fmt.Errorf("definition must carry id, tenant and version")
	}

	document, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding policy document: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := s.queries.Exec("insert-policy-version",
		def.VersionID, def.ID, def.TenantID, string(document), now); err != nil {
		return fmt.Errorf("inserting policy version %s: %w", def.VersionID, err)
	}

	existing, err := s.getPolicy(def.TenantID, def.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err = s.queries.Exec("insert-policy",
			def.ID, def.TenantID, def.Name, def.VersionID,
			string(def.ScopeType), def.ScopeRef.Module, def.ScopeRef.EntityType,
			def.ScopeRef.EntityVersion, def.ScopeRef.RecordID, now, now)
		if err != nil {
			return fmt.Errorf("inserting policy %s: %w", def.ID, err)
		}
		return nil
	}

	if _, err := s.queries.Exec("update-policy-version",
		def.VersionID, now, def.TenantID, def.ID); err != nil {
		return fmt.Errorf("updating policy %s: %w", def.ID, err)
	}
	return nil
}

// DeletePolicy removes a policy row. Version rows remain for audit.
func (s *Store) DeletePolicy(ctx context.Context, tenantID, policyID string) error {
	_, err := s.queries.Exec("delete-policy", tenantID, policyID)
	return err
}

// ResolvePolicies returns references to every stored policy whose scope
// contains the resource.
func (s *Store) ResolvePolicies(_ context.Context, tenantID string, resource types.Resource) ([]policy.PolicyRef, error) {
	var rows []policyRow
	if err := s.queries.Select("list-policies-by-tenant", &rows, tenantID); err != nil {
		return nil, fmt.Errorf("listing policies for tenant %s: %w", tenantID, err)
	}

	var refs []policy.PolicyRef
	for _, row := range rows {
		scopeType := types.ScopeType(row.ScopeType)
		ref := types.ScopeRef{
			Module:        row.ScopeModule,
			EntityType:    row.ScopeEntityType,
			EntityVersion: row.ScopeEntityVersion,
			RecordID:      row.ScopeRecordID,
		}
		if !scope.Applies(scopeType, ref, resource) {
			continue
		}
		refs = append(refs, policy.PolicyRef{
			ID:        row.ID,
			Name:      row.Name,
			VersionID: row.CurrentVersionID,
			ScopeType: scopeType,
		})
	}
	return refs, nil
}

// LoadDefinition returns the decoded document for one version, or nil when
// the version does not exist.
func (s *Store) LoadDefinition(_ context.Context, tenantID, versionID string) (*types.PolicyDefinition, error) {
	var row versionRow
	err := s.queries.Get("get-policy-version", &row, tenantID, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading policy version %s: %w", versionID, err)
	}

	var def types.PolicyDefinition
	if err := json.Unmarshal([]byte(row.Document), &def); err != nil {
		return nil, fmt.Errorf("decoding policy version %s: %w", versionID, err)
	}
	return &def, nil
}

// RegisterOperation adds one catalog operation.
func (s *Store) RegisterOperation(ctx context.Context, op types.Operation) error {
	if op.Code == "" {
		return fmt.Errorf("operation code cannot be empty")
	}
	id := op.ID
	if id == "" {
		id = string(types.NewPolicyID())
	}
	_, err := s.queries.Exec("insert-operation", id, op.Namespace, op.Code, op.Description)
	return err
}

// GetOperation resolves a full code against the catalog, nil when unknown.
// The namespace is everything before the first dot.
func (s *Store) GetOperation(_ context.Context, fullCode string) (*types.Operation, error) {
	var op types.Operation
	var err error
	if namespace, code, ok := strings.Cut(fullCode, "."); ok {
		err = s.queries.Get("get-operation-by-full-code", &op, namespace, code)
	} else {
		err = s.queries.Get("get-operation-by-code", &op, fullCode)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving operation %s: %w", fullCode, err)
	}
	return &op, nil
}

// ListOperations returns the full catalog ordered by full code.
func (s *Store) ListOperations(_ context.Context) ([]types.Operation, error) {
	var ops []types.Operation
	if err := s.queries.Select("list-operations", &ops); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *Store) getPolicy(tenantID, policyID string) (*policyRow, error) {
	var row policyRow
	err := s.queries.Get("get-policy", &row, tenantID, policyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading policy %s: %w", policyID, err)
	}
	return &row, nil
}
