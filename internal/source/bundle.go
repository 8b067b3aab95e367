// internal/source/bundle.go

// Package source loads policy bundles from disk and keeps the in-process
// registry current as bundle files change.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arbiterhq/arbiter/internal/types"
)

// Bundle is one decoded policy bundle file.
type Bundle struct {
	Operations []types.Operation       `yaml:"operations,omitempty"`
	Policies   []types.PolicyDefinition `yaml:"policies"`
}

// LoadBundleFile decodes a single YAML bundle.
func LoadBundleFile(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle %s: %w", path, err)
	}

	var bundle Bundle
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decoding bundle %s: %w", path, err)
	}

	for i := range bundle.Policies {
		def := &bundle.Policies[i]
		if def.ID == "" {
			return nil, fmt.Errorf("bundle %s: policy at index %d has no id", path, i)
		}
		if def.TenantID == "" {
			return nil, fmt.Errorf("bundle %s: policy %s has no tenant", path, def.ID)
		}
		if def.VersionID == "" {
			return nil, fmt.Errorf("bundle %s: policy %s has no version", path, def.ID)
		}
	}
	return &bundle, nil
}

// LoadDir decodes every .yaml/.yml bundle under dir, non-recursively, in
// lexical filename order so later files win deterministically.
func LoadDir(dir string) ([]Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bundle directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	bundles := make([]Bundle, 0, len(names))
	for _, name := range names {
		bundle, err := LoadBundleFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, *bundle)
	}
	return bundles, nil
}

// GroupByTenant flattens bundles into per-tenant definition sets, the unit
// the registry replaces atomically.
func GroupByTenant(bundles []Bundle) map[string][]types.PolicyDefinition {
	grouped := make(map[string][]types.PolicyDefinition)
	for _, bundle := range bundles {
		for _, def := range bundle.Policies {
			grouped[def.TenantID] = append(grouped[def.TenantID], def)
		}
	}
	return grouped
}
