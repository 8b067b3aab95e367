// internal/catalog/catalog.go

// Package catalog maintains the operation catalog actions resolve against.
// An evaluation naming an operation outside the catalog is rejected as
// invalid input before any rules are scanned.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arbiterhq/arbiter/internal/types"
)

// Memory is a concurrency-safe in-process operation catalog.
type Memory struct {
	mu  sync.RWMutex
	ops map[string]types.Operation
}

// NewMemory returns a catalog pre-loaded with the given operations.
func NewMemory(ops ...types.Operation) (*Memory, error) {
	m := &Memory{ops: make(map[string]types.Operation, len(ops))}
	for _, op := range ops {
		if err := m.Register(op); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds one operation. Registering an already-known full code
// replaces the earlier entry.
func (m *Memory) Register(op types.Operation) error {
	if op.Code == "" {
		return fmt.Errorf("operation code cannot be empty")
	}
	m.mu.Lock()
	m.ops[op.FullCode()] = op
	m.mu.Unlock()
	return nil
}

// GetOperation resolves a full code, returning nil when unknown.
func (m *Memory) GetOperation(_ context.Context, fullCode string) (*types.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.ops[fullCode]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

// ListOperations returns all operations ordered by full code. The stable
// order keeps permission maps deterministic across calls.
func (m *Memory) ListOperations(_ context.Context) ([]types.Operation, error) {
	m.mu.RLock()
	out := make([]types.Operation, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, op)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FullCode() < out[j].FullCode() })
	return out, nil
}
