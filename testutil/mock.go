// Package testutil provides test helpers for toolrack (e.g. MockProxy).
package testutil

import (
	"context"

	"github.com/toolrack/toolrack"
)

// MockProxy is a configurable Proxy implementation for tests.
type MockProxy struct {
	CallFn func(ctx context.Context, args map[string]any) (any, error)
	Calls  []map[string]any
}

// Call records the arguments and runs CallFn if set, otherwise returns nil.
func (m *MockProxy) Call(ctx context.Context, args map[string]any) (any, error) {
	m.Calls = append(m.Calls, args)
	if m.CallFn != nil {
		return m.CallFn(ctx, args)
	}
	return nil, nil
}

// Ensure MockProxy implements Proxy.
var _ toolrack.Proxy = (*MockProxy)(nil)
