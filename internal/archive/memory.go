package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var _ Ledger = (*Memory)(nil)

// Memory buffers added keys in process memory and writes them to the wrapped
// backend in one transaction on Finalize. Keys added since the last Finalize
// are lost if the process dies first.
type Memory struct {
	b       backend
	pending map[string]struct{}
}

func newMemory(b backend) *Memory {
	return &Memory{b: b, pending: make(map[string]struct{})}
}

// NewMemory wraps an *Embedded or *Remote ledger.
func NewMemory(l Ledger) (*Memory, error) {
	b, ok := l.(backend)
	if !ok {
		return nil, fmt.Errorf("archive: cannot buffer %T", l)
	}
	return newMemory(b), nil
}

func (m *Memory) String() string { return kindMemory + "+" + fmt.Sprint(m.b) }

// Backend returns the wrapped ledger.
func (m *Memory) Backend() Ledger { return m.b }

// Pending returns the number of keys waiting for Finalize.
func (m *Memory) Pending() int { return len(m.pending) }

// Check reports true for keys added in this run without querying the store.
func (m *Memory) Check(ctx context.Context, it *Item) (bool, error) {
	if m.pending == nil {
		return false, ErrClosed
	}
	key, err := m.b.keyOf(it)
	if err != nil {
		return false, err
	}
	if _, ok := m.pending[key]; ok {
		checksTotal.WithLabelValues(kindMemory, resultHit).Inc()
		return true, nil
	}
	return m.b.Check(ctx, it)
}

// Add queues the item's key for Finalize.
func (m *Memory) Add(ctx context.Context, it *Item) error {
	if m.pending == nil {
		return ErrClosed
	}
	key, err := m.b.keyOf(it)
	if err != nil {
		return err
	}
	m.pending[key] = struct{}{}
	addsTotal.WithLabelValues(kindMemory).Inc()
	return nil
}

// Finalize writes all pending keys in one transaction, discards the buffer
// and closes the wrapped backend.
func (m *Memory) Finalize(ctx context.Context) error {
	if m.pending == nil {
		return nil
	}
	var flushErr error
	if len(m.pending) > 0 {
		keys := make([]string, 0, len(m.pending))
		for key := range m.pending {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		if err := m.b.flush(ctx, keys); err != nil {
			flushErr = fmt.Errorf("finalize: %w", err)
		}
	}
	m.pending = nil
	return errors.Join(flushErr, m.b.Finalize(ctx))
}
