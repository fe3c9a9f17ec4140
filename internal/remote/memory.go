package remote

import (
	"context"
	"sync"
)

// Op names a remote call for failure injection.
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Memory is an in-process Store. It counts successful writes and can be told
// to fail calls, which makes it the remote of choice for tests and offline
// demos.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]Document
	writes  int
	failure func(op Op, p Path) error
	down    bool
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// SetFailure installs fn to be consulted before every call; a non-nil result
// is returned instead of performing the call. Pass nil to clear it.
func (m *Memory) SetFailure(fn func(op Op, p Path) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = fn
}

// SetDown makes Ping fail, simulating lost connectivity.
func (m *Memory) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *Memory) check(op Op, p Path) error {
	if m.failure != nil {
		return m.failure(op, p)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, p Path) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(OpGet, p); err != nil {
		return nil, false, err
	}
	doc, ok := m.docs[p.String()]
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

func (m *Memory) Put(_ context.Context, p Path, doc Document, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(OpPut, p); err != nil {
		return err
	}
	key := p.String()
	existing, ok := m.docs[key]
	if merge && ok {
		next := existing.Clone()
		for k, v := range doc {
			next[k] = v
		}
		m.docs[key] = next
	} else {
		m.docs[key] = doc.Clone()
	}
	m.writes++
	return nil
}

func (m *Memory) Delete(_ context.Context, p Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(OpDelete, p); err != nil {
		return err
	}
	delete(m.docs, p.String())
	m.writes++
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrUnreachable
	}
	return nil
}

// Writes is the number of successful Put and Delete calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Len is the number of stored documents.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}
