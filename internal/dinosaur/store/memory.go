package store

import (
	"context"
	"sync"
	"time"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
)

// MemoryStore is an in-process store used by tests and STORE_BACKEND=memory.
// Records are copied on the way in and out so callers never share state.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]*dinosaur.Dinosaur
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]*dinosaur.Dinosaur), now: time.Now}
}

func (m *MemoryStore) Create(ctx context.Context, d *dinosaur.Dinosaur) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = NewID()
	d.CreatedAt = dinosaur.Time(m.now().UTC())
	m.store[d.ID] = clone(d)
	return d.ID, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*dinosaur.Dinosaur, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*dinosaur.Dinosaur, 0, len(m.store))
	for _, d := range m.store {
		out = append(out, clone(d))
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, p dinosaur.Patch) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	p.Apply(d)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

func (m *MemoryStore) QueryByField(ctx context.Context, field, op string, value interface{}) ([]*dinosaur.Dinosaur, error) {
	if err := checkOperator(op); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*dinosaur.Dinosaur{}
	for _, d := range m.store {
		if d.Equals(field, value) {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func clone(d *dinosaur.Dinosaur) *dinosaur.Dinosaur {
	c := *d
	if d.IsCool != nil {
		c.IsCool = dinosaur.Bool(*d.IsCool)
	}
	if d.CreatedAt != nil {
		c.CreatedAt = dinosaur.Time(*d.CreatedAt)
	}
	return &c
}
