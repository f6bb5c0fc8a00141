package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/pkg/metrics"
)

const defaultCapacity = 10_000

// MemoryStore is a bounded, in-memory Store. Once full, saving a chart
// evicts the oldest one.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	charts   map[string]*model.Chart
	order    []string
	newID    func() string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		capacity: defaultCapacity,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.charts = make(map[string]*model.Chart, s.capacity)
	return s
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, c *model.Chart) (*model.Chart, error) {
	if c == nil {
		return nil, model.NewError(model.KindInvalidInput, "repository.save", ErrNilChart)
	}
	if err := ctx.Err(); err != nil {
		return nil, model.NewError(model.KindCancelled, "repository.save", err)
	}

	stored := *c
	stored.ID = s.newID()

	s.mu.Lock()
	for len(s.order) >= s.capacity {
		delete(s.charts, s.order[0])
		s.order = s.order[1:]
		metrics.RecordChartStoreEviction()
	}
	s.charts[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	size := len(s.charts)
	s.mu.Unlock()

	metrics.UpdateChartStoreSize(size)
	return &stored, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Chart, error) {
	s.mu.RLock()
	c, ok := s.charts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, model.NewError(model.KindNotFound, "repository.get", fmt.Errorf("%w: %q", ErrNotFound, id))
	}
	return c, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.charts)
}
