package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Store is an in-memory implementation of InvocationStore
type Store struct {
	mu          sync.RWMutex
	invocations map[string]*domain.InvocationRecord
}

// Ensure Store implements InvocationStore
var _ ports.InvocationStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		invocations: make(map[string]*domain.InvocationRecord),
	}
}

func (s *Store) SaveInvocation(ctx context.Context, rec *domain.InvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invocations[rec.ID]; exists {
		return fmt.Errorf("invocation %s already exists", rec.ID)
	}

	stored := *rec
	s.invocations[rec.ID] = &stored
	return nil
}

func (s *Store) GetInvocation(ctx context.Context, id string) (*domain.InvocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.invocations[id]
	if !exists {
		return nil, fmt.Errorf("invocation %s: %w", id, ports.ErrNotFound)
	}

	out := *rec
	return &out, nil
}

func (s *Store) ListInvocations(ctx context.Context, opts ports.ListOptions) ([]*domain.InvocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.InvocationRecord
	for _, rec := range s.invocations {
		if opts.Method != "" && rec.Method != opts.Method {
			continue
		}
		out := *rec
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = ports.DefaultListLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (s *Store) Close() error {
	return nil
}
