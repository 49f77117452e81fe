package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dvloznov/finance-dashboard/internal/bulk"
	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// Store is an in-memory implementation of bulk.OperationStore.
// It is safe for concurrent use. Data is lost on service restart.
type Store struct {
	mu         sync.RWMutex
	operations map[string]*bulk.Operation
}

// NewStore creates a new in-memory operation store.
func NewStore() *Store {
	return &Store{
		operations: make(map[string]*bulk.Operation),
	}
}

// SaveOperation implements the OperationStore interface.
func (s *Store) SaveOperation(ctx context.Context, op *bulk.Operation) error {
	if op.ID == "" {
		return fmt.Errorf("operation ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.operations[op.ID] = op.Clone()
	return nil
}

// GetOperation implements the OperationStore interface.
func (s *Store) GetOperation(ctx context.Context, id string) (*bulk.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, exists := s.operations[id]
	if !exists {
		return nil, fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	return op.Clone(), nil
}

// ListOperations implements the OperationStore interface. Results are
// ordered newest first.
func (s *Store) ListOperations(ctx context.Context, filter bulk.OperationFilter) ([]*bulk.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*bulk.Operation{}
	for _, op := range s.operations {
		if filter.Kind != "" && op.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && op.Status != filter.Status {
			continue
		}
		result = append(result, op.Clone())
	}

	slices.SortFunc(result, func(a, b *bulk.Operation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*bulk.Operation{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Ensure Store implements the OperationStore interface.
var _ bulk.OperationStore = (*Store)(nil)
