package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/envelope"
	"github.com/shopspring/decimal"
)

// Store is an in-memory envelope store implementing envelope.Updater.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu        sync.RWMutex
	envelopes map[string]*domain.Envelope
}

// NewStore creates a store seeded with envelopes.
func NewStore(seed ...domain.Envelope) *Store {
	s := &Store{envelopes: make(map[string]*domain.Envelope, len(seed))}
	for _, env := range seed {
		envCopy := env
		s.envelopes[env.ID] = &envCopy
	}
	return s
}

// NewStoreFromJSON seeds a store from a JSON array of envelopes.
func NewStoreFromJSON(data []byte) (*Store, error) {
	var seed []domain.Envelope
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("NewStoreFromJSON: %w", err)
	}
	for i, env := range seed {
		if env.ID == "" {
			return nil, fmt.Errorf("NewStoreFromJSON: envelope %d has no id", i)
		}
	}
	return NewStore(seed...), nil
}

// Save creates or replaces an envelope.
func (s *Store) Save(ctx context.Context, env domain.Envelope) error {
	if env.ID == "" {
		return fmt.Errorf("envelope ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.envelopes[env.ID] = &env
	return nil
}

// GetEnvelope returns a copy of the envelope with id.
func (s *Store) GetEnvelope(ctx context.Context, id string) (*domain.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, ok := s.envelopes[id]
	if !ok {
		return nil, fmt.Errorf("envelope %s: %w", id, domain.ErrNotFound)
	}
	envCopy := *env
	return &envCopy, nil
}

// ListEnvelopes returns the envelopes of a group ordered by id. An empty
// groupID returns every envelope.
func (s *Store) ListEnvelopes(ctx context.Context, groupID string) ([]domain.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.Envelope{}
	for _, env := range s.envelopes {
		if groupID != "" && env.GroupID != groupID {
			continue
		}
		result = append(result, *env)
	}
	slices.SortFunc(result, func(a, b domain.Envelope) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// UpdateAllocation implements envelope.Updater.
func (s *Store) UpdateAllocation(ctx context.Context, envelopeID string, amount decimal.Decimal) (*domain.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env, ok := s.envelopes[envelopeID]
	if !ok {
		return nil, fmt.Errorf("envelope %s: %w", envelopeID, domain.ErrNotFound)
	}
	env.AllocatedAmount = amount

	envCopy := *env
	return &envCopy, nil
}

var _ envelope.Store = (*Store)(nil)
