package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FeatureRow // keyed by race_id|horse_id
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[string]*domain.FeatureRow),
	}
}

var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertBulk adds feature rows atomically. Fails entire batch on any duplicate.
func (s *FeatureStore) InsertBulk(_ context.Context, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RaceID == "" || r.HorseID == "" {
			return storage.ErrInvalidInput
		}
		key := resultKey(r.RaceID, r.HorseID)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		copy := r.Clone()
		s.data[resultKey(r.RaceID, r.HorseID)] = copy
	}
	return nil
}

// GetByRaceID retrieves all feature rows of a race, ordered by umaban ASC.
func (s *FeatureStore) GetByRaceID(_ context.Context, raceID string) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for _, r := range s.data {
		if r.RaceID == raceID {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool { return umabanOrder(result[i]) < umabanOrder(result[j]) })
	return result, nil
}

// umabanOrder sorts rows by horse number with the nil numbers of early
// race cards last.
func umabanOrder(r *domain.FeatureRow) int {
	if r.Umaban == nil {
		return math.MaxInt
	}
	return *r.Umaban
}
