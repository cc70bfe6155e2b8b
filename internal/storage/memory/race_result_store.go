package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// RaceResultStore is an in-memory implementation of storage.RaceResultStore.
type RaceResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RaceResultRow // keyed by race_id|horse_id
}

// NewRaceResultStore creates a new in-memory race result store.
func NewRaceResultStore() *RaceResultStore {
	return &RaceResultStore{
		data: make(map[string]*domain.RaceResultRow),
	}
}

var _ storage.RaceResultStore = (*RaceResultStore)(nil)

func resultKey(raceID, horseID string) string {
	return fmt.Sprintf("%s|%s", raceID, horseID)
}

// InsertBulk adds result rows atomically. Fails entire batch on any duplicate.
func (s *RaceResultStore) InsertBulk(_ context.Context, rows []*domain.RaceResultRow) error {
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
		copy := *r
		s.data[resultKey(r.RaceID, r.HorseID)] = &copy
	}
	return nil
}

// GetByRaceID retrieves all result rows of a race, ordered by umaban ASC.
func (s *RaceResultStore) GetByRaceID(_ context.Context, raceID string) ([]*domain.RaceResultRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RaceResultRow
	for _, r := range s.data {
		if r.RaceID == raceID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Umaban < result[j].Umaban })
	return result, nil
}

// GetByRaceIDs retrieves result rows for many races, grouped by race id.
func (s *RaceResultStore) GetByRaceIDs(ctx context.Context, raceIDs []string) (map[string][]*domain.RaceResultRow, error) {
	out := make(map[string][]*domain.RaceResultRow, len(raceIDs))
	for _, id := range raceIDs {
		rows, err := s.GetByRaceID(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			out[id] = rows
		}
	}
	return out, nil
}
