package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// HorseHistoryStore is an in-memory implementation of storage.HorseHistoryStore.
type HorseHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HorseHistoryRow // keyed by horse_id|seq
}

// NewHorseHistoryStore creates a new in-memory horse history store.
func NewHorseHistoryStore() *HorseHistoryStore {
	return &HorseHistoryStore{
		data: make(map[string]*domain.HorseHistoryRow),
	}
}

var _ storage.HorseHistoryStore = (*HorseHistoryStore)(nil)

func historyKey(horseID string, seq int) string {
	return fmt.Sprintf("%s|%d", horseID, seq)
}

// InsertBulk adds career rows atomically. Fails entire batch on any duplicate.
func (s *HorseHistoryStore) InsertBulk(_ context.Context, rows []*domain.HorseHistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.HorseID == "" {
			return storage.ErrInvalidInput
		}
		key := historyKey(r.HorseID, r.Seq)
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
		s.data[historyKey(r.HorseID, r.Seq)] = &copy
	}
	return nil
}

// GetByHorseID retrieves all career rows of a horse, ordered by seq ASC.
func (s *HorseHistoryStore) GetByHorseID(_ context.Context, horseID string) ([]*domain.HorseHistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HorseHistoryRow
	for _, r := range s.data {
		if r.HorseID == horseID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

// GetByHorseIDs retrieves career rows for many horses, grouped by horse id.
func (s *HorseHistoryStore) GetByHorseIDs(ctx context.Context, horseIDs []string) (map[string][]*domain.HorseHistoryRow, error) {
	out := make(map[string][]*domain.HorseHistoryRow, len(horseIDs))
	for _, id := range horseIDs {
		rows, err := s.GetByHorseID(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			out[id] = rows
		}
	}
	return out, nil
}
