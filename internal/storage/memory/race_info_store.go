package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// RaceInfoStore is an in-memory implementation of storage.RaceInfoStore.
type RaceInfoStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RaceInfoRow // keyed by race_id
}

// NewRaceInfoStore creates a new in-memory race info store.
func NewRaceInfoStore() *RaceInfoStore {
	return &RaceInfoStore{
		data: make(map[string]*domain.RaceInfoRow),
	}
}

var _ storage.RaceInfoStore = (*RaceInfoStore)(nil)

// Insert adds a new race info row. Returns ErrDuplicateKey if race_id exists.
func (s *RaceInfoStore) Insert(_ context.Context, info *domain.RaceInfoRow) error {
	if info == nil || info.RaceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[info.RaceID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *info
	s.data[info.RaceID] = &copy
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *RaceInfoStore) InsertBulk(_ context.Context, infos []*domain.RaceInfoRow) error {
	if len(infos) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if info == nil || info.RaceID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[info.RaceID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[info.RaceID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[info.RaceID] = struct{}{}
	}

	for _, info := range infos {
		copy := *info
		s.data[info.RaceID] = &copy
	}
	return nil
}

// GetByID retrieves race info by race id. Returns ErrNotFound if not exists.
func (s *RaceInfoStore) GetByID(_ context.Context, raceID string) (*domain.RaceInfoRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.data[raceID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *info
	return &copy, nil
}

// GetByDateRange retrieves races held within [from, to] inclusive,
// ordered by date ASC then race id ASC.
func (s *RaceInfoStore) GetByDateRange(_ context.Context, from, to time.Time) ([]*domain.RaceInfoRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RaceInfoRow
	for _, info := range s.data {
		if info.Date.Before(from) || info.Date.After(to) {
			continue
		}
		copy := *info
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].RaceID < result[j].RaceID
	})
	return result, nil
}
