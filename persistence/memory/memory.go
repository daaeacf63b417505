package memory

import (
	"sync"

	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/persistence"
)

type memoryStorage struct {
	mu      sync.RWMutex
	records map[string]model.FlowRecord
	order   []string
}

var _ persistence.Storage = new(memoryStorage)

func NewMemoryStorage() *memoryStorage {
	return &memoryStorage{
		records: make(map[string]model.FlowRecord),
	}
}

func (s *memoryStorage) CreateRecord(rec model.FlowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.Id]; ok {
		return persistence.RecordExistsError{Id: rec.Id}
	}
	s.records[rec.Id] = rec
	s.order = append(s.order, rec.Id)
	return nil
}

func (s *memoryStorage) UpdateRecord(match persistence.Match, patch map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.order {
		rec := s.records[id]
		ok, err := persistence.Matches(rec, match)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		updated, err := persistence.ApplyPatch(rec, patch)
		if err != nil {
			return n, err
		}
		s.records[id] = updated
		n++
	}
	return n, nil
}

func (s *memoryStorage) RemoveRecord(match persistence.Match) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	n := 0
	for _, id := range s.order {
		ok, err := persistence.Matches(s.records[id], match)
		if err != nil {
			return n, err
		}
		if ok {
			delete(s.records, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return n, nil
}

func (s *memoryStorage) FindRecords(match persistence.Match) ([]model.FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FlowRecord, 0)
	for _, id := range s.order {
		rec := s.records[id]
		ok, err := persistence.Matches(rec, match)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memoryStorage) Close() error {
	return nil
}
