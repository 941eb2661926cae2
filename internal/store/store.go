// Package store implements C6: an in-memory, insertion-ordered
// incident table that C5 writes RCA results back into and that C7's
// read adapter serves from.
package store

import (
	"sync"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// Store holds every SpikeIncident seen so far, up to its retention
// cap. A single writer (the detector/orchestrator goroutines) and
// many readers (the read API adapter) are expected, hence RWMutex.
type Store struct {
	mu        sync.RWMutex
	retention int
	order     []int64
	byID      map[int64]*models.SpikeIncident
}

// NewStore builds an empty store. retention <= 0 means unbounded.
func NewStore(retention int) *Store {
	return &Store{retention: retention, byID: make(map[int64]*models.SpikeIncident)}
}

// Insert adds a newly confirmed incident, evicting the oldest entry if
// the store is at its retention cap.
func (s *Store) Insert(incident *models.SpikeIncident) {
	if incident == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[incident.ID] = incident
	s.order = append(s.order, incident.ID)

	if s.retention > 0 && len(s.order) > s.retention {
		evictID := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, evictID)
	}
}

// UpdateRCA attaches (or replaces) an incident's RCA report. It is a
// no-op if the incident has already been evicted. Implements
// rca.Updater.
func (s *Store) UpdateRCA(incidentID int64, report *models.RcaReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.byID[incidentID]
	if !ok {
		return
	}
	incident.SetRCA(report)
}

// Get returns one incident by id.
func (s *Store) Get(id int64) (*models.SpikeIncident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	incident, ok := s.byID[id]
	return incident, ok
}

// List returns every retained incident, oldest first.
func (s *Store) List() []*models.SpikeIncident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SpikeIncident, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

// Latest returns the most recently inserted incident, if any.
func (s *Store) Latest() (*models.SpikeIncident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, false
	}
	return s.byID[s.order[len(s.order)-1]], true
}

// Len reports how many incidents are currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
