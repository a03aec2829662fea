// Package memory provides in-memory implementations of the local record
// repositories and the table row store, used for tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"mobiletables/pkg/domain"
)

// Compile-time contract assertions ensuring the memory stores adhere to the domain persistence interfaces.
var (
	_ domain.ProposalRepository   = (*ProposalStore)(nil)
	_ domain.AttendanceRepository = (*AttendanceStore)(nil)
	_ domain.TableStore           = (*TableStore)(nil)
)

// ProposalStore keeps proposals in a map keyed by their assigned id.
type ProposalStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]domain.Proposal
}

// NewProposalStore returns an empty proposal store.
func NewProposalStore() *ProposalStore {
	return &ProposalStore{items: make(map[int64]domain.Proposal)}
}

// ListProposals returns proposals ordered by id.
func (s *ProposalStore) ListProposals(context.Context) ([]domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Proposal, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveProposal updates or inserts p.
func (s *ProposalStore) SaveProposal(_ context.Context, p *domain.Proposal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Persisted() {
		if _, ok := s.items[p.ID]; !ok {
			return 0, nil
		}
		s.items[p.ID] = *p
		return 1, nil
	}
	s.nextID++
	p.ID = s.nextID
	s.items[p.ID] = *p
	return 1, nil
}

// DeleteProposal removes p by id.
func (s *ProposalStore) DeleteProposal(_ context.Context, p domain.Proposal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return 0, nil
	}
	delete(s.items, p.ID)
	return 1, nil
}

// AttendanceStore keeps time-attendance entries in a map keyed by id.
type AttendanceStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]domain.TimeAttendance
}

// NewAttendanceStore returns an empty attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{items: make(map[int64]domain.TimeAttendance)}
}

// ListTimeAttendances returns entries ordered by id.
func (s *AttendanceStore) ListTimeAttendances(context.Context) ([]domain.TimeAttendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TimeAttendance, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveTimeAttendance updates or inserts t.
func (s *AttendanceStore) SaveTimeAttendance(_ context.Context, t *domain.TimeAttendance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Persisted() {
		if _, ok := s.items[t.ID]; !ok {
			return 0, nil
		}
		s.items[t.ID] = *t
		return 1, nil
	}
	s.nextID++
	t.ID = s.nextID
	s.items[t.ID] = *t
	return 1, nil
}

// DeleteTimeAttendance removes t by id.
func (s *AttendanceStore) DeleteTimeAttendance(_ context.Context, t domain.TimeAttendance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; !ok {
		return 0, nil
	}
	delete(s.items, t.ID)
	return 1, nil
}
