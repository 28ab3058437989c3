package harvest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and single-process dry runs.
type MemStore struct {
	mu           sync.Mutex
	units        map[string]*WorkUnit
	jobs         []*Job
	objectErrors []ObjectError
	gatherErrors []GatherFailure
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{units: make(map[string]*WorkUnit)}
}

// AddJob registers a job so PreviousJob can find it later.
func (s *MemStore) AddJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *MemStore) CreateUnit(_ context.Context, u *WorkUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[u.ID]; ok {
		return fmt.Errorf("unit exists: %s", u.ID)
	}
	cp := *u
	s.units[u.ID] = &cp
	return nil
}

func (s *MemStore) UpdateUnit(_ context.Context, u *WorkUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[u.ID]; !ok {
		return fmt.Errorf("no such unit: %s", u.ID)
	}
	cp := *u
	s.units[u.ID] = &cp
	return nil
}

func (s *MemStore) GetUnit(_ context.Context, id string) (*WorkUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return nil, fmt.Errorf("no such unit: %s", id)
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) PreviousJob(_ context.Context, job *Job) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev *Job
	for _, j := range s.jobs {
		if j.ID == job.ID || j.Source.ID != job.Source.ID || j.GatherFinished == nil {
			continue
		}
		if prev == nil || j.GatherFinished.After(*prev.GatherFinished) {
			prev = j
		}
	}
	if prev == nil {
		return nil, nil
	}
	cp := *prev
	return &cp, nil
}

func (s *MemStore) MarkForRetry(_ context.Context, u *WorkUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.units[u.ID]
	if !ok {
		cp := *u
		cp.Retry = true
		s.units[u.ID] = &cp
		return nil
	}
	stored.Retry = true
	stored.Content = u.Content
	return nil
}

func (s *MemStore) FindAllRetries(_ context.Context, job *Job) ([]*WorkUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*WorkUnit
	for _, u := range s.units {
		if u.Retry && u.SourceID == job.Source.ID && u.JobID != job.ID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ClearRetryMarks(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		u.Retry = false
	}
	return nil
}

func (s *MemStore) SaveObjectError(_ context.Context, unitID, stage, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectErrors = append(s.objectErrors, ObjectError{
		UnitID: unitID, Stage: stage, Message: message, At: time.Now(),
	})
	return nil
}

func (s *MemStore) SaveGatherError(_ context.Context, jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gatherErrors = append(s.gatherErrors, GatherFailure{
		JobID: jobID, Message: message, At: time.Now(),
	})
	return nil
}

// ObjectErrors returns the recorded per-unit errors.
func (s *MemStore) ObjectErrors() []ObjectError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ObjectError(nil), s.objectErrors...)
}

// GatherErrors returns the recorded gather failures.
func (s *MemStore) GatherErrors() []GatherFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GatherFailure(nil), s.gatherErrors...)
}
