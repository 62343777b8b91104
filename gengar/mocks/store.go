package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"cgmev/gengar/defs"

	"go.mongodb.org/mongo-driver/mongo"
)

// Store keeps readings and events in memory, keyed by patient.
type Store struct {
	Glucose map[string][]defs.Reading
	Events  map[string][]defs.Event
	Err     error

	mu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		Glucose: make(map[string][]defs.Reading),
		Events:  make(map[string][]defs.Event),
	}
}

func (s *Store) WriteGlucose(_ context.Context, r *defs.Reading) (*mongo.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, existing := range s.Glucose[r.Patient] {
		if existing.Time.Equal(r.Time) {
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		}
	}
	rs := append(s.Glucose[r.Patient], *r)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Time.Before(rs[j].Time) })
	s.Glucose[r.Patient] = rs
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func (s *Store) ReadGlucose(_ context.Context, patient string, start, end time.Time) ([]defs.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var out []defs.Reading
	for _, r := range s.Glucose[patient] {
		if !r.Time.Before(start) && !r.Time.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Patients(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	patients := make([]string, 0, len(s.Glucose))
	for p := range s.Glucose {
		patients = append(patients, p)
	}
	sort.Strings(patients)
	return patients, nil
}

func (s *Store) ReplaceEvents(_ context.Context, patient string, start, end time.Time, evs []defs.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	var kept []defs.Event
	for _, e := range s.Events[patient] {
		if e.Time.Before(start) || e.Time.After(end) {
			kept = append(kept, e)
		}
	}
	s.Events[patient] = append(kept, evs...)
	return nil
}

func (s *Store) ReadEvents(_ context.Context, patient string, start, end time.Time) ([]defs.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var out []defs.Event
	for _, e := range s.Events[patient] {
		if !e.Time.Before(start) && !e.Time.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}
