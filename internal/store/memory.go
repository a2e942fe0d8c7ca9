// internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"loan-manager/internal/models"
)

// MemoryStore is the process-local ApplicationStore. Records live for the
// lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.LoanApplication
	active  map[string]struct{}
	now     func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		records: make(map[string]*models.LoanApplication),
		active:  make(map[string]struct{}),
		now:     o.now,
	}
}

func (s *MemoryStore) Find(_ context.Context, customerNumber string) (*models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.records[customerNumber]
	if !ok {
		return nil, ErrNotFound
	}
	return app.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, app *models.LoanApplication) error {
	if app == nil || app.CustomerNumber == "" {
		return ErrInvalidApplication
	}
	app.UpdatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[app.CustomerNumber] = app.Clone()
	if app.Status.IsBlocking() {
		s.active[app.CustomerNumber] = struct{}{}
	} else {
		delete(s.active, app.CustomerNumber)
	}
	return nil
}

func (s *MemoryStore) TryLock(_ context.Context, customerNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.active[customerNumber]; held {
		return false, nil
	}
	s.active[customerNumber] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Unlock(_ context.Context, customerNumber string) error {
	s.mu.Lock()
	delete(s.active, customerNumber)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) HasActiveProcess(_ context.Context, customerNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.active[customerNumber]; held {
		return true, nil
	}
	if app, ok := s.records[customerNumber]; ok {
		return app.Status.IsBlocking(), nil
	}
	return false, nil
}

// ActiveCount returns the number of customers currently holding the marker.
func (s *MemoryStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
