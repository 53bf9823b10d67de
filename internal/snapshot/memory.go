package snapshot

import (
	"context"
	"sync"

	"github.com/civiceye/civiceye-backend/pkg/models"
)

// MemoryStore is an in-process Store, used in tests and when no backend is
// configured. It round-trips through the same serialized document as the
// real adapters so encoding bugs surface in tests too.
type MemoryStore struct {
	mu      sync.Mutex
	raw     []byte
	saves   int
	loadErr error
	saveErr error
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// FailLoadWith makes subsequent Load calls return err.
func (s *MemoryStore) FailLoadWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// FailSaveWith makes subsequent Save calls return err.
func (s *MemoryStore) FailSaveWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// SetRaw seeds the store with an arbitrary payload, valid or not.
func (s *MemoryStore) SetRaw(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
}

// Saves reports how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Load(_ context.Context) ([]models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.raw == nil {
		return []models.Complaint{}, nil
	}
	return decode(s.raw)
}

func (s *MemoryStore) Save(_ context.Context, complaints []models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := encode(complaints)
	if err != nil {
		return err
	}
	s.raw = raw
	s.saves++
	return nil
}
