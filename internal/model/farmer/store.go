package farmer

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrNameRequired     = errors.New("farmer name is required")
	ErrTooManyContacts  = errors.New("at most two emergency contacts are allowed")
	ErrProfileIDMissing = errors.New("farmer id is required")
)

// Store exposes profile retrieval to the chat engine and handlers.
type Store interface {
	List() []Context
	FindByID(id string) (Context, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Context
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Context) *MemoryStore {
	return &MemoryStore{items: append([]Context(nil), items...)}
}

// List returns every stored profile.
func (s *MemoryStore) List() []Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Context(nil), s.items...)
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(id string) (Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return clone(item), true
		}
	}
	return Context{}, false
}

// Save inserts or replaces a profile.
func (s *MemoryStore) Save(profile Context) error {
	profile.ID = strings.TrimSpace(profile.ID)
	profile.Name = strings.TrimSpace(profile.Name)
	switch {
	case profile.ID == "":
		return ErrProfileIDMissing
	case profile.Name == "":
		return ErrNameRequired
	case len(profile.Contacts) > MaxContacts:
		return ErrTooManyContacts
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == profile.ID {
			s.items[i] = clone(profile)
			return nil
		}
	}
	s.items = append(s.items, clone(profile))
	return nil
}

func clone(c Context) Context {
	c.Contacts = append([]Contact(nil), c.Contacts...)
	return c
}
