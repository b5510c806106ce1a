package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agricare/backend/internal/model/chat"
)

var (
	ErrFarmerRequired  = errors.New("farmer id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Config tunes the per-session stores.
type Config struct {
	DedupeWindow time.Duration
	// DefaultLanguage applies to sessions created without a language.
	DefaultLanguage string
	Now             func() time.Time
}

// Service owns every session and its conversation store.
type Service struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]chat.Session
	stores   map[string]*Store
}

// NewService bootstraps the in-memory session registry.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if strings.TrimSpace(cfg.DefaultLanguage) == "" {
		cfg.DefaultLanguage = "English"
	}
	return &Service{
		cfg:      cfg,
		sessions: make(map[string]chat.Session),
		stores:   make(map[string]*Store),
	}
}

// CreateSession provisions a session bound to a farmer profile.
func (s *Service) CreateSession(_ context.Context, farmerID, language string) (chat.Session, error) {
	farmerID = strings.TrimSpace(farmerID)
	if farmerID == "" {
		return chat.Session{}, ErrFarmerRequired
	}
	if strings.TrimSpace(language) == "" {
		language = s.cfg.DefaultLanguage
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		FarmerID:  farmerID,
		Language:  language,
		CreatedAt: s.cfg.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.stores[session.ID] = NewStore(session.ID, s.cfg.DedupeWindow, s.cfg.Now)
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Store returns the conversation store of a session.
func (s *Service) Store(_ context.Context, sessionID string) (*Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	store, ok := s.stores[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return store, nil
}

// LoadTranscript returns the merged history of a session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	store, err := s.Store(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return store.History(), nil
}
