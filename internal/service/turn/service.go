package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/chat"
	"github.com/agricare/backend/internal/model/farmer"
	"github.com/agricare/backend/internal/service/ai"
	chatservice "github.com/agricare/backend/internal/service/chat"
	"github.com/agricare/backend/internal/service/escalation"
)

var (
	ErrEmptyText      = errors.New("message text is required")
	ErrFarmerNotFound = errors.New("farmer profile not found")
)

// Classifier labels user text.
type Classifier interface {
	Classify(ctx context.Context, text string) emotion.Label
}

// Generator produces a reply that is never empty.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) ai.Reply
}

// Escalator alerts emergency contacts for high-risk turns.
type Escalator interface {
	MaybeEscalate(ctx context.Context, label emotion.Label, profile *farmer.Context, location, language string) escalation.Outcome
}

// Result is what a caller sees after one turn.
type Result struct {
	MessageID      string        `json:"messageId,omitempty"`
	Emotion        emotion.Label `json:"emotion"`
	BotText        string        `json:"botText"`
	EmergencyFired bool          `json:"emergencyFired"`
	NotifiedCount  int           `json:"notifiedCount"`
	Backend        string        `json:"backend,omitempty"`
	Fallback       bool          `json:"fallback"`
	Duplicate      bool          `json:"duplicate"`
	Helplines      []Helpline    `json:"helplines,omitempty"`
	Elapsed        time.Duration `json:"elapsedNs"`
}

// Deps wires the engine components into the turn service.
type Deps struct {
	Sessions   *chatservice.Service
	Farmers    farmer.Store
	Classifier Classifier
	Generator  Generator
	Escalator  Escalator
}

// Service runs one conversational turn end to end.
type Service struct {
	sessions   *chatservice.Service
	farmers    farmer.Store
	classifier Classifier
	generator  Generator
	escalator  Escalator
}

// NewService validates deps and builds the turn service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session service is required")
	case deps.Farmers == nil:
		return nil, fmt.Errorf("farmer store is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("reply generator is required")
	}
	if deps.Escalator == nil {
		deps.Escalator = escalation.NewEscalator(nil)
	}
	return &Service{
		sessions:   deps.Sessions,
		farmers:    deps.Farmers,
		classifier: deps.Classifier,
		generator:  deps.Generator,
		escalator:  deps.Escalator,
	}, nil
}

// CreateSession opens a conversation for a known farmer.
func (s *Service) CreateSession(ctx context.Context, farmerID, language string) (chat.Session, error) {
	if strings.TrimSpace(farmerID) == "" {
		return chat.Session{}, chatservice.ErrFarmerRequired
	}
	if _, ok := s.farmers.FindByID(farmerID); !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrFarmerNotFound, farmerID)
	}
	return s.sessions.CreateSession(ctx, farmerID, language)
}

// HandleTurn classifies text, generates a reply and escalates when needed, then
// records the turn. Only an unknown session or blank text return an error.
// Turns on one session run one at a time. A resubmission inside the dedupe
// window returns the recorded reply with Duplicate set and calls nothing.
// Once a turn starts, backend and alert calls are not cancelled with ctx; they
// finish or hit their own timeouts.
func (s *Service) HandleTurn(ctx context.Context, sessionID, text string) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}

	session, store, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	unlock := store.LockTurn()
	defer unlock()
	if prev, dup := store.Duplicate(text); dup {
		log.Info().Str("session", sessionID).Msg("duplicate submission ignored")
		return duplicateResult(prev), nil
	}

	ctx = context.WithoutCancel(ctx)
	profile := s.profile(session.FarmerID)
	label := s.classifier.Classify(ctx, text)
	history := store.History()

	var (
		reply   ai.Reply
		outcome escalation.Outcome
	)
	var g errgroup.Group
	g.Go(func() error {
		reply = s.generator.Generate(ctx, ai.Request{
			SessionID: sessionID,
			UserText:  text,
			Emotion:   label,
			Farmer:    profile,
			History:   history,
			Language:  session.Language,
			Turn:      len(history),
		})
		return nil
	})
	g.Go(func() error {
		outcome = s.escalator.MaybeEscalate(ctx, label, profile, "", session.Language)
		return nil
	})
	_ = g.Wait()

	msg, err := store.Append(chat.SourceChat, chatservice.Entry{
		UserText:       text,
		BotText:        reply.Text,
		Emotion:        label,
		Backend:        reply.Backend,
		EmergencyFired: outcome.Fired,
		NotifiedCount:  outcome.Notified,
	})
	if err != nil {
		return Result{}, fmt.Errorf("record turn: %w", err)
	}

	result := Result{
		MessageID:      msg.ID,
		Emotion:        label,
		BotText:        reply.Text,
		EmergencyFired: outcome.Fired,
		NotifiedCount:  outcome.Notified,
		Backend:        reply.Backend,
		Fallback:       reply.Fallback,
		Elapsed:        time.Since(start),
	}
	if label == emotion.HighRisk {
		result.Helplines = Helplines()
	}

	log.Info().
		Str("session", sessionID).
		Str("emotion", string(label)).
		Str("backend", reply.Backend).
		Bool("emergency", outcome.Fired).
		Dur("elapsed", result.Elapsed).
		Msg("turn handled")
	return result, nil
}

// History returns the merged conversation of a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.sessions.LoadTranscript(ctx, sessionID)
}

// ExportTranscript renders the session as downloadable text.
func (s *Service) ExportTranscript(ctx context.Context, sessionID string) (string, error) {
	store, err := s.sessions.Store(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return store.Export(), nil
}

// Insights summarizes the session's emotional trajectory.
func (s *Service) Insights(ctx context.Context, sessionID string) (chatservice.Insights, error) {
	store, err := s.sessions.Store(ctx, sessionID)
	if err != nil {
		return chatservice.Insights{}, err
	}
	return store.Insights(), nil
}

// Clear empties every sub-log of a session.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	store, err := s.sessions.Store(ctx, sessionID)
	if err != nil {
		return err
	}
	store.Clear()
	log.Info().Str("session", sessionID).Msg("history cleared")
	return nil
}

func (s *Service) open(ctx context.Context, sessionID string) (chat.Session, *chatservice.Store, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	store, err := s.sessions.Store(ctx, sessionID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	return session, store, nil
}

// duplicateResult echoes the recorded turn so repeated displays stay the same.
func duplicateResult(prev chat.Message) Result {
	res := Result{
		MessageID:      prev.ID,
		Emotion:        prev.Emotion,
		BotText:        prev.BotText,
		EmergencyFired: prev.EmergencyFired,
		NotifiedCount:  prev.NotifiedCount,
		Backend:        prev.Backend,
		Duplicate:      true,
	}
	if prev.Emotion == emotion.HighRisk {
		res.Helplines = Helplines()
	}
	return res
}

// profile returns nil when the farmer was removed after the session started.
func (s *Service) profile(farmerID string) *farmer.Context {
	p, ok := s.farmers.FindByID(farmerID)
	if !ok {
		return nil
	}
	return &p
}
