package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/chat"
	"github.com/agricare/backend/internal/model/farmer"
)

// TemplateStage is the name recorded for replies from the phrase bank.
const TemplateStage = "template"

// DefaultStageTimeout bounds a single backend call.
const DefaultStageTimeout = 12 * time.Second

// Request is the input of one reply generation.
type Request struct {
	SessionID string
	UserText  string
	Emotion   emotion.Label
	Farmer    *farmer.Context
	History   []chat.Message
	Language  string
	// Turn is the number of turns already recorded in the session.
	Turn int
}

// Reply is the generated text and how it was produced.
type Reply struct {
	Text     string    `json:"text"`
	Stage    string    `json:"stage"`
	Backend  string    `json:"backend"`
	Fallback bool      `json:"fallback"`
	Attempts []Attempt `json:"attempts"`
}

// Options configures an Orchestrator.
type Options struct {
	HistoryTurns int
	Bank         *TemplateBank
	// Rand drives persona and temperature variation. Seed it for reproducible output.
	Rand *rand.Rand
}

// Orchestrator walks the backend chain and falls back to the template bank.
type Orchestrator struct {
	stages  []Stage
	prompts *PromptBuilder
	bank    *TemplateBank

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewOrchestrator creates an orchestrator over stages, tried in the given order.
func NewOrchestrator(stages []Stage, opts Options) *Orchestrator {
	bank := opts.Bank
	if bank == nil {
		bank = DefaultTemplateBank()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orchestrator{
		stages:  append([]Stage(nil), stages...),
		prompts: NewPromptBuilder(opts.HistoryTurns),
		bank:    bank,
		rng:     rng,
	}
}

// Stages returns the configured chain.
func (o *Orchestrator) Stages() []Stage {
	return append([]Stage(nil), o.stages...)
}

// Generate produces a non-empty reply. Backend failures are recorded in the
// returned attempts and never surface as errors.
func (o *Orchestrator) Generate(ctx context.Context, req Request) Reply {
	if !req.Emotion.Valid() {
		req.Emotion = emotion.Sad
	}

	attempts := make([]Attempt, 0, len(o.stages)+1)
	for _, stage := range o.stages {
		attempt := o.try(ctx, stage, req)
		attempts = append(attempts, attempt)

		logger := log.With().
			Str("session", req.SessionID).
			Str("stage", stage.Name).
			Str("backend", attempt.Backend).
			Dur("elapsed", attempt.Elapsed).
			Logger()
		if !attempt.Success {
			logger.Warn().Err(attempt.Err).Str("failure", string(attempt.Failure)).Msg("backend attempt failed")
			continue
		}

		logger.Info().Int("length", len(attempt.Text)).Msg("generated reply")
		return Reply{
			Text:     EnsureClosing(req.Emotion, attempt.Text),
			Stage:    stage.Name,
			Backend:  attempt.Backend,
			Attempts: attempts,
		}
	}

	text := o.bank.Reply(req.Emotion, req.Farmer.DisplayName(), LastTopic(req.History), req.Turn)
	attempts = append(attempts, Attempt{Stage: TemplateStage, Backend: TemplateStage, Success: true, Text: text})
	log.Info().Str("session", req.SessionID).Str("emotion", string(req.Emotion)).Msg("using template fallback")

	return Reply{
		Text:     text,
		Stage:    TemplateStage,
		Backend:  TemplateStage,
		Fallback: true,
		Attempts: attempts,
	}
}

func (o *Orchestrator) try(ctx context.Context, stage Stage, req Request) Attempt {
	attempt := Attempt{Stage: stage.Name}
	if stage.Backend == nil {
		attempt.Failure = FailureUnavailable
		attempt.Err = fmt.Errorf("stage %s not configured", stage.Name)
		return attempt
	}
	attempt.Backend = stage.Backend.Name()

	var (
		prompt Prompt
		params Params
	)
	switch stage.Mode {
	case ModeGenerative:
		o.rngMu.Lock()
		prompt, params = o.prompts.Generative(req, o.rng)
		o.rngMu.Unlock()
	default:
		prompt = o.prompts.Chat(req)
	}

	timeout := stage.Timeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := complete(callCtx, stage.Backend, prompt, params)
	attempt.Elapsed = time.Since(start)

	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)):
		attempt.Failure = FailureTimeout
		attempt.Err = err
		return attempt
	case err != nil:
		attempt.Failure = FailureError
		attempt.Err = err
		return attempt
	}

	if stage.Mode == ModeGenerative {
		text = CleanCompletion(text, prompt)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		attempt.Failure = FailureEmpty
		attempt.Err = errors.New("empty response")
		return attempt
	}

	attempt.Success = true
	attempt.Text = text
	return attempt
}

type completion struct {
	text string
	err  error
}

// complete calls backend and returns when it finishes or ctx expires, whichever
// comes first. A panicking backend is reported as an error.
func complete(ctx context.Context, backend TextBackend, prompt Prompt, params Params) (string, error) {
	done := make(chan completion, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- completion{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		text, err := backend.Complete(ctx, prompt, params)
		done <- completion{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
