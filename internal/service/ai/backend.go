package ai

import (
	"context"
	"strings"
	"time"
)

// Exchange is one past user/assistant pair used as generation context.
type Exchange struct {
	User      string
	Assistant string
}

// Prompt carries a generation request in both chat and completion form.
type Prompt struct {
	System  string
	Context string
	History []Exchange
	Query   string
}

// Text flattens the prompt for completion-style providers.
func (p Prompt) Text() string {
	var b strings.Builder
	b.WriteString(p.System)
	if p.Context != "" {
		b.WriteString("\n")
		b.WriteString(p.Context)
	}
	b.WriteString("\n\n")
	for _, ex := range p.History {
		b.WriteString("User: ")
		b.WriteString(ex.User)
		b.WriteString("\nAI: ")
		b.WriteString(ex.Assistant)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(p.Query)
	b.WriteString("\nAI:")
	return b.String()
}

// Params are per-call sampling settings. Zero values leave provider defaults.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// TextBackend is one text-generation provider.
type TextBackend interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt, params Params) (string, error)
}

// PromptMode selects how a stage builds its prompt and cleans the output.
type PromptMode int

const (
	// ModeChat sends a persona system prompt and the last turns as chat messages.
	ModeChat PromptMode = iota
	// ModeGenerative randomizes persona, history depth and temperature and strips
	// echoed prompt text from the completion.
	ModeGenerative
)

// Stage is one position in the backend chain. A nil Backend is skipped.
type Stage struct {
	Name    string
	Backend TextBackend
	Mode    PromptMode
	Timeout time.Duration
}

// FailureKind classifies why an attempt did not produce a reply.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureUnavailable FailureKind = "unavailable"
	FailureTimeout     FailureKind = "timeout"
	FailureEmpty       FailureKind = "empty"
	FailureError       FailureKind = "error"
)

// Attempt records the outcome of one stage.
type Attempt struct {
	Stage   string        `json:"stage"`
	Backend string        `json:"backend,omitempty"`
	Success bool          `json:"success"`
	Text    string        `json:"-"`
	Failure FailureKind   `json:"failure,omitempty"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}
