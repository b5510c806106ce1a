// Package turntest builds turn services wired to in-memory fakes for handler tests.
package turntest

import (
	"context"
	"testing"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/farmer"
	"github.com/agricare/backend/internal/service/ai"
	chatservice "github.com/agricare/backend/internal/service/chat"
	"github.com/agricare/backend/internal/service/escalation"
	"github.com/agricare/backend/internal/service/turn"
)

// Backend replies with a fixed text.
type Backend string

// Name implements ai.TextBackend.
func (Backend) Name() string { return "fake" }

// Complete implements ai.TextBackend.
func (b Backend) Complete(context.Context, ai.Prompt, ai.Params) (string, error) {
	return string(b), nil
}

// AckAll acknowledges every alert.
type AckAll struct{}

// Send implements escalation.Transport.
func (AckAll) Send(context.Context, farmer.Contact, string) bool { return true }

// New returns a turn service over the seed farmers whose only live stage
// replies with reply.
func New(t testing.TB, reply string) (*turn.Service, *farmer.MemoryStore) {
	t.Helper()
	farmers := farmer.NewMemoryStore(farmer.Seed())
	svc, err := turn.NewService(turn.Deps{
		Sessions:   chatservice.NewService(chatservice.Config{DedupeWindow: chatservice.DefaultDedupeWindow}),
		Farmers:    farmers,
		Classifier: emotion.NewClassifier(emotion.Options{}),
		Generator:  ai.NewOrchestrator([]ai.Stage{{Name: "primary", Backend: Backend(reply)}}, ai.Options{}),
		Escalator:  escalation.NewEscalator(AckAll{}),
	})
	if err != nil {
		t.Fatalf("build turn service: %v", err)
	}
	return svc, farmers
}

// Session opens a session for the first seed farmer.
func Session(t testing.TB, svc *turn.Service) string {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), farmer.Seed()[0].ID, "English")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session.ID
}
