package escalation

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/farmer"
)

// Outcome reports what one escalation check did.
type Outcome struct {
	Fired     bool `json:"fired"`
	Notified  int  `json:"notified"`
	Attempted int  `json:"attempted"`
}

// Escalator alerts a farmer's emergency contacts on high-risk turns.
type Escalator struct {
	transport Transport
}

// NewEscalator wraps transport. A nil transport never acknowledges.
func NewEscalator(transport Transport) *Escalator {
	if transport == nil {
		transport = Disabled{}
	}
	return &Escalator{transport: transport}
}

// MaybeEscalate sends when label is high risk and the farmer has at least one
// contact with a phone. Each contact gets one send and Notified counts only
// acknowledged sends. Fired is set only when at least one send was acknowledged.
func (e *Escalator) MaybeEscalate(ctx context.Context, label emotion.Label, profile *farmer.Context, location, language string) Outcome {
	if label != emotion.HighRisk {
		return Outcome{}
	}
	contacts := profile.UsableContacts()
	if len(contacts) == 0 {
		log.Warn().Msg("high risk turn but no emergency contacts on file")
		return Outcome{}
	}

	if strings.TrimSpace(location) == "" {
		location = profile.Location
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = "Farmer"
	}
	message := AlertMessage(name, location, language)

	var out Outcome
	for _, contact := range contacts {
		out.Attempted++
		if e.transport.Send(ctx, contact, message) {
			out.Notified++
		}
	}
	out.Fired = out.Notified > 0

	event := log.Info()
	if !out.Fired {
		event = log.Warn()
	}
	event.
		Str("farmer", profile.ID).
		Int("attempted", out.Attempted).
		Int("notified", out.Notified).
		Msg("emergency escalation")
	return out
}
