package chat

import (
	"time"

	"github.com/agricare/backend/internal/analysis/emotion"
)

// Source names the intake path that produced a message.
type Source string

const (
	// SourceStarter marks scripted conversation starters.
	SourceStarter Source = "starter"
	// SourceCheckIn marks quick mood check-ins.
	SourceCheckIn Source = "checkin"
	// SourceChat marks free-form user input.
	SourceChat Source = "chat"
)

// Message is one recorded turn: the user's text, the reply and any escalation.
type Message struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"sessionId"`
	Source         Source        `json:"source"`
	UserText       string        `json:"userText"`
	BotText        string        `json:"botText"`
	Emotion        emotion.Label `json:"emotion"`
	Backend        string        `json:"backend,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	EmergencyFired bool          `json:"emergencyFired"`
	NotifiedCount  int           `json:"notifiedCount"`
}
