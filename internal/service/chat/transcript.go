package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/agricare/backend/internal/analysis/emotion"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

// Export renders the merged history as a plain-text transcript.
func (s *Store) Export() string {
	var b strings.Builder
	b.WriteString("AgriCare AI Chat History\n\n")

	for _, msg := range s.History() {
		ts := msg.Timestamp.Format(transcriptTimeLayout)
		fmt.Fprintf(&b, "You (%s):\n%s\n\n", ts, msg.UserText)
		fmt.Fprintf(&b, "AgriCare AI (%s) [%s %s]:\n%s\n\n", ts, msg.Emotion.Emoji(), msg.Emotion, msg.BotText)
		if msg.EmergencyFired {
			fmt.Fprintf(&b, "[EMERGENCY] WhatsApp alert sent to %d family members\n\n", msg.NotifiedCount)
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

// Insights summarizes a conversation.
type Insights struct {
	TotalMessages   int                   `json:"totalMessages"`
	EmotionCounts   map[emotion.Label]int `json:"emotionCounts"`
	PrimaryEmotion  emotion.Label         `json:"primaryEmotion,omitempty"`
	AlertsFired     int                   `json:"alertsFired"`
	ContactsAlerted int                   `json:"contactsAlerted"`
	Span            time.Duration         `json:"span"`
	Notes           []string              `json:"notes,omitempty"`
}

// Insights computes conversation statistics over the merged history.
func (s *Store) Insights() Insights {
	history := s.History()
	ins := Insights{
		TotalMessages: len(history),
		EmotionCounts: make(map[emotion.Label]int, len(emotion.Labels)),
	}

	for _, msg := range history {
		ins.EmotionCounts[msg.Emotion]++
		if msg.EmergencyFired {
			ins.AlertsFired++
			ins.ContactsAlerted += msg.NotifiedCount
		}
	}

	best := 0
	for _, label := range emotion.Labels {
		if n := ins.EmotionCounts[label]; n > best {
			best = n
			ins.PrimaryEmotion = label
		}
	}

	if len(history) > 1 {
		ins.Span = history[len(history)-1].Timestamp.Sub(history[0].Timestamp)
	}

	switch ins.PrimaryEmotion {
	case emotion.Happy:
		ins.Notes = append(ins.Notes, "You're showing a positive outlook.")
	case emotion.Sad:
		ins.Notes = append(ins.Notes, "You've been going through some challenges lately.")
	case emotion.Angry:
		ins.Notes = append(ins.Notes, "Frustration has been a common theme.")
	case emotion.HighRisk:
		ins.Notes = append(ins.Notes, "Some moments in this conversation were concerning.")
	}
	if ins.AlertsFired > 0 {
		ins.Notes = append(ins.Notes, fmt.Sprintf("Emergency WhatsApp support was activated %d time(s).", ins.AlertsFired))
	}
	if ins.TotalMessages > 10 {
		ins.Notes = append(ins.Notes, "We've had a meaningful conversation.")
	}
	if ins.Span > 24*time.Hour {
		ins.Notes = append(ins.Notes, "This conversation has spanned multiple days.")
	}
	return ins
}
