package ai

import (
	"strings"

	"github.com/agricare/backend/internal/analysis/emotion"
)

const turnMarker = "User:"

type closing struct {
	markers  []string
	sentence string
}

// closings lists, per emotion, the phrases a live reply must contain and the
// sentence appended when none is present.
var closings = map[emotion.Label]closing{
	emotion.HighRisk: {
		markers:  []string{"helpline", "help is available", "reach out"},
		sentence: "Please know that help is available - you can talk to someone you trust or call a helpline.",
	},
	emotion.Sad: {
		markers:  []string{"here for you"},
		sentence: "I'm here for you whenever you need to talk.",
	},
	emotion.Happy: {
		markers:  []string{"wonderful"},
		sentence: "It's wonderful to see you feeling positive!",
	},
	emotion.Angry: {
		markers:  []string{"breath"},
		sentence: "Take a deep breath - we can work through this together.",
	},
}

// HasClosing reports whether text already carries the supportive phrase for label.
func HasClosing(label emotion.Label, text string) bool {
	c, ok := closings[label]
	if !ok {
		return true
	}
	lower := strings.ToLower(text)
	for _, m := range c.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// EnsureClosing appends the closing sentence for label when text lacks it.
func EnsureClosing(label emotion.Label, text string) string {
	if HasClosing(label, text) {
		return text
	}
	return strings.TrimRight(text, " \n") + " " + closings[label].sentence
}

// CleanCompletion removes an echoed prompt and anything after the next simulated
// user turn from a raw completion.
func CleanCompletion(raw string, p Prompt) string {
	text := strings.TrimSpace(raw)
	full := p.Text()
	if strings.HasPrefix(text, full) {
		text = strings.TrimSpace(text[len(full):])
	}

	text = dropPromptLines(text, p)

	if idx := strings.Index(text, turnMarker); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimPrefix(text, "AI:"))

	if text == strings.TrimSpace(p.Query) {
		return ""
	}
	return text
}

// dropPromptLines skips leading persona and context lines the model repeated.
func dropPromptLines(text string, p Prompt) string {
	lines := strings.Split(text, "\n")
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
		case strings.HasPrefix(line, "You are AgriCare AI"):
		case strings.HasPrefix(line, "["):
		case line == strings.TrimSpace(p.System):
		default:
			return strings.Join(lines[i:], "\n")
		}
	}
	return ""
}
