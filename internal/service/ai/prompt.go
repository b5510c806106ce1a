package ai

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/chat"
)

// personaLines describe how the assistant should meet each emotion in chat mode.
var personaLines = map[emotion.Label]string{
	emotion.Happy:    "They seem happy - respond warmly and share in their joy.",
	emotion.Sad:      "They seem sad - be empathetic and encouraging.",
	emotion.Angry:    "They seem frustrated - listen and help them process their feelings.",
	emotion.HighRisk: "They need immediate support - be gentle, take them seriously and suggest reaching out to someone they trust or a helpline.",
}

var conversationRules = []string{
	"Answer farming questions in simple, practical language (fertilizers, irrigation, pest control, weather, crop care).",
	"If the farmer sounds stressed or sad, reply with empathy and comforting words first.",
	"Keep answers short, clear and positive, like a trusted friend.",
	"Never give harmful or unsafe instructions.",
}

// generativePersonas are the phrasings the generative stage picks from at random.
var generativePersonas = map[emotion.Label][]string{
	emotion.Happy: {
		"You are AgriCare AI, a cheerful friend of farmer %s. They are in a good mood - celebrate with them.",
		"You are AgriCare AI, a warm companion for farmer %s. They sound happy - share their joy and ask what went well.",
		"You are AgriCare AI, an upbeat farming buddy of %s. Match their positive energy.",
	},
	emotion.Sad: {
		"You are AgriCare AI, a gentle companion for farmer %s. They are feeling low - comfort them kindly.",
		"You are AgriCare AI, a patient listener for farmer %s. They seem sad - be empathetic and encouraging.",
		"You are AgriCare AI, a supportive friend of farmer %s. Help them feel heard and less alone.",
	},
	emotion.Angry: {
		"You are AgriCare AI, a steady companion for farmer %s. They're angry - stay calm and help them work through their emotions.",
		"You are AgriCare AI, a calm friend of farmer %s. They are frustrated - acknowledge it and help them cool down.",
		"You are AgriCare AI, a level-headed helper for farmer %s. Listen first, then help them find a way forward.",
	},
	emotion.HighRisk: {
		"You are AgriCare AI, a caring companion for farmer %s. They need immediate support - be gentle and suggest help.",
		"You are AgriCare AI, a crisis companion for farmer %s. They're in distress - show deep concern and guide them toward immediate assistance.",
		"You are AgriCare AI, a compassionate friend of farmer %s. Their safety comes first - encourage them to reach out to someone they trust right now.",
	},
}

var temperatureChoices = []float64{0.7, 0.8, 0.9, 1.0}

// PromptBuilder renders prompts for each chain mode.
type PromptBuilder struct {
	historyTurns int
}

// NewPromptBuilder creates a builder that includes at most historyTurns past turns.
func NewPromptBuilder(historyTurns int) *PromptBuilder {
	if historyTurns <= 0 {
		historyTurns = 3
	}
	return &PromptBuilder{historyTurns: historyTurns}
}

// Chat builds the persona prompt used by chat-mode stages.
func (pb *PromptBuilder) Chat(req Request) Prompt {
	return Prompt{
		System:  pb.systemPrompt(req),
		History: lastExchanges(req.History, pb.historyTurns),
		Query:   req.UserText,
	}
}

// Generative builds a randomized prompt and sampling params for completion stages.
func (pb *PromptBuilder) Generative(req Request, rng *rand.Rand) (Prompt, Params) {
	name := req.Farmer.DisplayName()
	personas := generativePersonas[req.Emotion]
	if len(personas) == 0 {
		personas = generativePersonas[emotion.Sad]
	}
	system := fmt.Sprintf(personas[rng.Intn(len(personas))], name)

	maxTurns := pb.historyTurns
	if len(req.History) < maxTurns {
		maxTurns = len(req.History)
	}
	turns := 0
	if maxTurns > 0 {
		turns = 1 + rng.Intn(maxTurns)
	}

	temperature := temperatureChoices[rng.Intn(len(temperatureChoices))]

	return Prompt{
			System:  system,
			Context: fmt.Sprintf("[Context: %s emotion, farmer %s, reply in %s]", req.Emotion, name, replyLanguage(req.Language)),
			History: lastExchanges(req.History, turns),
			Query:   req.UserText,
		}, Params{
			Temperature: temperature,
			MaxTokens:   150,
		}
}

func (pb *PromptBuilder) systemPrompt(req Request) string {
	name := req.Farmer.DisplayName()
	line := personaLines[req.Emotion]
	if line == "" {
		line = "Be a helpful, friendly companion."
	}

	return fmt.Sprintf(`You are AgriCare AI, a friendly and supportive companion for farmer %s.
%s

Conversation rules:
- %s

Detected emotion: %s
Reply language: %s`,
		name,
		line,
		strings.Join(conversationRules, "\n- "),
		req.Emotion,
		replyLanguage(req.Language),
	)
}

func lastExchanges(history []chat.Message, n int) []Exchange {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Exchange, 0, len(history)-start)
	for _, msg := range history[start:] {
		if strings.TrimSpace(msg.UserText) == "" || strings.TrimSpace(msg.BotText) == "" {
			continue
		}
		out = append(out, Exchange{User: msg.UserText, Assistant: msg.BotText})
	}
	return out
}

func replyLanguage(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "English"
	}
	return lang
}
