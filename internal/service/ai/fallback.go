package ai

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/chat"
)

//go:embed replies.yaml
var defaultReplies []byte

const defaultTopic = "our conversation"

// topicKeywords are checked in order against the latest user message.
var topicKeywords = []struct {
	keyword string
	topic   string
}{
	{"crop", "your crops"},
	{"weather", "the weather"},
	{"family", "your family"},
}

// TemplateBank is the deterministic last stage of the chain.
type TemplateBank struct {
	phrases map[emotion.Label][]string
}

// DefaultTemplateBank returns the built-in phrase bank.
func DefaultTemplateBank() *TemplateBank {
	bank, err := ParseTemplateBank(defaultReplies)
	if err != nil {
		panic(fmt.Sprintf("ai: embedded reply bank is invalid: %v", err))
	}
	return bank
}

// LoadTemplateBank reads a phrase bank from a YAML file.
func LoadTemplateBank(path string) (*TemplateBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reply bank: %w", err)
	}
	return ParseTemplateBank(data)
}

// ParseTemplateBank decodes a YAML phrase bank keyed by emotion label. Every
// label must have at least one phrase.
func ParseTemplateBank(data []byte) (*TemplateBank, error) {
	raw := make(map[string][]string)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse reply bank: %w", err)
	}

	phrases := make(map[emotion.Label][]string, len(raw))
	for key, list := range raw {
		label, ok := emotion.ParseLabel(key)
		if !ok {
			return nil, fmt.Errorf("reply bank: unknown emotion %q", key)
		}
		phrases[label] = list
	}
	for _, label := range emotion.Labels {
		if len(phrases[label]) == 0 {
			return nil, fmt.Errorf("reply bank: no phrases for %s", label)
		}
	}
	return &TemplateBank{phrases: phrases}, nil
}

// Size returns the number of phrases for label.
func (b *TemplateBank) Size(label emotion.Label) int {
	return len(b.phrases[label])
}

// Reply renders the phrase for label selected by turn.
func (b *TemplateBank) Reply(label emotion.Label, name, topic string, turn int) string {
	list := b.phrases[label]
	if len(list) == 0 {
		list = b.phrases[emotion.Sad]
	}
	if turn < 0 {
		turn = -turn
	}
	phrase := list[turn%len(list)]
	return strings.NewReplacer("{name}", name, "{topic}", topic).Replace(phrase)
}

// LastTopic infers what the farmer talked about most recently.
func LastTopic(history []chat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		text := strings.ToLower(history[i].UserText)
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, tk := range topicKeywords {
			if strings.Contains(text, tk.keyword) {
				return tk.topic
			}
		}
		break
	}
	return defaultTopic
}
