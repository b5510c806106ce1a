package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	analysis "github.com/agricare/backend/internal/analysis/emotion"
)

// ErrNoScores is returned when the model output carries no usable label score.
var ErrNoScores = errors.New("no label scores in model output")

// Scorer asks a chat model for a score distribution over the emotion labels.
// It implements analysis.ScoreModel.
type Scorer struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	labels []string
}

// NewScorer compiles the scoring chain around chatModel.
func NewScorer(ctx context.Context, chatModel model.BaseChatModel) (*Scorer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(scorerSystemPrompt),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion scorer chain: %w", err)
	}

	return &Scorer{chain: runnable, labels: analysis.ModelLabels()}, nil
}

// Scores implements analysis.ScoreModel. Results are sorted by descending score.
func (s *Scorer) Scores(ctx context.Context, text string) ([]analysis.LabelScore, error) {
	msg, err := s.chain.Invoke(ctx, map[string]any{
		"labels": strings.Join(s.labels, ", "),
		"text":   strings.TrimSpace(text),
	})
	if err != nil {
		return nil, fmt.Errorf("invoke emotion scorer: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, ErrNoScores
	}

	return parseScores(msg.Content)
}

// parseScores accepts either an object of label -> score or a list of
// {label, score} entries. Malformed JSON is repaired before giving up.
func parseScores(content string) ([]analysis.LabelScore, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, ErrNoScores
	}

	scores, err := decodeScores(raw)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("parse scorer output: %w", err)
		}
		log.Debug().Str("raw", raw).Msg("repaired scorer output")
		if scores, err = decodeScores(repaired); err != nil {
			return nil, fmt.Errorf("parse repaired scorer output: %w", err)
		}
	}

	out := scores[:0]
	for _, sc := range scores {
		label := strings.ToLower(strings.TrimSpace(sc.Label))
		if label == "" {
			continue
		}
		out = append(out, analysis.LabelScore{Label: label, Score: clampScore(sc.Score)})
	}
	if len(out) == 0 {
		return nil, ErrNoScores
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func decodeScores(raw string) ([]analysis.LabelScore, error) {
	if strings.HasPrefix(raw, "[") {
		var list []analysis.LabelScore
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var byLabel map[string]float64
	if err := json.Unmarshal([]byte(raw), &byLabel); err != nil {
		return nil, err
	}
	list := make([]analysis.LabelScore, 0, len(byLabel))
	for label, score := range byLabel {
		list = append(list, analysis.LabelScore{Label: label, Score: score})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Label < list[j].Label })
	return list, nil
}

// extractJSON trims prose and code fences around the first JSON value.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.IndexAny(trimmed, "{[")
	if start == -1 {
		return ""
	}
	closer := "}"
	if trimmed[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(trimmed, closer)
	if end <= start {
		return trimmed[start:]
	}
	return trimmed[start : end+1]
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

const scorerSystemPrompt = `You score the emotion of short messages written by farmers.
Return only a JSON object mapping each of these labels to a probability between 0 and 1: {labels}.
The probabilities should sum to 1. Do not add any other text.`
