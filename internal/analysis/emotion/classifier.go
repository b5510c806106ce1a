package emotion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

// DefaultConfidenceThreshold is the score above which a fear or sadness prediction
// triggers the second crisis scan.
const DefaultConfidenceThreshold = 0.8

// LabelScore is one entry of a model's score distribution.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ScoreModel produces a score for every label the model knows.
type ScoreModel interface {
	Scores(ctx context.Context, text string) ([]LabelScore, error)
}

// Translator converts text into the target language. Implementations return the
// input unchanged on failure.
type Translator interface {
	Translate(ctx context.Context, text, target string) string
}

// modelLabels maps every label the score model emits onto the reply categories.
var modelLabels = map[string]Label{
	"joy":      Happy,
	"sadness":  Sad,
	"anger":    Angry,
	"fear":     Sad,
	"disgust":  Angry,
	"surprise": Happy,
	"neutral":  Sad,
}

// ModelLabels returns the raw labels a score model is expected to emit, sorted.
func ModelLabels() []string {
	out := make([]string, 0, len(modelLabels))
	for raw := range modelLabels {
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}

// MapModelLabel maps a raw model label onto a reply category. Unknown labels map to Sad.
func MapModelLabel(raw string) Label {
	if l, ok := modelLabels[normalize(raw)]; ok {
		return l
	}
	return Sad
}

// Options configures a Classifier.
type Options struct {
	Lexicon    Lexicon
	Model      ScoreModel
	Translator Translator
	// WorkingLanguage is the language the score model was trained on.
	WorkingLanguage string
	Threshold       float64
}

// Classifier assigns a Label to free text. The crisis phrase scan always runs
// first and its result is final.
type Classifier struct {
	lexicon    Lexicon
	model      ScoreModel
	translator Translator
	language   string
	threshold  float64
}

// NewClassifier builds a classifier. A nil Model disables the ML step.
func NewClassifier(opts Options) *Classifier {
	lex := opts.Lexicon
	if len(lex.Crisis) == 0 && len(lex.Happy) == 0 && len(lex.Sad) == 0 && len(lex.Angry) == 0 {
		lex = DefaultLexicon()
	}
	lang := opts.WorkingLanguage
	if lang == "" {
		lang = "en"
	}
	threshold := opts.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &Classifier{
		lexicon:    lex,
		model:      opts.Model,
		translator: opts.Translator,
		language:   lang,
		threshold:  threshold,
	}
}

// ModelEnabled reports whether the ML step is configured.
func (c *Classifier) ModelEnabled() bool {
	return c != nil && c.model != nil
}

// Classify returns the label for text. It never fails: any fault in the ML step
// degrades to the keyword scan and finally to Sad.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	normalized := normalize(text)
	if c.IsCrisis(normalized) {
		return HighRisk
	}

	if c.ModelEnabled() {
		label, err := c.classifyWithModel(ctx, text, normalized)
		if err == nil {
			return label
		}
		log.Debug().Err(err).Msg("emotion model unavailable, using keyword scan")
	}

	if label, ok := c.keywordLabel(normalized); ok {
		return label
	}
	return Sad
}

// IsCrisis reports whether text contains any crisis phrase.
func (c *Classifier) IsCrisis(text string) bool {
	return containsAny(normalize(text), c.lexicon.Crisis)
}

func (c *Classifier) classifyWithModel(ctx context.Context, text, normalized string) (label Label, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("emotion model panic: %v", r)
		}
	}()

	input := text
	if !isASCII(text) && c.translator != nil {
		if translated := c.translator.Translate(ctx, text, c.language); translated != "" {
			input = translated
		}
	}

	scores, err := c.model.Scores(ctx, input)
	if err != nil {
		return "", err
	}
	top, ok := topScore(scores)
	if !ok {
		return "", fmt.Errorf("emotion model returned no scores")
	}

	raw := normalize(top.Label)
	if (raw == "fear" || raw == "sadness") && top.Score > c.threshold {
		if c.IsCrisis(normalized) || c.IsCrisis(input) {
			return HighRisk, nil
		}
	}
	return MapModelLabel(raw), nil
}

func (c *Classifier) keywordLabel(normalized string) (Label, bool) {
	for _, b := range c.lexicon.buckets() {
		if containsAny(normalized, b.words) {
			return b.label, true
		}
	}
	return "", false
}

// topScore picks the highest score; the first entry wins on equal scores.
func topScore(scores []LabelScore) (LabelScore, bool) {
	if len(scores) == 0 {
		return LabelScore{}, false
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best, true
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func isASCII(text string) bool {
	for _, r := range text {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
