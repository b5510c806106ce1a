package emotion

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon holds the phrase lists used by the keyword paths of the classifier.
type Lexicon struct {
	Crisis []string `yaml:"crisis"`
	Happy  []string `yaml:"happy"`
	Sad    []string `yaml:"sad"`
	Angry  []string `yaml:"angry"`
}

// DefaultLexicon returns the built-in phrase lists.
func DefaultLexicon() Lexicon {
	lex, err := ParseLexicon(defaultLexicon)
	if err != nil {
		panic(fmt.Sprintf("emotion: embedded lexicon is invalid: %v", err))
	}
	return lex
}

// LoadLexicon reads a YAML lexicon from path. Buckets missing from the file keep
// their built-in values.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon: %w", err)
	}

	override, err := ParseLexicon(data)
	if err != nil {
		return Lexicon{}, err
	}

	lex := DefaultLexicon()
	if len(override.Crisis) > 0 {
		lex.Crisis = override.Crisis
	}
	if len(override.Happy) > 0 {
		lex.Happy = override.Happy
	}
	if len(override.Sad) > 0 {
		lex.Sad = override.Sad
	}
	if len(override.Angry) > 0 {
		lex.Angry = override.Angry
	}
	return lex, nil
}

// ParseLexicon decodes a YAML lexicon document.
func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon: %w", err)
	}
	lex.Crisis = cleanPhrases(lex.Crisis)
	lex.Happy = cleanPhrases(lex.Happy)
	lex.Sad = cleanPhrases(lex.Sad)
	lex.Angry = cleanPhrases(lex.Angry)
	return lex, nil
}

// buckets returns the keyword buckets in scan priority order.
func (l Lexicon) buckets() []bucket {
	return []bucket{
		{label: Happy, words: l.Happy},
		{label: Sad, words: l.Sad},
		{label: Angry, words: l.Angry},
	}
}

type bucket struct {
	label Label
	words []string
}

func cleanPhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = normalize(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// normalize lowercases text and folds typographic apostrophes so "can’t" matches "can't".
func normalize(text string) string {
	return apostrophes.Replace(strings.ToLower(strings.TrimSpace(text)))
}
