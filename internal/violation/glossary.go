package violation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Glossary is the on-disk list of extra phrases. It extends the built-in rules
// without replacing them.
type Glossary struct {
	Terms []GlossaryTerm `yaml:"terms"`
}

type GlossaryTerm struct {
	Phrase string `yaml:"phrase"`
	Label  string `yaml:"label"`
}

func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	var g Glossary
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse glossary yaml: %w", err)
	}
	return &g, nil
}

// LoadGlossaryInto reads path into n. A missing file is not an error: the
// glossary starts empty and is created on the first appended term.
func LoadGlossaryInto(n *Normalizer, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}
	g, err := LoadGlossary(path)
	if err != nil {
		return 0, err
	}
	return n.AddTerms(g.Terms...), nil
}

// AppendGlossaryTerm adds phrase -> label to the file at path unless the phrase
// is already present. It reports whether the file changed.
func AppendGlossaryTerm(path, phrase, label string) (bool, error) {
	phrase = strings.TrimSpace(phrase)
	label = strings.TrimSpace(label)
	if phrase == "" || label == "" {
		return false, nil
	}

	var glossary Glossary
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &glossary); err != nil {
			return false, fmt.Errorf("parse existing glossary: %w", err)
		}
	}

	folded := Fold(phrase)
	for _, t := range glossary.Terms {
		if Fold(t.Phrase) == folded {
			return false, nil // already exists
		}
	}

	glossary.Terms = append(glossary.Terms, GlossaryTerm{Phrase: phrase, Label: label})
	return true, saveGlossary(path, &glossary)
}

func saveGlossary(path string, glossary *Glossary) error {
	data, err := yaml.Marshal(glossary)
	if err != nil {
		return fmt.Errorf("marshal glossary: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// GlossaryPhrase reduces an unrecognized violation text to the phrase stored in
// the glossary.
func GlossaryPhrase(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	return s
}
