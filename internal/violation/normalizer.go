package violation

import (
	"strings"
	"sync"

	"vipham/internal/domain"
)

type substringRule struct {
	triggers []string
	label    string
}

// Rule order matters: a phrase matching several rules takes the first label.
var substringRules = []substringRule{
	{triggers: []string{"khong mang the", "quen the"}, label: domain.ViolationNoCard},
	{triggers: []string{"di hoc muon", "tre"}, label: domain.ViolationLate},
	{triggers: []string{"khong mac ao doan", "ao doan"}, label: domain.ViolationNoUniform},
	{triggers: []string{"mang dep", "dep le"}, label: domain.ViolationSandals},
	{triggers: []string{"tren 50cc"}, label: domain.ViolationMotorbike},
}

var aliases = []struct {
	token string
	label string
}{
	{"the", domain.ViolationNoCard},
	{"muon", domain.ViolationLate},
	{"ao", domain.ViolationNoUniform},
	{"dep", domain.ViolationSandals},
	{"xe", domain.ViolationMotorbike},
}

// Normalizer maps free-form violation phrases to canonical labels. The built-in
// rules are fixed; glossary terms can be added at runtime and are consulted
// only after every built-in rule has missed.
type Normalizer struct {
	mu    sync.RWMutex
	terms []GlossaryTerm
}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize returns the canonical label for raw, or raw unchanged when nothing matches.
func (n *Normalizer) Normalize(raw string) string {
	// A canonical label, exactly as written, maps to itself. Folded input never
	// takes this path, so typed text still goes through the rules in order.
	if trimmed := strings.TrimSpace(raw); domain.IsCanonicalViolation(trimmed) {
		return trimmed
	}
	folded := Fold(raw)
	if folded == "" {
		return raw
	}
	for _, rule := range substringRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(folded, trigger) {
				return rule.label
			}
		}
	}
	for _, a := range aliases {
		if folded == a.token {
			return a.label
		}
	}
	if n == nil {
		return raw
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, t := range n.terms {
		phrase := Fold(t.Phrase)
		if phrase != "" && strings.Contains(folded, phrase) {
			return t.Label
		}
	}
	return raw
}

// AddTerms registers glossary terms. Terms whose label is not canonical or whose
// phrase is already known are skipped. It returns how many were added.
func (n *Normalizer) AddTerms(terms ...GlossaryTerm) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	added := 0
	for _, t := range terms {
		phrase := Fold(t.Phrase)
		if phrase == "" || !domain.IsCanonicalViolation(t.Label) {
			continue
		}
		dup := false
		for _, existing := range n.terms {
			if Fold(existing.Phrase) == phrase {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		n.terms = append(n.terms, GlossaryTerm{Phrase: strings.TrimSpace(t.Phrase), Label: t.Label})
		added++
	}
	return added
}

// Recognized reports whether label is one of the canonical labels, i.e. whether
// normalization produced a category rather than passing text through.
func Recognized(label string) bool {
	return domain.IsCanonicalViolation(label)
}
