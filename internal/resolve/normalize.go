// Package resolve maps free-text issuer names to exchange tickers by fuzzy
// matching normalized names against a reference table.
package resolve

import (
	_ "embed"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// maxPasses bounds the expand/remove loop; real names settle in two or three.
const maxPasses = 16

// Rules is the data that drives normalization.
type Rules struct {
	Expansions []Expansion `yaml:"expansions"`
	Noise      []string    `yaml:"noise"`
}

// Expansion rewrites an abbreviation (one or more words) to its long form.
type Expansion struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ParseRules decodes normalization rules from YAML.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "resolve: parse rules")
	}
	for _, e := range r.Expansions {
		if len(tokenize(e.From)) == 0 {
			return nil, eris.Errorf("resolve: expansion with empty source %q", e.From)
		}
	}
	return &r, nil
}

type phrase struct {
	from []string
	to   []string
}

// Normalizer applies Rules to names. It is safe for concurrent use.
type Normalizer struct {
	expansions []phrase
	noise      [][]string
}

// NewNormalizer compiles rules. Longer phrases are tried first so that
// "class a" wins over a bare "a".
func NewNormalizer(r *Rules) *Normalizer {
	n := &Normalizer{}
	for _, e := range r.Expansions {
		n.expansions = append(n.expansions, phrase{from: tokenize(e.From), to: tokenize(e.To)})
	}
	for _, w := range r.Noise {
		if t := tokenize(w); len(t) > 0 {
			n.noise = append(n.noise, t)
		}
	}
	sort.SliceStable(n.expansions, func(i, j int) bool {
		return len(n.expansions[i].from) > len(n.expansions[j].from)
	})
	sort.SliceStable(n.noise, func(i, j int) bool {
		return len(n.noise[i]) > len(n.noise[j])
	})
	return n
}

var defaultNormalizer = sync.OnceValue(func() *Normalizer {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(err)
	}
	return NewNormalizer(r)
})

// NormalizeName canonicalizes an issuer or security name with the built-in
// rules. The result is title-cased, and NormalizeName(NormalizeName(x)) ==
// NormalizeName(x).
func NormalizeName(name string) string {
	return defaultNormalizer().Normalize(name)
}

// Normalize lowercases, drops any " -..." suffix, splits on punctuation,
// expands abbreviations, removes noise words, and title-cases the rest.
func (n *Normalizer) Normalize(name string) string {
	s := strings.ToLower(name)
	if i := strings.Index(s, " -"); i >= 0 {
		s = s[:i]
	}
	tokens := tokenize(s)
	for range maxPasses {
		next := n.removeNoise(n.expand(tokens))
		if slices.Equal(next, tokens) {
			break
		}
		tokens = next
	}
	if len(tokens) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(tokens, " "))
}

func (n *Normalizer) expand(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		matched := false
		for _, e := range n.expansions {
			if hasPrefixTokens(tokens[i:], e.from) {
				out = append(out, e.to...)
				i += len(e.from)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return out
}

func (n *Normalizer) removeNoise(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		skip := 0
		for _, w := range n.noise {
			if hasPrefixTokens(tokens[i:], w) {
				skip = len(w)
				break
			}
		}
		if skip > 0 {
			i += skip
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}

func hasPrefixTokens(tokens, prefix []string) bool {
	return len(tokens) >= len(prefix) && slices.Equal(tokens[:len(prefix)], prefix)
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
