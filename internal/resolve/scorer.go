package resolve

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Scorer rates the similarity of two names from 0 (unrelated) to 100 (equal).
type Scorer interface {
	Score(a, b string) float64
}

// indelParams prices a substitution as a delete plus an insert.
var indelParams = levenshtein.NewParams().SubCost(2)

// TokenSortRatio compares names with their whitespace-separated tokens sorted,
// so word order does not matter. The similarity is the normalized indel
// distance: 100 * (1 - dist / (len(a) + len(b))).
type TokenSortRatio struct{}

func (TokenSortRatio) Score(a, b string) float64 {
	sa, sb := sortedTokens(a), sortedTokens(b)
	total := utf8.RuneCountInString(sa) + utf8.RuneCountInString(sb)
	if sa == "" || sb == "" || total == 0 {
		return 0
	}
	d := levenshtein.Distance(sa, sb, indelParams)
	return 100 * (1 - float64(d)/float64(total))
}

func sortedTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}
