package edgar

import (
	"regexp"
	"strings"
)

// TableLocator finds the information table inside a raw filing document.
// Locate returns the substring from the opening tag through the closing tag.
type TableLocator interface {
	Locate(doc string) (string, bool)
}

var nsTablePattern = regexp.MustCompile(`<(\w+):informationTable[\s>]`)

// namespacedLocator handles tables written as <ns1:informationTable>.
type namespacedLocator struct {
	prefix string
}

func (l namespacedLocator) Locate(doc string) (string, bool) {
	return between(doc, "<"+l.prefix+":informationTable", "</"+l.prefix+":informationTable>")
}

// bareLocator handles tables written as <informationTable>.
type bareLocator struct{}

func (bareLocator) Locate(doc string) (string, bool) {
	return between(doc, "<informationTable", "</informationTable>")
}

// SelectLocator probes the document for a prefixed table first, then a bare
// one. It returns nil when neither opening marker is present.
func SelectLocator(doc string) TableLocator {
	if m := nsTablePattern.FindStringSubmatch(doc); m != nil {
		return namespacedLocator{prefix: m[1]}
	}
	if strings.Contains(doc, "<informationTable") {
		return bareLocator{}
	}
	return nil
}

func between(doc, open, close string) (string, bool) {
	start := strings.Index(doc, open)
	if start < 0 {
		return "", false
	}
	end := strings.Index(doc[start:], close)
	if end < 0 {
		return "", false
	}
	return doc[start : start+end+len(close)], true
}
