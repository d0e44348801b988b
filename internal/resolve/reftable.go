package resolve

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/fetcher"
)

// Entry is one reference row: a ticker and its normalized security name.
type Entry struct {
	Symbol string `csv:"Symbol"`
	Name   string `csv:"Security Name"`
}

// nasdaqListing is a row of nasdaqlisted.txt.
type nasdaqListing struct {
	Symbol string `csv:"Symbol"`
	Name   string `csv:"Security Name"`
}

// otherListing is a row of otherlisted.txt.
type otherListing struct {
	Symbol string `csv:"ACT Symbol"`
	Name   string `csv:"Security Name"`
}

// ReferenceTable is the ordered list of names a query is matched against.
// Order matters: on equal scores the earlier entry wins.
type ReferenceTable struct {
	entries []Entry
}

// NewReferenceTable normalizes names and drops rows without a symbol or name.
func NewReferenceTable(entries []Entry) *ReferenceTable {
	t := &ReferenceTable{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		sym := strings.TrimSpace(e.Symbol)
		name := NormalizeName(e.Name)
		if sym == "" || name == "" || strings.HasPrefix(sym, "File Creation Time") {
			continue
		}
		t.entries = append(t.entries, Entry{Symbol: sym, Name: name})
	}
	return t
}

// Entries returns the table rows in match order.
func (t *ReferenceTable) Entries() []Entry {
	return t.entries
}

// Len returns the number of rows.
func (t *ReferenceTable) Len() int {
	return len(t.entries)
}

// pipeReader reads the nasdaqtrader symbol directory format.
func pipeReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '|'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// ParseNasdaqListed reads nasdaqlisted.txt (Symbol|Security Name|...).
func ParseNasdaqListed(r io.Reader) ([]Entry, error) {
	var rows []nasdaqListing
	if err := gocsv.UnmarshalCSV(pipeReader(r), &rows); err != nil {
		return nil, eris.Wrap(err, "resolve: parse nasdaq listing")
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry(row))
	}
	return out, nil
}

// ParseOtherListed reads otherlisted.txt (ACT Symbol|Security Name|...).
func ParseOtherListed(r io.Reader) ([]Entry, error) {
	var rows []otherListing
	if err := gocsv.UnmarshalCSV(pipeReader(r), &rows); err != nil {
		return nil, eris.Wrap(err, "resolve: parse other listing")
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry(row))
	}
	return out, nil
}

// FetchReferenceTable downloads both listings and builds the table, NASDAQ
// rows first.
func FetchReferenceTable(ctx context.Context, f fetcher.Fetcher, nasdaqURL, otherURL string) (*ReferenceTable, error) {
	log := zap.L().With(zap.String("component", "resolve.reftable"))

	var all []Entry
	for _, src := range []struct {
		url   string
		parse func(io.Reader) ([]Entry, error)
	}{
		{nasdaqURL, ParseNasdaqListed},
		{otherURL, ParseOtherListed},
	} {
		body, err := f.Download(ctx, src.url)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve: download %s", src.url)
		}
		entries, err := src.parse(body)
		body.Close() //nolint:errcheck
		if err != nil {
			return nil, err
		}
		log.Debug("listing loaded", zap.String("url", src.url), zap.Int("rows", len(entries)))
		all = append(all, entries...)
	}

	t := NewReferenceTable(all)
	log.Info("reference table built", zap.Int("entries", t.Len()))
	return t, nil
}

// WriteCSV writes the table as a Symbol,Security Name CSV.
func (t *ReferenceTable) WriteCSV(w io.Writer) error {
	if err := gocsv.Marshal(t.entries, w); err != nil {
		return eris.Wrap(err, "resolve: write reference csv")
	}
	return nil
}

// SaveFile writes the table to path.
func (t *ReferenceTable) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "resolve: create reference file")
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "resolve: close reference file")
}

// ReadReferenceCSV loads a table previously written by WriteCSV.
func ReadReferenceCSV(r io.Reader) (*ReferenceTable, error) {
	var entries []Entry
	if err := gocsv.Unmarshal(r, &entries); err != nil {
		return nil, eris.Wrap(err, "resolve: read reference csv")
	}
	return NewReferenceTable(entries), nil
}

// LoadReferenceFile loads a reference CSV from path.
func LoadReferenceFile(path string) (*ReferenceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: open reference file")
	}
	defer f.Close() //nolint:errcheck
	return ReadReferenceCSV(f)
}
