// Package model defines the records that flow through the 13F ingestion pipeline.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Unknown is the placeholder for text fields that could not be determined.
const Unknown = "unknown"

// FilerIdentity is one entry of the EDGAR company directory.
type FilerIdentity struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker,omitempty"`
	Name   string `json:"name"`
}

// FilingRecord is one filing selected from a filer's submission history.
// Holdings is never nil once the extractor has run.
type FilingRecord struct {
	CIK         string          `json:"cik"`
	FormType    string          `json:"form"`
	FilingDate  time.Time       `json:"date"`
	Accession   string          `json:"accession"`
	IndexURL    string          `json:"url"`
	DocumentURL string          `json:"text_url"`
	Holdings    []HoldingRecord `json:"data"`
}

// Key returns the natural identity of the filing.
func (f FilingRecord) Key() string {
	return f.CIK + "|" + f.DocumentURL
}

// Year returns the calendar year of the filing date.
func (f FilingRecord) Year() int {
	return f.FilingDate.Year()
}

// Quarter returns the calendar quarter (1-4) of the filing date.
func (f FilingRecord) Quarter() int {
	return QuarterOf(f.FilingDate)
}

// QuarterOf returns the calendar quarter (1-4) containing t.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// PadCIK renders a numeric CIK as the 10-digit zero padded identifier.
// Returns an error for empty, non-numeric, or over-long input.
func PadCIK(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "", eris.Errorf("model: invalid cik %q", raw)
	}
	cik := fmt.Sprintf("%010d", n)
	if len(cik) > 10 {
		return "", eris.Errorf("model: cik %q exceeds 10 digits", raw)
	}
	return cik, nil
}

// UnpaddedCIK strips leading zeros, as used in EDGAR archive paths.
func UnpaddedCIK(cik string) string {
	trimmed := strings.TrimLeft(cik, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
