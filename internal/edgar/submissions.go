package edgar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/fetcher"
	"github.com/sells-group/f13-cli/internal/model"
)

type submissionJSON struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent filingList `json:"recent"`
	} `json:"filings"`
}

type filingList struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
}

// ListFilings returns the filer's recent filings whose form type contains the
// configured substring (case-sensitive). Holdings are left empty for the
// extractor. Any failure is logged and yields an empty slice.
func (c *Client) ListFilings(ctx context.Context, cik string) []model.FilingRecord {
	log := zap.L().With(zap.String("component", "edgar.submissions"), zap.String("cik", cik))

	padded, err := model.PadCIK(cik)
	if err != nil {
		log.Warn("invalid cik", zap.Error(err))
		return []model.FilingRecord{}
	}

	url := fmt.Sprintf("%s/CIK%s.json", c.cfg.SubmissionsBaseURL, padded)
	body, err := c.fetcher.Download(ctx, url)
	if err != nil {
		log.Warn("submissions fetch failed", zap.String("url", url), zap.Error(err))
		return []model.FilingRecord{}
	}
	defer body.Close() //nolint:errcheck

	sub, err := fetcher.DecodeJSON[submissionJSON](body)
	if err != nil {
		log.Warn("submissions decode failed", zap.Error(err))
		return []model.FilingRecord{}
	}

	return c.selectFilings(padded, sub.Filings.Recent)
}

func (c *Client) selectFilings(cik string, recent filingList) []model.FilingRecord {
	n := min(len(recent.Form), len(recent.FilingDate), len(recent.AccessionNumber))
	out := make([]model.FilingRecord, 0)
	for i := range n {
		form := recent.Form[i]
		if !strings.Contains(form, c.cfg.FormType) {
			continue
		}
		accession := strings.TrimSpace(recent.AccessionNumber[i])
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(recent.FilingDate[i]))
		if err != nil || accession == "" {
			zap.L().Warn("skipping malformed filing entry",
				zap.String("cik", cik),
				zap.String("accession", accession),
				zap.String("filing_date", recent.FilingDate[i]),
			)
			continue
		}
		dir := c.archiveDir(cik, accession)
		out = append(out, model.FilingRecord{
			CIK:         cik,
			FormType:    form,
			FilingDate:  date,
			Accession:   accession,
			IndexURL:    fmt.Sprintf("%s/%s-index.html", dir, accession),
			DocumentURL: fmt.Sprintf("%s/%s.txt", dir, accession),
			Holdings:    []model.HoldingRecord{},
		})
	}
	return out
}

// archiveDir is the filing folder: {base}/{unpadded cik}/{accession without dashes}.
func (c *Client) archiveDir(cik, accession string) string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.ArchivesBaseURL, model.UnpaddedCIK(cik), strings.ReplaceAll(accession, "-", ""))
}
