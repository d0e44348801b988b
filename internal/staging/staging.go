// Package staging reads and writes the flat filings export: one CSV row per
// filing, with the filing's holdings serialized as a JSON column.
package staging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/model"
)

// Row is one filing in the staging file.
type Row struct {
	CIK       string         `csv:"cik"`
	Name      string         `csv:"Institution Name"`
	Ticker    string         `csv:"Ticker Symbol"`
	Sector    string         `csv:"Sector/Industry"`
	AUM       string         `csv:"Assets Under Management (AUM)"`
	FundType  string         `csv:"Fund Type"`
	Form      string         `csv:"form"`
	Date      string         `csv:"date"`
	Accession string         `csv:"accession"`
	URL       string         `csv:"url"`
	TextURL   string         `csv:"text_url"`
	Data      HoldingsColumn `csv:"data"`
}

// Holding is the flat JSON shape of one holding in the data column.
type Holding struct {
	Ticker               *string `json:"holdings_ticker"`
	CUSIP                string  `json:"cusip"`
	IssuerName           string  `json:"issuer_name"`
	ClassTitle           string  `json:"class_title,omitempty"`
	Shares               *int64  `json:"shares"`
	ShareType            string  `json:"share_type,omitempty"`
	PutCall              string  `json:"put_call,omitempty"`
	Value                *int64  `json:"value"`
	InvestmentDiscretion string  `json:"investment_discretion"`
	VotingSole           *int64  `json:"voting_sole"`
	VotingShared         *int64  `json:"voting_shared"`
	VotingNone           *int64  `json:"voting_none"`
	Sector               string  `json:"sector,omitempty"`
	AUM                  string  `json:"aum,omitempty"`
	FundType             string  `json:"fund_type,omitempty"`
}

// HoldingsColumn is the data column. It marshals to a JSON array.
type HoldingsColumn []Holding

// MarshalCSV implements gocsv.TypeMarshaller.
func (c HoldingsColumn) MarshalCSV() (string, error) {
	if c == nil {
		c = HoldingsColumn{}
	}
	b, err := json.Marshal([]Holding(c))
	if err != nil {
		return "", eris.Wrap(err, "staging: encode holdings")
	}
	return string(b), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller. A blank cell is an empty
// list; an undecodable cell is logged and treated as empty so the filing
// still loads.
func (c *HoldingsColumn) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*c = HoldingsColumn{}
		return nil
	}
	var hs []Holding
	if err := json.Unmarshal([]byte(s), &hs); err != nil {
		zap.L().Warn("staging: holdings column unreadable", zap.Error(err))
		*c = HoldingsColumn{}
		return nil
	}
	if hs == nil {
		hs = []Holding{}
	}
	*c = hs
	return nil
}

// Rows flattens aggregated managers into staging rows. Managers with no
// filings produce no rows.
func Rows(managers []model.ManagerFilings) []Row {
	var rows []Row
	for _, mf := range managers {
		for _, f := range mf.Filings {
			cik := f.CIK
			if cik == "" {
				cik = mf.Filer.CIK
			}
			rows = append(rows, Row{
				CIK:       cik,
				Name:      mf.Filer.Name,
				Ticker:    mf.Filer.Ticker,
				Sector:    mf.Market.Sector,
				AUM:       mf.Market.AUM,
				FundType:  mf.Market.FundType,
				Form:      f.FormType,
				Date:      f.FilingDate.Format(time.DateOnly),
				Accession: f.Accession,
				URL:       f.IndexURL,
				TextURL:   f.DocumentURL,
				Data:      toColumn(f.Holdings),
			})
		}
	}
	return rows
}

func toColumn(hs []model.HoldingRecord) HoldingsColumn {
	out := make(HoldingsColumn, 0, len(hs))
	for _, h := range hs {
		out = append(out, Holding{
			Ticker:               h.Entity.TickerPtr(),
			CUSIP:                h.CUSIP,
			IssuerName:           h.IssuerName,
			ClassTitle:           h.ClassTitle,
			Shares:               h.Shares,
			ShareType:            h.ShareType,
			PutCall:              h.PutCall,
			Value:                h.Value,
			InvestmentDiscretion: h.InvestmentDiscretion,
			VotingSole:           h.Voting.Sole,
			VotingShared:         h.Voting.Shared,
			VotingNone:           h.Voting.None,
			Sector:               h.Market.Sector,
			AUM:                  h.Market.AUM,
			FundType:             h.Market.FundType,
		})
	}
	return out
}

func fromColumn(c HoldingsColumn) []model.HoldingRecord {
	out := make([]model.HoldingRecord, 0, len(c))
	for _, h := range c {
		rec := model.HoldingRecord{
			IssuerName:           h.IssuerName,
			ClassTitle:           h.ClassTitle,
			CUSIP:                h.CUSIP,
			Value:                h.Value,
			Shares:               h.Shares,
			ShareType:            h.ShareType,
			PutCall:              h.PutCall,
			InvestmentDiscretion: h.InvestmentDiscretion,
			Voting: model.VotingAuthority{
				Sole:   h.VotingSole,
				Shared: h.VotingShared,
				None:   h.VotingNone,
			},
			Market: model.MarketMetadata{
				Sector:   orUnknown(h.Sector),
				AUM:      orUnknown(h.AUM),
				FundType: orUnknown(h.FundType),
			},
		}
		if h.Ticker != nil && *h.Ticker != "" {
			rec.Entity = model.ResolvedEntity{Ticker: *h.Ticker, Resolved: true}
		}
		out = append(out, rec)
	}
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.Unknown
	}
	return s
}

// Write writes managers to w as staging CSV.
func Write(w io.Writer, managers []model.ManagerFilings) error {
	rows := Rows(managers)
	if rows == nil {
		rows = []Row{}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return eris.Wrap(err, "staging: write csv")
	}
	return nil
}

// WriteFile writes managers to path, replacing any existing file.
func WriteFile(path string, managers []model.ManagerFilings) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "staging: create file")
	}
	if err := Write(f, managers); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "staging: close file")
}

// Read parses staging CSV and regroups the rows per manager, in order of
// first appearance. Rows with an unreadable date are skipped.
func Read(r io.Reader) ([]model.ManagerFilings, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, eris.Wrap(err, "staging: read csv")
	}

	log := zap.L().With(zap.String("component", "staging"))
	index := make(map[string]int)
	var out []model.ManagerFilings

	for _, row := range rows {
		cik, err := model.PadCIK(row.CIK)
		if err != nil {
			log.Warn("staging: row skipped", zap.String("cik", row.CIK), zap.Error(err))
			continue
		}
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(row.Date))
		if err != nil {
			log.Warn("staging: row skipped", zap.String("cik", cik), zap.String("date", row.Date), zap.Error(err))
			continue
		}

		i, ok := index[cik]
		if !ok {
			i = len(out)
			index[cik] = i
			out = append(out, model.ManagerFilings{
				Filer: model.FilerIdentity{CIK: cik, Ticker: row.Ticker, Name: row.Name},
				Market: model.MarketMetadata{
					Sector:   orUnknown(row.Sector),
					AUM:      orUnknown(row.AUM),
					FundType: orUnknown(row.FundType),
				},
				Filings: []model.FilingRecord{},
			})
		}
		out[i].Filings = append(out[i].Filings, model.FilingRecord{
			CIK:         cik,
			FormType:    row.Form,
			FilingDate:  date,
			Accession:   row.Accession,
			IndexURL:    row.URL,
			DocumentURL: row.TextURL,
			Holdings:    fromColumn(row.Data),
		})
	}
	return out, nil
}

// ReadFile reads staging CSV from path.
func ReadFile(path string) ([]model.ManagerFilings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "staging: open file")
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}
