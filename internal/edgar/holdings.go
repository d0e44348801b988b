package edgar

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/fetcher"
	"github.com/sells-group/f13-cli/internal/model"
)

// Source values are reported in thousands of dollars.
const valueMultiplier = 1000

// infoTableRow is one <infoTable> element. Numeric fields are kept as text
// so that one malformed field does not reject the row.
type infoTableRow struct {
	NameOfIssuer string `xml:"nameOfIssuer"`
	TitleOfClass string `xml:"titleOfClass"`
	CUSIP        string `xml:"cusip"`
	Value        string `xml:"value"`
	ShrsOrPrnAmt struct {
		Amount string `xml:"sshPrnamt"`
		Type   string `xml:"sshPrnamtType"`
	} `xml:"shrsOrPrnAmt"`
	PutCall              string `xml:"putCall"`
	InvestmentDiscretion string `xml:"investmentDiscretion"`
	VotingAuthority      struct {
		Sole   string `xml:"Sole"`
		Shared string `xml:"Shared"`
		None   string `xml:"None"`
	} `xml:"votingAuthority"`
}

// ExtractHoldings downloads a filing document and parses its information
// table. Transport and parse failures are logged and yield an empty slice.
func (c *Client) ExtractHoldings(ctx context.Context, url string) []model.HoldingRecord {
	log := zap.L().With(zap.String("component", "edgar.holdings"), zap.String("url", url))

	body, err := c.fetcher.Download(ctx, url)
	if err != nil {
		log.Warn("filing fetch failed", zap.Error(err))
		return []model.HoldingRecord{}
	}
	doc, err := fetcher.ReadAll(body, maxDocumentBytes)
	if err != nil {
		log.Warn("filing read failed", zap.Error(err))
		return []model.HoldingRecord{}
	}

	holdings, err := parseHoldings(ctx, string(doc))
	if err != nil {
		log.Warn("information table unreadable", zap.Error(err))
		return []model.HoldingRecord{}
	}
	return holdings
}

// ParseHoldings extracts holdings from a raw filing document. A document
// without an information table, or with a malformed one, yields an empty slice.
func ParseHoldings(doc string) []model.HoldingRecord {
	holdings, err := parseHoldings(context.Background(), doc)
	if err != nil {
		return []model.HoldingRecord{}
	}
	return holdings
}

func parseHoldings(ctx context.Context, doc string) ([]model.HoldingRecord, error) {
	loc := SelectLocator(doc)
	if loc == nil {
		return []model.HoldingRecord{}, nil
	}
	table, ok := loc.Locate(doc)
	if !ok {
		return []model.HoldingRecord{}, nil
	}

	// Keep the table's own declaration so its charset reaches the decoder.
	src := table
	if prolog := xmlProlog(doc, strings.Index(doc, table)); prolog != "" {
		src = prolog + "\n" + table
	}

	rows, err := fetcher.DecodeXML[infoTableRow](ctx, strings.NewReader(src), "infoTable")
	if err != nil {
		return nil, eris.Wrapf(ErrParse, "information table: %v", err)
	}

	out := make([]model.HoldingRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, toHolding(r))
	}
	return out, nil
}

// xmlProlog returns the last <?xml ...?> declaration before offset. A
// submission .txt carries one per embedded document.
func xmlProlog(doc string, offset int) string {
	if offset <= 0 {
		return ""
	}
	start := strings.LastIndex(doc[:offset], "<?xml")
	if start < 0 {
		return ""
	}
	end := strings.Index(doc[start:offset], "?>")
	if end < 0 {
		return ""
	}
	return doc[start : start+end+len("?>")]
}

func toHolding(r infoTableRow) model.HoldingRecord {
	h := model.HoldingRecord{
		IssuerName:           textOr(r.NameOfIssuer, model.Unknown),
		ClassTitle:           clean(r.TitleOfClass),
		CUSIP:                strings.ToUpper(clean(r.CUSIP)),
		Shares:               parseCount(r.ShrsOrPrnAmt.Amount),
		ShareType:            clean(r.ShrsOrPrnAmt.Type),
		PutCall:              clean(r.PutCall),
		InvestmentDiscretion: textOr(r.InvestmentDiscretion, model.Unknown),
		Voting: model.VotingAuthority{
			Sole:   parseCount(r.VotingAuthority.Sole),
			Shared: parseCount(r.VotingAuthority.Shared),
			None:   parseCount(r.VotingAuthority.None),
		},
	}
	if v := parseCount(r.Value); v != nil && *v <= math.MaxInt64/valueMultiplier && *v >= math.MinInt64/valueMultiplier {
		h.Value = model.Int64(*v * valueMultiplier)
	}
	return h
}

// parseCount reads an integer that may carry thousands separators or a
// fractional part. Returns nil when the text is not a number.
func parseCount(s string) *int64 {
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return nil
	}
	return model.Int64(int64(math.Round(f)))
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textOr(s, fallback string) string {
	if c := clean(s); c != "" {
		return c
	}
	return fallback
}
