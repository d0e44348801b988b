package model

// VotingAuthority holds the three voting-authority share counts of a holding.
// A nil count means the field was missing or not numeric.
type VotingAuthority struct {
	Sole   *int64 `json:"sole"`
	Shared *int64 `json:"shared"`
	None   *int64 `json:"none"`
}

// HoldingRecord is one row of a 13F information table.
// Numeric fields are nil when the source value was missing or malformed.
type HoldingRecord struct {
	IssuerName           string          `json:"issuer_name"`
	ClassTitle           string          `json:"class_title,omitempty"`
	CUSIP                string          `json:"cusip"`
	Value                *int64          `json:"value"` // whole dollars
	Shares               *int64          `json:"shares"`
	ShareType            string          `json:"share_type,omitempty"`
	PutCall              string          `json:"put_call,omitempty"`
	InvestmentDiscretion string          `json:"investment_discretion"`
	Voting               VotingAuthority `json:"voting_authority"`

	Entity ResolvedEntity `json:"entity"`
	Market MarketMetadata `json:"market"`
}

// ResolvedEntity is the outcome of ticker resolution for a holding.
type ResolvedEntity struct {
	Ticker   string `json:"holdings_ticker,omitempty"`
	Resolved bool   `json:"resolved"`
}

// TickerPtr returns the ticker, or nil when resolution found no match.
func (e ResolvedEntity) TickerPtr() *string {
	if !e.Resolved || e.Ticker == "" {
		return nil
	}
	t := e.Ticker
	return &t
}

// MarketMetadata is the market-data enrichment for a ticker.
// Every field is Unknown when the lookup failed.
type MarketMetadata struct {
	Sector   string `json:"sector"`
	AUM      string `json:"aum"`
	FundType string `json:"fund_type"`
}

// UnknownMarket returns metadata with every field set to Unknown.
func UnknownMarket() MarketMetadata {
	return MarketMetadata{Sector: Unknown, AUM: Unknown, FundType: Unknown}
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
