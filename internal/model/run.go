package model

// RunState is a state of the ingestion state machine.
type RunState string

const (
	RunStateInit               RunState = "init"
	RunStateEnumeratingFilers  RunState = "enumerating_filers"
	RunStateFetchingIndex      RunState = "fetching_index"
	RunStateExtractingHoldings RunState = "extracting_holdings"
	RunStateResolving          RunState = "resolving"
	RunStateEnriching          RunState = "enriching"
	RunStateAggregated         RunState = "aggregated"
	RunStateDone               RunState = "done"
	RunStateFailed             RunState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// ManagerFilings groups a filer with the filings fetched for it.
// Filings keep their holdings nested; nothing is flattened before loading.
type ManagerFilings struct {
	Filer   FilerIdentity  `json:"filer"`
	Market  MarketMetadata `json:"market"`
	Filings []FilingRecord `json:"filings"`
}
