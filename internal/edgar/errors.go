package edgar

import "github.com/rotisserie/eris"

// Error kinds reported by the EDGAR client. Callers see them only through
// logs and through ListFilers; the other operations degrade to empty results.
var (
	// ErrTransport marks a failed or non-200 fetch.
	ErrTransport = eris.New("edgar: transport error")
	// ErrParse marks a payload that could not be decoded.
	ErrParse = eris.New("edgar: parse error")
)
