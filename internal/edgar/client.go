// Package edgar reads the SEC EDGAR company directory, per-filer submission
// histories, and the 13F information tables embedded in filing documents.
package edgar

import (
	"strings"

	"github.com/sells-group/f13-cli/internal/config"
	"github.com/sells-group/f13-cli/internal/fetcher"
)

// maxDocumentBytes caps a single filing document read.
const maxDocumentBytes = 64 << 20

// Client talks to the EDGAR endpoints named in its configuration.
type Client struct {
	fetcher fetcher.Fetcher
	cfg     config.EDGARConfig
}

// NewClient creates a Client. The fetcher carries throttling and retries.
func NewClient(f fetcher.Fetcher, cfg config.EDGARConfig) *Client {
	cfg.DirectoryURL = strings.TrimSpace(cfg.DirectoryURL)
	cfg.SubmissionsBaseURL = strings.TrimRight(cfg.SubmissionsBaseURL, "/")
	cfg.ArchivesBaseURL = strings.TrimRight(cfg.ArchivesBaseURL, "/")
	if cfg.FormType == "" {
		cfg.FormType = "13F"
	}
	return &Client{fetcher: f, cfg: cfg}
}
