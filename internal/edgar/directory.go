package edgar

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/fetcher"
	"github.com/sells-group/f13-cli/internal/model"
)

// directoryEntry is one value of company_tickers.json, keyed "0", "1", ...
type directoryEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// ListFilers downloads the company directory once and returns one identity
// per CIK, in feed order. A CIK listed under several tickers keeps its first.
// On any failure it returns an empty slice and an error wrapping ErrTransport
// or ErrParse.
func (c *Client) ListFilers(ctx context.Context) ([]model.FilerIdentity, error) {
	log := zap.L().With(zap.String("component", "edgar.directory"))

	body, err := c.fetcher.Download(ctx, c.cfg.DirectoryURL)
	if err != nil {
		log.Error("directory fetch failed", zap.Error(err))
		return []model.FilerIdentity{}, eris.Wrapf(ErrTransport, "list filers: %v", err)
	}
	defer body.Close() //nolint:errcheck

	raw, err := fetcher.DecodeJSON[map[string]directoryEntry](body)
	if err != nil {
		log.Error("directory decode failed", zap.Error(err))
		return []model.FilerIdentity{}, eris.Wrapf(ErrParse, "list filers: %v", err)
	}

	filers := directoryFilers(*raw)
	log.Info("directory loaded", zap.Int("filers", len(filers)))
	return filers, nil
}

// directoryFilers orders the feed by its numeric keys so that the same
// snapshot always yields the same sequence.
func directoryFilers(raw map[string]directoryEntry) []model.FilerIdentity {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})

	seen := make(map[string]bool, len(keys))
	filers := make([]model.FilerIdentity, 0, len(keys))
	for _, k := range keys {
		e := raw[k]
		cik, err := model.PadCIK(strconv.FormatInt(e.CIK, 10))
		if err != nil || e.CIK <= 0 {
			zap.L().Debug("skipping directory entry", zap.String("key", k), zap.Int64("cik", e.CIK))
			continue
		}
		if seen[cik] {
			continue
		}
		seen[cik] = true
		filers = append(filers, model.FilerIdentity{
			CIK:    cik,
			Ticker: strings.TrimSpace(e.Ticker),
			Name:   strings.TrimSpace(e.Title),
		})
	}
	return filers
}
