// Package marketdata looks up sector, fund size and fund type for a ticker
// from the Yahoo Finance quoteSummary endpoint.
package marketdata

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/f13-cli/internal/config"
	"github.com/sells-group/f13-cli/internal/fetcher"
	"github.com/sells-group/f13-cli/internal/model"
	"github.com/sells-group/f13-cli/internal/resilience"
)

const quoteSummaryPath = "/v10/finance/quoteSummary/{ticker}"

const quoteModules = "assetProfile,fundProfile,summaryDetail,quoteType"

// Enricher fetches market metadata. Answers are cached per ticker for the
// life of the Enricher, including "not found". Transient failures are not
// cached.
type Enricher struct {
	client  *resty.Client
	limiter *fetcher.AdaptiveLimiter
	breaker *resilience.Breaker
	enabled bool

	cache sync.Map // ticker -> model.MarketMetadata
}

// NewEnricher creates an Enricher from market configuration.
func NewEnricher(cfg config.MarketConfig, userAgent string) *Enricher {
	r := cfg.RatePerSec
	if r <= 0 {
		r = 2
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &Enricher{
		client:  client,
		limiter: fetcher.NewAdaptiveLimiter(rate.Limit(r), 1),
		breaker: resilience.NewBreaker("marketdata", cfg.BreakerThreshold,
			time.Duration(cfg.BreakerCooldownSecs)*time.Second),
		enabled: cfg.Enabled,
	}
}

// Enrich returns the metadata for ticker. It never fails: a disabled
// enricher, a blank ticker, a transport error, or a missing field all map
// the affected fields to "unknown".
func (e *Enricher) Enrich(ctx context.Context, ticker string) model.MarketMetadata {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !e.enabled || ticker == "" {
		return model.UnknownMarket()
	}
	if v, ok := e.cache.Load(ticker); ok {
		return v.(model.MarketMetadata)
	}

	md, ok := e.fetch(ctx, ticker)
	if ok {
		e.cache.Store(ticker, md)
	}
	return md
}

// fetch reports ok=false for transient outcomes so the ticker can be tried
// again later.
func (e *Enricher) fetch(ctx context.Context, ticker string) (model.MarketMetadata, bool) {
	log := zap.L().With(zap.String("component", "marketdata"), zap.String("ticker", ticker))

	if err := e.breaker.Allow(); err != nil {
		return model.UnknownMarket(), false
	}
	if err := e.limiter.Wait(ctx); err != nil {
		e.breaker.Release()
		return model.UnknownMarket(), false
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParam("modules", quoteModules).
		Get(quoteSummaryPath)
	if err != nil {
		if ctx.Err() != nil {
			e.breaker.Release()
			return model.UnknownMarket(), false
		}
		e.breaker.Record(err)
		log.Debug("quote summary request failed", zap.Error(err))
		return model.UnknownMarket(), false
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusOK:
		e.limiter.OnSuccess()
		e.breaker.Record(nil)
	case status == http.StatusTooManyRequests:
		e.limiter.OnRateLimit()
		e.breaker.Record(&fetcher.StatusError{StatusCode: status, URL: resp.Request.URL})
		log.Warn("quote summary rate limited")
		return model.UnknownMarket(), false
	case status >= 500:
		e.breaker.Record(&fetcher.StatusError{StatusCode: status, URL: resp.Request.URL})
		log.Debug("quote summary server error", zap.Int("status", status))
		return model.UnknownMarket(), false
	default:
		// Unknown tickers answer 404; the upstream itself is healthy.
		e.breaker.Record(nil)
		log.Debug("quote summary non-200", zap.Int("status", status))
		return model.UnknownMarket(), true
	}

	return parseQuoteSummary(resp.String()), true
}

// parseQuoteSummary reads whatever fields the payload carries.
func parseQuoteSummary(body string) model.MarketMetadata {
	md := model.UnknownMarket()
	if !gjson.Valid(body) {
		return md
	}
	result := gjson.Get(body, "quoteSummary.result.0")
	if !result.Exists() {
		return md
	}

	sector := strings.TrimSpace(result.Get("assetProfile.sector").String())
	industry := strings.TrimSpace(result.Get("assetProfile.industry").String())
	switch {
	case sector != "" && industry != "":
		md.Sector = sector + "/" + industry
	case sector != "":
		md.Sector = sector
	case industry != "":
		md.Sector = industry
	}

	if total := result.Get("summaryDetail.totalAssets.raw"); total.Exists() && total.Type == gjson.Number {
		if d, err := decimal.NewFromString(total.Raw); err == nil && d.IsPositive() {
			md.AUM = FormatAUM(d)
		}
	}

	for _, path := range []string{"fundProfile.legalType", "fundProfile.categoryName", "quoteType.quoteType"} {
		if v := strings.TrimSpace(result.Get(path).String()); v != "" {
			md.FundType = v
			break
		}
	}
	return md
}
