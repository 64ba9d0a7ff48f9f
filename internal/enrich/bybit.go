package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	appconfig "rektflow/config"
	"rektflow/logger"

	"golang.org/x/time/rate"
)

// browserTransport sets browser-like headers on every request. Bybit's
// public market endpoints rate limit bare clients aggressively.
type browserTransport struct {
	base http.RoundTripper
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// BybitProvider fetches open-interest and funding metrics from the Bybit v5
// market REST API. Requests pass through a shared rate limiter so alert
// bursts cannot trip the public API limits.
type BybitProvider struct {
	baseURL    string
	category   string
	oiInterval string
	client     *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

func NewBybitProvider(cfg appconfig.BybitEnrichmentConfig) *BybitProvider {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = rps
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BybitProvider{
		baseURL:    cfg.URL,
		category:   cfg.Category,
		oiInterval: cfg.OIInterval,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &browserTransport{},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (p *BybitProvider) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	u := p.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bybit api returned status %d for %s", resp.StatusCode, path)
	}

	var env bybitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode bybit response: %w", err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("bybit api error %d: %s", env.RetCode, env.RetMsg)
	}
	return json.Unmarshal(env.Result, result)
}

// OpenInterestDelta fetches the two most recent open-interest samples and
// returns the percent change from the older to the newer one. Bybit returns
// the list newest first.
func (p *BybitProvider) OpenInterestDelta(ctx context.Context, symbol string) (float64, error) {
	query := url.Values{}
	query.Set("category", p.category)
	query.Set("symbol", symbol)
	query.Set("intervalTime", p.oiInterval)
	query.Set("limit", "2")

	var result struct {
		List []struct {
			OpenInterest string `json:"openInterest"`
			Timestamp    string `json:"timestamp"`
		} `json:"list"`
	}
	if err := p.get(ctx, "/v5/market/open-interest", query, &result); err != nil {
		return 0, err
	}
	if len(result.List) < 2 {
		return 0, ErrNoData
	}

	latest, err := strconv.ParseFloat(result.List[0].OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid open interest value %q: %w", result.List[0].OpenInterest, err)
	}
	previous, err := strconv.ParseFloat(result.List[1].OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid open interest value %q: %w", result.List[1].OpenInterest, err)
	}
	if previous == 0 {
		return 0, ErrNoData
	}

	return (latest - previous) / previous * 100, nil
}

// FundingRate fetches the current funding rate from the tickers endpoint
// and converts it to percent.
func (p *BybitProvider) FundingRate(ctx context.Context, symbol string) (float64, error) {
	query := url.Values{}
	query.Set("category", p.category)
	query.Set("symbol", symbol)

	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}
	if err := p.get(ctx, "/v5/market/tickers", query, &result); err != nil {
		return 0, err
	}
	if len(result.List) == 0 || result.List[0].FundingRate == "" {
		return 0, ErrNoData
	}

	fr, err := strconv.ParseFloat(result.List[0].FundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid funding rate value %q: %w", result.List[0].FundingRate, err)
	}
	return fr * 100, nil
}
