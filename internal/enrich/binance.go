package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	appconfig "rektflow/config"
	"rektflow/logger"

	"github.com/adshao/go-binance/v2/futures"
)

// BinanceProvider fetches open-interest and funding metrics from the
// Binance futures API. It is the alternative enrichment source for
// deployments that want metrics from the same venue the liquidations come
// from.
type BinanceProvider struct {
	client   *futures.Client
	oiPeriod string
	log      *logger.Log
}

func NewBinanceProvider(cfg appconfig.BinanceEnrichmentConfig) *BinanceProvider {
	// public market data endpoints need no credentials
	client := futures.NewClient("", "")
	if cfg.URL != "" {
		client.BaseURL = cfg.URL
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}

	period := cfg.OIPeriod
	if period == "" {
		period = "5m"
	}

	return &BinanceProvider{
		client:   client,
		oiPeriod: period,
		log:      logger.GetLogger(),
	}
}

// OpenInterestDelta fetches the two most recent open-interest statistics
// and returns the percent change between them. Binance returns the series
// oldest first.
func (p *BinanceProvider) OpenInterestDelta(ctx context.Context, symbol string) (float64, error) {
	stats, err := p.client.NewOpenInterestStatisticsService().
		Symbol(symbol).
		Period(p.oiPeriod).
		Limit(2).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance open interest statistics: %w", err)
	}
	if len(stats) < 2 {
		return 0, ErrNoData
	}

	previous, err := strconv.ParseFloat(stats[0].SumOpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid open interest value %q: %w", stats[0].SumOpenInterest, err)
	}
	latest, err := strconv.ParseFloat(stats[1].SumOpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid open interest value %q: %w", stats[1].SumOpenInterest, err)
	}
	if previous == 0 {
		return 0, ErrNoData
	}

	return (latest - previous) / previous * 100, nil
}

// FundingRate fetches the current premium index and returns the last
// funding rate in percent.
func (p *BinanceProvider) FundingRate(ctx context.Context, symbol string) (float64, error) {
	indexes, err := p.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance premium index: %w", err)
	}
	if len(indexes) == 0 || indexes[0].LastFundingRate == "" {
		return 0, ErrNoData
	}

	fr, err := strconv.ParseFloat(indexes[0].LastFundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid funding rate value %q: %w", indexes[0].LastFundingRate, err)
	}
	return fr * 100, nil
}

// NewProvider selects the configured enrichment source.
func NewProvider(cfg appconfig.EnrichmentConfig) (Provider, error) {
	switch cfg.Provider {
	case "bybit":
		return NewBybitProvider(cfg.Bybit), nil
	case "binance":
		return NewBinanceProvider(cfg.Binance), nil
	default:
		return nil, fmt.Errorf("enrich: unknown provider %q", cfg.Provider)
	}
}
