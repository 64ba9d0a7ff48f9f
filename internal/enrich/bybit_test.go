package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	appconfig "rektflow/config"
)

func bybitTestProvider(url string) *BybitProvider {
	return NewBybitProvider(appconfig.BybitEnrichmentConfig{
		URL:               url,
		Category:          "linear",
		OIInterval:        "5min",
		RequestsPerSecond: 100,
		BurstSize:         100,
		TimeoutMs:         2000,
	})
}

func TestBybitOpenInterestDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/open-interest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "SOLUSDT" || q.Get("category") != "linear" || q.Get("intervalTime") != "5min" || q.Get("limit") != "2" {
			t.Errorf("unexpected query %v", q)
		}
		// newest sample first
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			{"openInterest":"105000","timestamp":"1700000300000"},
			{"openInterest":"100000","timestamp":"1700000000000"}
		]}}`)
	}))
	defer srv.Close()

	p := bybitTestProvider(srv.URL)
	delta, err := p.OpenInterestDelta(context.Background(), "SOLUSDT")
	if err != nil {
		t.Fatalf("open interest delta: %v", err)
	}
	if delta != 5 {
		t.Fatalf("expected 5%% delta, got %v", delta)
	}
}

func TestBybitOpenInterestDeltaTooFewSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"openInterest":"105000","timestamp":"1700000300000"}]}}`)
	}))
	defer srv.Close()

	p := bybitTestProvider(srv.URL)
	if _, err := p.OpenInterestDelta(context.Background(), "SOLUSDT"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for a single sample, got %v", err)
	}
}

func TestBybitOpenInterestDeltaZeroBaseline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			{"openInterest":"105000","timestamp":"1700000300000"},
			{"openInterest":"0","timestamp":"1700000000000"}
		]}}`)
	}))
	defer srv.Close()

	p := bybitTestProvider(srv.URL)
	if _, err := p.OpenInterestDelta(context.Background(), "SOLUSDT"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for zero baseline, got %v", err)
	}
}

func TestBybitAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":10001,"retMsg":"params error","result":{}}`)
	}))
	defer srv.Close()

	p := bybitTestProvider(srv.URL)
	if _, err := p.OpenInterestDelta(context.Background(), "SOLUSDT"); err == nil {
		t.Fatalf("expected error for non-zero retCode")
	}
}

func TestBybitFundingRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/tickers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"SOLUSDT","fundingRate":"0.0001"}]}}`)
	}))
	defer srv.Close()

	p := bybitTestProvider(srv.URL)
	fr, err := p.FundingRate(context.Background(), "SOLUSDT")
	if err != nil {
		t.Fatalf("funding rate: %v", err)
	}
	if fr != 0.01 {
		t.Fatalf("expected funding rate 0.01%%, got %v", fr)
	}
}

func TestBybitFundingRateEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[]}}`)
	}))
	defer srv.Close()

	p := bybitTestProvider(srv.URL)
	if _, err := p.FundingRate(context.Background(), "SOLUSDT"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for empty ticker list, got %v", err)
	}
}

func TestBybitSetsBrowserHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
			t.Errorf("expected browser user agent, got %q", ua)
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"SOLUSDT","fundingRate":"0.0001"}]}}`)
	}))
	defer srv.Close()

	p := bybitTestProvider(srv.URL)
	if _, err := p.FundingRate(context.Background(), "SOLUSDT"); err != nil {
		t.Fatalf("funding rate: %v", err)
	}
}
