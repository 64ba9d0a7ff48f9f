package model

import "time"

// MetricKind names an auxiliary market metric used to enrich a cluster.
type MetricKind string

const (
	MetricOpenInterestDelta MetricKind = "OPEN_INTEREST_DELTA"
	MetricFundingRate       MetricKind = "FUNDING_RATE"
)

// EnrichmentResult is the cached outcome of one upstream metric lookup.
// A nil Value records a failed or empty lookup; it is distinct from a
// zero value and is cached with the same TTL as a success.
type EnrichmentResult struct {
	Kind      MetricKind `json:"kind"`
	Value     *float64   `json:"value,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Float returns the metric value and whether it is present.
func (r EnrichmentResult) Float() (float64, bool) {
	if r.Value == nil {
		return 0, false
	}
	return *r.Value, true
}
