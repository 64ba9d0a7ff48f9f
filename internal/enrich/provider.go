package enrich

import (
	"context"
	"errors"
)

// ErrNoData marks a lookup that succeeded at the transport level but has no
// usable value, for example fewer than two open-interest samples. The cache
// stores it as an absent result rather than retrying immediately.
var ErrNoData = errors.New("enrich: no data for symbol")

// Provider fetches market metrics from one upstream exchange. Percentages
// are expressed in percent, not fractions: an open-interest delta of 2.5
// means the open interest grew 2.5% between the last two samples.
type Provider interface {
	// OpenInterestDelta returns the percent change of open interest
	// between the two most recent samples for a symbol.
	OpenInterestDelta(ctx context.Context, symbol string) (float64, error)

	// FundingRate returns the current funding rate for a symbol in
	// percent.
	FundingRate(ctx context.Context, symbol string) (float64, error)
}
