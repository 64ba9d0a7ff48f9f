package cluster

import (
	"sync"
	"time"

	appconfig "rektflow/config"
	"rektflow/internal/model"
)

type entry struct {
	notional float64
	side     model.Side
	price    float64
	at       time.Time
}

type symbolWindow struct {
	mu      sync.Mutex
	entries []entry
}

// Aggregator keeps a sliding window of liquidation notionals per symbol and
// emits a ClusterSnapshot when a symbol's windowed total crosses the alert
// threshold. Eviction, threshold check and the clearing of fired entries
// happen inside a single critical section per symbol, so an accumulation
// fires at most once.
type Aggregator struct {
	minNotional float64
	threshold   float64
	window      time.Duration

	mu      sync.Mutex
	symbols map[string]*symbolWindow

	now func() time.Time
}

// NewAggregator builds an aggregator from the configured floor, multiplier
// and window. The alert threshold is min_notional_usd * cluster_multiplier.
func NewAggregator(cfg appconfig.AggregatorConfig) *Aggregator {
	return &Aggregator{
		minNotional: cfg.MinNotionalUSD,
		threshold:   cfg.MinNotionalUSD * cfg.ClusterMultiplier,
		window:      time.Duration(cfg.WindowSeconds) * time.Second,
		symbols:     make(map[string]*symbolWindow),
		now:         time.Now,
	}
}

func (a *Aggregator) windowFor(symbol string) *symbolWindow {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.symbols[symbol]
	if !ok {
		w = &symbolWindow{}
		a.symbols[symbol] = w
	}
	return w
}

// Observe feeds one liquidation event into the window. It returns a
// snapshot and true when the event pushed the symbol's windowed total over
// the threshold; the window is cleared in the same step. Events below the
// notional floor or with invalid fields are discarded without touching the
// window.
func (a *Aggregator) Observe(ev model.LiquidationEvent) (model.ClusterSnapshot, bool) {
	if ev.Symbol == "" || ev.NotionalUSD <= 0 || ev.Price <= 0 {
		return model.ClusterSnapshot{}, false
	}
	if ev.NotionalUSD < a.minNotional {
		return model.ClusterSnapshot{}, false
	}

	now := a.now()
	at := ev.ObservedAt
	if at.IsZero() {
		at = now
	}

	w := a.windowFor(ev.Symbol)
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-a.window)
	kept := w.entries[:0]
	for _, e := range w.entries {
		if !e.at.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	w.entries = append(kept, entry{notional: ev.NotionalUSD, side: ev.Side, price: ev.Price, at: at})

	var total float64
	for _, e := range w.entries {
		total += e.notional
	}
	if total < a.threshold {
		return model.ClusterSnapshot{}, false
	}

	snap := model.ClusterSnapshot{
		Symbol:     ev.Symbol,
		Side:       ev.Side,
		TotalUSD:   total,
		Price:      ev.Price,
		EntryCount: len(w.entries),
		FiredAt:    now,
	}
	w.entries = nil
	return snap, true
}

// WindowTotal reports the current windowed sum for a symbol without
// mutating it. Used by tests and the metrics report.
func (a *Aggregator) WindowTotal(symbol string) float64 {
	a.mu.Lock()
	w, ok := a.symbols[symbol]
	a.mu.Unlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := a.now().Add(-a.window)
	var total float64
	for _, e := range w.entries {
		if !e.at.Before(cutoff) {
			total += e.notional
		}
	}
	return total
}
