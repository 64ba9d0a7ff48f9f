package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	appconfig "rektflow/config"
	liq "rektflow/internal/channel/liq"
	"rektflow/internal/model"
)

type captureSink struct {
	mu    sync.Mutex
	snaps []model.ClusterSnapshot
}

func (s *captureSink) MaybeDispatch(snap model.ClusterSnapshot) {
	s.mu.Lock()
	s.snaps = append(s.snaps, snap)
	s.mu.Unlock()
}

func (s *captureSink) wait(t *testing.T, n int) []model.ClusterSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.snaps) >= n {
			out := append([]model.ClusterSnapshot(nil), s.snaps...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d snapshots", n)
	return nil
}

func TestProcessorRoutesAndFires(t *testing.T) {
	cfg := &appconfig.Config{
		Aggregator: appconfig.AggregatorConfig{
			MinNotionalUSD:    100,
			ClusterMultiplier: 3,
			WindowSeconds:     60,
			MaxWorkers:        2,
		},
	}
	ch := liq.NewChannels(16)
	sink := &captureSink{}
	p := NewProcessor(cfg, ch, NewAggregator(cfg.Aggregator), sink)

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	now := time.Now()
	for _, usd := range []float64{150, 150, 150} {
		if !ch.SendRaw(ctx, model.LiquidationEvent{
			Exchange: "binance", Symbol: "SOLUSDT", Side: model.SideShort,
			NotionalUSD: usd, Price: 150, ObservedAt: now,
		}) {
			t.Fatalf("send failed")
		}
	}

	snaps := sink.wait(t, 1)
	if snaps[0].Symbol != "SOLUSDT" || snaps[0].TotalUSD != 450 {
		t.Fatalf("unexpected snapshot: %+v", snaps[0])
	}

	cancel()
	p.Stop()
}

func TestProcessorStopsOnChannelClose(t *testing.T) {
	cfg := &appconfig.Config{
		Aggregator: appconfig.AggregatorConfig{
			MinNotionalUSD:    100,
			ClusterMultiplier: 3,
			WindowSeconds:     60,
			MaxWorkers:        1,
		},
	}
	ch := liq.NewChannels(4)
	p := NewProcessor(cfg, ch, NewAggregator(cfg.Aggregator), &captureSink{})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ch.Close()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("processor did not stop after channel close")
	}
}

func TestSymbolIndexIsStable(t *testing.T) {
	for _, sym := range []string{"SOLUSDT", "DOGEUSDT", "PEPEUSDT"} {
		a := symbolIndex(sym, 4)
		for i := 0; i < 10; i++ {
			if symbolIndex(sym, 4) != a {
				t.Fatalf("symbol %s did not hash stably", sym)
			}
		}
		if a < 0 || a >= 4 {
			t.Fatalf("index out of range: %d", a)
		}
	}
}
