package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appconfig "rektflow/config"
	"rektflow/internal/enrich"
	"rektflow/internal/model"
)

type stubProvider struct {
	oiValue float64
	oiErr   error
	frValue float64
	frErr   error
	delay   time.Duration
}

func (s *stubProvider) OpenInterestDelta(ctx context.Context, symbol string) (float64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return s.oiValue, s.oiErr
}

func (s *stubProvider) FundingRate(ctx context.Context, symbol string) (float64, error) {
	return s.frValue, s.frErr
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
	sends    int32
}

func (n *recordingNotifier) Send(ctx context.Context, text string) error {
	atomic.AddInt32(&n.sends, 1)
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	n.messages = append(n.messages, text)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) wait(t *testing.T, min int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n.mu.Lock()
		if len(n.messages) >= min {
			out := append([]string(nil), n.messages...)
			n.mu.Unlock()
			return out
		}
		n.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages", min)
	return nil
}

func testDispatcherConfig() *appconfig.Config {
	return &appconfig.Config{
		Classifier: appconfig.ClassifierConfig{
			NotionalMediumUSD:  500000,
			NotionalHighUSD:    2000000,
			OIDeltaScorePct:    4,
			OIBandPct:          2,
			FundingOverridePct: 0.05,
		},
		Dispatcher: appconfig.DispatcherConfig{
			MaxConcurrent:        4,
			ShutdownGraceSeconds: 2,
		},
	}
}

func snapshot(symbol string, usd float64) model.ClusterSnapshot {
	return model.ClusterSnapshot{
		Symbol:   symbol,
		Side:     model.SideLong,
		TotalUSD: usd,
		Price:    150,
		FiredAt:  time.Now(),
	}
}

func ttlCfg() appconfig.CacheTTLConfig {
	return appconfig.CacheTTLConfig{OpenInterestDeltaSeconds: 30, FundingRateSeconds: 30}
}

func TestDispatcherDeliversAlert(t *testing.T) {
	cache := enrich.NewCache(&stubProvider{oiValue: 5.5, frValue: 0.01}, ttlCfg())
	notifier := &recordingNotifier{}
	d := NewDispatcher(testDispatcherConfig(), cache, notifier)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	d.MaybeDispatch(snapshot("SOLUSDT", 600000))

	msgs := notifier.wait(t, 1)
	for _, want := range []string{"SOLUSDT", "REKT ALERT [HIGH]", "+5.50%"} {
		if !strings.Contains(msgs[0], want) {
			t.Fatalf("message missing %q:\n%s", want, msgs[0])
		}
	}
}

func TestDispatcherContainsNotifierFailure(t *testing.T) {
	cache := enrich.NewCache(&stubProvider{oiValue: 1}, ttlCfg())
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	d := NewDispatcher(testDispatcherConfig(), cache, notifier)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	d.MaybeDispatch(snapshot("SOLUSDT", 600000))

	// the failing unit must finish and release its slot
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.Inflight() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if d.Inflight() != 0 {
		t.Fatalf("failed unit did not release its slot")
	}

	// dispatcher must still accept new work
	notifier.err = nil
	d.MaybeDispatch(snapshot("DOGEUSDT", 600000))
	notifier.wait(t, 1)
}

func TestDispatcherAlertMissingMetrics(t *testing.T) {
	cache := enrich.NewCache(&stubProvider{oiErr: enrich.ErrNoData, frErr: enrich.ErrNoData}, ttlCfg())
	notifier := &recordingNotifier{}
	d := NewDispatcher(testDispatcherConfig(), cache, notifier)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	d.MaybeDispatch(snapshot("SOLUSDT", 600000))

	msgs := notifier.wait(t, 1)
	if !strings.Contains(msgs[0], "⚠️ N/A") || !strings.Contains(msgs[0], "UNKNOWN") {
		t.Fatalf("expected degraded alert with absent metrics:\n%s", msgs[0])
	}
}

func TestDispatcherDedupesInflightSymbol(t *testing.T) {
	cache := enrich.NewCache(&stubProvider{oiValue: 1, delay: 200 * time.Millisecond}, ttlCfg())
	notifier := &recordingNotifier{}
	d := NewDispatcher(testDispatcherConfig(), cache, notifier)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	d.MaybeDispatch(snapshot("SOLUSDT", 600000))
	d.MaybeDispatch(snapshot("SOLUSDT", 700000))

	notifier.wait(t, 1)
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&notifier.sends); n != 1 {
		t.Fatalf("expected one delivery for duplicate in-flight symbol, got %d", n)
	}
}

func TestDispatcherStopsWithinGrace(t *testing.T) {
	cache := enrich.NewCache(&stubProvider{oiValue: 1, delay: 10 * time.Second}, ttlCfg())
	d := NewDispatcher(testDispatcherConfig(), cache, &recordingNotifier{})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	d.MaybeDispatch(snapshot("SOLUSDT", 600000))
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	d.Stop()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("stop exceeded shutdown grace: %v", elapsed)
	}
}

func TestDispatcherIgnoresWorkAfterStop(t *testing.T) {
	cache := enrich.NewCache(&stubProvider{oiValue: 1}, ttlCfg())
	notifier := &recordingNotifier{}
	d := NewDispatcher(testDispatcherConfig(), cache, notifier)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	d.Stop()

	d.MaybeDispatch(snapshot("SOLUSDT", 600000))
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&notifier.sends); n != 0 {
		t.Fatalf("stopped dispatcher must not deliver, got %d sends", n)
	}
}
