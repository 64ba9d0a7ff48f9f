package alert

import (
	"context"
	"sync"
	"time"

	appconfig "rektflow/config"
	"rektflow/internal/classify"
	"rektflow/internal/enrich"
	"rektflow/internal/model"
	"rektflow/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dispatcher turns fired cluster snapshots into delivered alerts. Every
// snapshot gets its own cancelable unit of work: enrichment for both
// metrics in parallel, classification, formatting and delivery. A failing
// unit is logged and discarded; it never affects other units or the
// pipeline upstream.
type Dispatcher struct {
	config   *appconfig.Config
	cache    *enrich.Cache
	notifier Notifier

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	inflight map[string]model.AlertTask

	log *logger.Log
}

func NewDispatcher(cfg *appconfig.Config, cache *enrich.Cache, notifier Notifier) *Dispatcher {
	maxConcurrent := cfg.Dispatcher.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Dispatcher{
		config:   cfg,
		cache:    cache,
		notifier: notifier,
		sem:      make(chan struct{}, maxConcurrent),
		inflight: make(map[string]model.AlertTask),
		log:      logger.GetLogger(),
	}
}

// Start arms the dispatcher. Units launched afterwards are children of the
// given context.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true
	d.log.WithComponent("alert_dispatcher").WithFields(logger.Fields{
		"max_concurrent": cap(d.sem),
	}).Info("alert dispatcher started successfully")
	return nil
}

// MaybeDispatch launches an alert unit for a fired cluster. A snapshot is
// dropped when the dispatcher is stopped, the symbol already has a unit in
// flight, or all worker slots are busy.
func (d *Dispatcher) MaybeDispatch(snap model.ClusterSnapshot) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	if _, busy := d.inflight[snap.Symbol]; busy {
		d.mu.Unlock()
		d.log.WithComponent("alert_dispatcher").WithFields(logger.Fields{
			"symbol": snap.Symbol,
		}).Debug("alert already in flight for symbol, dropping snapshot")
		return
	}

	task := model.AlertTask{
		ID:        uuid.NewString(),
		Symbol:    snap.Symbol,
		Side:      snap.Side,
		TotalUSD:  snap.TotalUSD,
		Price:     snap.Price,
		StartedAt: time.Now().UTC(),
		State:     model.AlertTaskRunning,
	}
	d.inflight[snap.Symbol] = task
	d.mu.Unlock()

	select {
	case d.sem <- struct{}{}:
	default:
		d.reclaim(snap.Symbol)
		d.log.WithComponent("alert_dispatcher").WithFields(logger.Fields{
			"symbol": snap.Symbol,
		}).Warn("all alert slots busy, dropping snapshot")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		defer d.reclaim(snap.Symbol)
		d.run(task)
	}()
}

func (d *Dispatcher) reclaim(symbol string) {
	d.mu.Lock()
	delete(d.inflight, symbol)
	d.mu.Unlock()
}

func (d *Dispatcher) run(task model.AlertTask) {
	log := d.log.WithComponent("alert_dispatcher").WithFields(logger.Fields{
		"task_id": task.ID,
		"symbol":  task.Symbol,
	})

	var oiResult, frResult model.EnrichmentResult
	g, ctx := errgroup.WithContext(d.ctx)
	g.Go(func() error {
		var err error
		oiResult, err = d.cache.Get(ctx, task.Symbol, model.MetricOpenInterestDelta)
		return err
	})
	g.Go(func() error {
		var err error
		frResult, err = d.cache.Get(ctx, task.Symbol, model.MetricFundingRate)
		return err
	})
	if err := g.Wait(); err != nil {
		task.State = model.AlertTaskFailed
		logger.IncrementAlertFailed()
		log.WithError(err).WithFields(logger.Fields{"state": string(task.State)}).Error("alert unit aborted during enrichment")
		return
	}

	var oiDelta, funding *float64
	if v, ok := oiResult.Float(); ok {
		oiDelta = &v
	}
	if v, ok := frResult.Float(); ok {
		funding = &v
	}

	tier := classify.Priority(task.TotalUSD, oiDelta, d.config.Classifier)
	label := classify.MarketLabel(oiDelta, funding, d.config.Classifier)
	msg := FormatMessage(task, tier, label, oiDelta, funding)

	if err := d.notifier.Send(d.ctx, msg); err != nil {
		task.State = model.AlertTaskFailed
		logger.IncrementAlertFailed()
		log.WithError(err).WithFields(logger.Fields{"state": string(task.State)}).Error("failed to deliver alert")
		return
	}

	task.State = model.AlertTaskDone
	log.WithFields(logger.Fields{
		"state":       string(task.State),
		"tier":        string(tier),
		"label":       string(label),
		"total_usd":   task.TotalUSD,
		"duration_ms": time.Since(task.StartedAt).Milliseconds(),
	}).Info("alert delivered")
}

// Stop cancels all in-flight units and waits for them up to the configured
// shutdown grace period.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	log := d.log.WithComponent("alert_dispatcher")
	log.Info("stopping alert dispatcher")
	d.cancel()

	grace := time.Duration(d.config.Dispatcher.ShutdownGraceSeconds) * time.Second
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("alert dispatcher stopped")
	case <-time.After(grace):
		log.Warn("alert dispatcher shutdown grace elapsed with units still running")
	}
}

// Inflight reports how many alert units are currently running.
func (d *Dispatcher) Inflight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}
