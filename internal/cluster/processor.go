package cluster

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	appconfig "rektflow/config"
	liq "rektflow/internal/channel/liq"
	"rektflow/internal/model"
	"rektflow/logger"
)

// Sink receives fired cluster snapshots.
type Sink interface {
	MaybeDispatch(snap model.ClusterSnapshot)
}

// Processor consumes liquidation events from the raw channel and drives the
// aggregator. Events are routed to a fixed worker by symbol hash so that
// observations for one symbol are always applied in arrival order, while
// unrelated symbols aggregate in parallel.
type Processor struct {
	config   *appconfig.Config
	channels *liq.Channels
	agg      *Aggregator
	sink     Sink

	queues  []chan model.LiquidationEvent
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewProcessor(cfg *appconfig.Config, ch *liq.Channels, agg *Aggregator, sink Sink) *Processor {
	return &Processor{
		config:   cfg,
		channels: ch,
		agg:      agg,
		sink:     sink,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches the router and worker goroutines.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("cluster processor already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	workers := p.config.Aggregator.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	p.queues = make([]chan model.LiquidationEvent, workers)
	for i := range p.queues {
		p.queues[i] = make(chan model.LiquidationEvent, 64)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.wg.Add(1)
	go p.route()

	p.log.WithComponent("cluster_processor").WithFields(logger.Fields{
		"workers": workers,
	}).Info("cluster processor started successfully")
	return nil
}

// Stop waits for the router and all workers to drain and exit.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.log.WithComponent("cluster_processor").Info("stopping cluster processor")
	p.wg.Wait()
	p.log.WithComponent("cluster_processor").Info("cluster processor stopped")
}

// route fans events out to per-symbol worker queues. The same symbol always
// lands on the same queue.
func (p *Processor) route() {
	defer p.wg.Done()
	defer func() {
		for _, q := range p.queues {
			close(q)
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ev, ok := <-p.channels.Raw:
			if !ok {
				return
			}
			idx := symbolIndex(ev.Symbol, len(p.queues))
			select {
			case p.queues[idx] <- ev:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

func (p *Processor) worker(idx int) {
	defer p.wg.Done()

	log := p.log.WithComponent("cluster_processor").WithFields(logger.Fields{"worker": idx})
	for ev := range p.queues[idx] {
		snap, fired := p.agg.Observe(ev)
		if !fired {
			continue
		}

		logger.IncrementClusterFired()
		log.WithFields(logger.Fields{
			"symbol":    snap.Symbol,
			"side":      snap.Side,
			"total_usd": snap.TotalUSD,
			"entries":   snap.EntryCount,
		}).Info("liquidation cluster fired")

		p.sink.MaybeDispatch(snap)
	}
}

func symbolIndex(symbol string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}
