package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	appconfig "rektflow/config"
	liq "rektflow/internal/channel/liq"
	"rektflow/internal/feed"
	"rektflow/internal/model"
	"rektflow/internal/symbols"
	"rektflow/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const readDeadline = 10 * time.Minute

// Reader streams the all-market force-order feed from the Binance futures
// websocket API and forwards decoded liquidation events to the raw channel.
type Reader struct {
	config   *appconfig.Config
	channels *liq.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	ignore   []string
}

// NewReader constructs a new Binance liquidation feed reader.
func NewReader(cfg *appconfig.Config, ch *liq.Channels) *Reader {
	return &Reader{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		ignore:   cfg.Feed.Binance.IgnorePrefixes,
	}
}

// Start launches the websocket worker. The subscription is restarted
// automatically with capped exponential backoff until the context is
// cancelled.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("binance liquidation feed already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	cfg := r.config.Feed.Binance
	log := r.log.WithComponent("binance_liq_feed").WithFields(logger.Fields{"operation": "start"})

	if !cfg.Enabled {
		log.Warn("binance liquidation feed disabled via configuration")
		return fmt.Errorf("binance liquidation feed disabled")
	}
	if cfg.URL == "" {
		log.Warn("no url configured for binance liquidation feed")
		return fmt.Errorf("no url configured for binance liquidation feed")
	}

	r.wg.Add(1)
	go r.stream(cfg.URL)

	log.Info("binance liquidation feed started successfully")
	return nil
}

// Stop waits for the stream worker to finish.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("binance_liq_feed").Info("stopping binance liquidation feed")
	r.wg.Wait()
	r.log.WithComponent("binance_liq_feed").Info("binance liquidation feed stopped")
}

func (r *Reader) stream(wsURL string) {
	defer r.wg.Done()

	log := r.log.WithComponent("binance_liq_feed").WithFields(logger.Fields{
		"worker": "liquidation_stream",
	})

	rc := r.config.Feed.Reconnect
	bo := feed.NewBackoff(
		time.Duration(rc.InitialDelayMs)*time.Millisecond,
		time.Duration(rc.MaxDelayMs)*time.Millisecond,
		time.Duration(rc.LivenessSeconds)*time.Second,
	)

	for {
		if r.ctx.Err() != nil {
			return
		}

		bo.Connecting()
		conn, _, err := websocket.DefaultDialer.DialContext(r.ctx, wsURL, nil)
		if err != nil {
			delay := bo.Failure()
			log.WithError(err).WithFields(logger.Fields{"retry_in": delay.String()}).Warn("failed to connect to binance liquidation websocket")
			select {
			case <-time.After(delay):
				continue
			case <-r.ctx.Done():
				return
			}
		}
		bo.Connected()
		log.Info("binance liquidation websocket connected")

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPingHandler(func(appData string) error {
			conn.SetReadDeadline(time.Now().Add(readDeadline))
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			return conn.WriteMessage(websocket.PongMessage, []byte(appData))
		})

	loop:
		for {
			if r.ctx.Err() != nil {
				_ = conn.Close()
				return
			}

			_, msg, err := conn.ReadMessage()
			if err != nil {
				_ = conn.Close()
				log.WithError(err).Warn("binance liquidation stream error, reconnecting")
				break loop
			}
			conn.SetReadDeadline(time.Now().Add(readDeadline))

			logger.IncrementFeedRead(len(msg))
			r.handleMessage(msg, log)
		}

		delay := bo.Failure()
		select {
		case <-time.After(delay):
		case <-r.ctx.Done():
			return
		}
	}
}

// forceOrderPayload mirrors the !forceOrder@arr event shape. Only the
// fields the aggregator needs are decoded.
type forceOrderPayload struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol   string `json:"s"`
		Side     string `json:"S"`
		Quantity string `json:"q"`
		AvgPrice string `json:"ap"`
	} `json:"o"`
}

func (r *Reader) handleMessage(msg []byte, log *logger.Entry) {
	var payload forceOrderPayload
	if err := json.Unmarshal(msg, &payload); err != nil {
		log.WithError(err).Debug("failed to decode force order payload, skipping message")
		return
	}

	symbol := strings.ToUpper(payload.Order.Symbol)
	if symbol == "" {
		return
	}
	for _, prefix := range r.ignore {
		if strings.HasPrefix(symbol, strings.ToUpper(prefix)) {
			return
		}
	}

	price, err := strconv.ParseFloat(payload.Order.AvgPrice, 64)
	if err != nil || price <= 0 {
		log.WithFields(logger.Fields{"symbol": symbol, "raw_price": payload.Order.AvgPrice}).Debug("invalid price in force order, skipping message")
		return
	}
	qty, err := strconv.ParseFloat(payload.Order.Quantity, 64)
	if err != nil || qty <= 0 {
		log.WithFields(logger.Fields{"symbol": symbol, "raw_quantity": payload.Order.Quantity}).Debug("invalid quantity in force order, skipping message")
		return
	}

	// A SELL force order closes long positions.
	side := model.SideShort
	if strings.EqualFold(payload.Order.Side, "SELL") {
		side = model.SideLong
	}

	observedAt := time.Now().UTC()
	if payload.EventTime > 0 {
		observedAt = time.UnixMilli(payload.EventTime).UTC()
	}

	ev := model.LiquidationEvent{
		Exchange:    "binance",
		Symbol:      symbols.ToBinance("binance", symbol),
		Side:        side,
		NotionalUSD: price * qty,
		Price:       price,
		ObservedAt:  observedAt,
	}

	if r.channels.SendRaw(r.ctx, ev) {
		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithFields(logger.Fields{
				"symbol":   ev.Symbol,
				"side":     ev.Side,
				"notional": ev.NotionalUSD,
			}).Debug("forwarded liquidation event to raw channel")
		}
	} else if r.ctx.Err() != nil {
		return
	} else {
		log.Warn("liquidation raw channel full, dropping event")
	}
}
