package bybit

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
)

const (
	pingInterval = 20 * time.Second
	readTimeout  = 35 * time.Second
)

// Reader subscribes to the Bybit v5 allLiquidation topics for a configured
// symbol set over a single websocket connection and forwards decoded events
// to the raw channel.
type Reader struct {
	config   *appconfig.Config
	channels *liq.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

// NewReader constructs a new Bybit liquidation feed reader.
func NewReader(cfg *appconfig.Config, ch *liq.Channels) *Reader {
	return &Reader{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches the websocket worker. The subscription is restarted
// automatically with capped exponential backoff until the context is
// cancelled.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("bybit liquidation feed already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	cfg := r.config.Feed.Bybit
	log := r.log.WithComponent("bybit_liq_feed").WithFields(logger.Fields{"operation": "start"})

	if !cfg.Enabled {
		log.Warn("bybit liquidation feed disabled via configuration")
		return fmt.Errorf("bybit liquidation feed disabled")
	}
	if cfg.URL == "" {
		log.Warn("no url configured for bybit liquidation feed")
		return fmt.Errorf("no url configured for bybit liquidation feed")
	}
	if len(cfg.Symbols) == 0 {
		log.Warn("no symbols configured for bybit liquidation feed")
		return fmt.Errorf("no symbols configured for bybit liquidation feed")
	}

	r.wg.Add(1)
	go r.stream(cfg.URL, cfg.Symbols)

	log.WithFields(logger.Fields{"symbols": len(cfg.Symbols)}).Info("bybit liquidation feed started successfully")
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

	r.log.WithComponent("bybit_liq_feed").Info("stopping bybit liquidation feed")
	r.wg.Wait()
	r.log.WithComponent("bybit_liq_feed").Info("bybit liquidation feed stopped")
}

func (r *Reader) stream(wsURL string, syms []string) {
	defer r.wg.Done()

	log := r.log.WithComponent("bybit_liq_feed").WithFields(logger.Fields{
		"worker": "liquidation_stream",
	})

	args := make([]string, 0, len(syms))
	for _, s := range syms {
		args = append(args, "allLiquidation."+strings.ToUpper(strings.TrimSpace(s)))
	}

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
			log.WithError(err).WithFields(logger.Fields{"retry_in": delay.String()}).Warn("failed to connect to bybit liquidation websocket")
			select {
			case <-time.After(delay):
				continue
			case <-r.ctx.Done():
				return
			}
		}

		sub := map[string]interface{}{"op": "subscribe", "args": args}
		if err := conn.WriteJSON(sub); err != nil {
			_ = conn.Close()
			delay := bo.Failure()
			log.WithError(err).WithFields(logger.Fields{"retry_in": delay.String()}).Warn("failed to subscribe to bybit liquidation topics")
			select {
			case <-time.After(delay):
				continue
			case <-r.ctx.Done():
				return
			}
		}
		bo.Connected()
		log.WithFields(logger.Fields{"topics": len(args)}).Info("bybit liquidation websocket connected")

		r.readLoop(conn, log)

		if r.ctx.Err() != nil {
			return
		}
		delay := bo.Failure()
		log.WithFields(logger.Fields{"retry_in": delay.String()}).Warn("bybit liquidation stream closed, reconnecting")
		select {
		case <-time.After(delay):
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reader) readLoop(conn *websocket.Conn, log *logger.Entry) {
	defer conn.Close()

	// Bybit drops idle connections, so ping on a ticker and treat a
	// missed read deadline as a dead connection.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-r.ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		if r.ctx.Err() != nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if r.ctx.Err() == nil {
				log.WithError(err).Warn("bybit liquidation read error")
			}
			return
		}

		logger.IncrementFeedRead(len(msg))
		r.handleMessage(msg, log)
	}
}

// liquidationPush mirrors the v5 allLiquidation push shape.
type liquidationPush struct {
	Topic string `json:"topic"`
	Data  []struct {
		UpdatedTime int64  `json:"T"`
		Symbol      string `json:"s"`
		Side        string `json:"S"`
		Size        string `json:"v"`
		Price       string `json:"p"`
	} `json:"data"`
}

func (r *Reader) handleMessage(msg []byte, log *logger.Entry) {
	var push liquidationPush
	if err := json.Unmarshal(msg, &push); err != nil {
		log.WithError(err).Debug("failed to decode bybit push, skipping message")
		return
	}
	if !strings.HasPrefix(push.Topic, "allLiquidation.") || len(push.Data) == 0 {
		// subscription acks and pong frames land here
		return
	}

	for _, d := range push.Data {
		price, err := strconv.ParseFloat(d.Price, 64)
		if err != nil || price <= 0 {
			log.WithFields(logger.Fields{"symbol": d.Symbol, "raw_price": d.Price}).Debug("invalid price in bybit liquidation, skipping entry")
			continue
		}
		size, err := strconv.ParseFloat(d.Size, 64)
		if err != nil || size <= 0 {
			log.WithFields(logger.Fields{"symbol": d.Symbol, "raw_size": d.Size}).Debug("invalid size in bybit liquidation, skipping entry")
			continue
		}

		// Bybit reports the side of the liquidation order: a Buy order
		// closes short positions.
		side := model.SideLong
		if strings.EqualFold(d.Side, "Buy") {
			side = model.SideShort
		}

		observedAt := time.Now().UTC()
		if d.UpdatedTime > 0 {
			observedAt = time.UnixMilli(d.UpdatedTime).UTC()
		}

		ev := model.LiquidationEvent{
			Exchange:    "bybit",
			Symbol:      symbols.ToBinance("bybit", d.Symbol),
			Side:        side,
			NotionalUSD: price * size,
			Price:       price,
			ObservedAt:  observedAt,
		}
		if ev.Symbol == "" {
			continue
		}

		if !r.channels.SendRaw(r.ctx, ev) {
			if r.ctx.Err() != nil {
				return
			}
			log.Warn("liquidation raw channel full, dropping event")
		}
	}
}
