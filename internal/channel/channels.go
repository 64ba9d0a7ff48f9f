package channel

import (
	"context"
	"time"

	"rektflow/internal/channel/liq"
	"rektflow/logger"
)

type Channels struct {
	Liquidations *liq.Channels
}

func NewChannels(rawBufferSize int) *Channels {
	return &Channels{
		Liquidations: liq.NewChannels(rawBufferSize),
	}
}

func (c *Channels) Close() {
	if c.Liquidations != nil {
		c.Liquidations.Close()
	}
}

// StartMetricsReporting periodically logs channel depth so saturation is
// visible before events start getting dropped.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	log := logger.GetLogger()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.Liquidations.GetStats()
			log.LogMetric("channels", "liq_raw_len", len(c.Liquidations.Raw), "gauge", logger.Fields{})
			log.LogMetric("channels", "liq_raw_cap", cap(c.Liquidations.Raw), "gauge", logger.Fields{})
			log.LogMetric("channels", "liq_raw_sent", stats.RawSent, "counter", logger.Fields{})
			log.LogMetric("channels", "liq_raw_dropped", stats.RawDropped, "counter", logger.Fields{})
		}
	}
}
