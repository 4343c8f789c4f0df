package metrics

import (
	"time"

	"github.com/cuemby/slotsync/pkg/types"
)

// StatsSource reports slot counts for the gauges
type StatsSource interface {
	Stats() types.SlotStats
}

// Collector periodically samples the local store
type Collector struct {
	source   StatsSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect samples the source once
func (c *Collector) Collect() {
	stats := c.source.Stats()
	SlotsTotal.WithLabelValues("open").Set(float64(stats.Open))
	SlotsTotal.WithLabelValues("claimed").Set(float64(stats.Claimed))
	SlotsTotal.WithLabelValues("completed").Set(float64(stats.Completed))
}
