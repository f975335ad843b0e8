package metrics

import (
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
)

// Collector periodically refreshes the gauge metrics that summarize
// the current cluster view (spec §4.4's state machine, not a
// per-mutation counter).
type Collector struct {
	view   *clusterview.View
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(view *clusterview.View) *Collector {
	return &Collector{
		view:   view,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.view.Snapshot()

	counts := make(map[string]int)
	for _, fs := range snap.FileSystems {
		counts[string(fs.Config)]++
	}
	for config, count := range counts {
		FileSystemsTotal.WithLabelValues(config).Set(float64(count))
	}
}
