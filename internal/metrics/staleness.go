package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// key identifies one (venue, symbol) pair for staleness tracking (spec §2).
type key struct {
	venue  string
	symbol string
}

// StalenessTracker records the last-update timestamp per (venue,
// symbol), exposed as a gauge holding that timestamp in unix millis;
// AgeMillis computes milliseconds-since-update.
type StalenessTracker struct {
	mu   sync.Mutex
	last map[key]int64
	gauge *prometheus.GaugeVec
}

// NewStalenessTracker constructs and registers the tracker's gauge.
func NewStalenessTracker() *StalenessTracker {
	g := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "exec_last_update_ms", Help: "Last-update timestamp (unix millis) per venue/symbol"},
		[]string{"venue", "symbol"},
	)
	prometheus.MustRegister(g)
	return &StalenessTracker{last: make(map[key]int64), gauge: g}
}

// Touch records a fresh update at nowMillis for (venue, symbol).
func (t *StalenessTracker) Touch(venue, symbol string, nowMillis int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[key{venue, symbol}] = nowMillis
	t.gauge.WithLabelValues(venue, symbol).Set(float64(nowMillis))
}

// AgeMillis returns nowMillis - last update for (venue, symbol), or -1
// if never touched.
func (t *StalenessTracker) AgeMillis(venue, symbol string, nowMillis int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[key{venue, symbol}]
	if !ok {
		return -1
	}
	return nowMillis - last
}
