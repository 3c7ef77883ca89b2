package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStalenessTrackerAgeAndUnknown(t *testing.T) {
	tr := NewStalenessTracker()

	assert.Equal(t, int64(-1), tr.AgeMillis("binance", "BTC-USD", 1000), "never touched")

	tr.Touch("binance", "BTC-USD", 1000)
	assert.Equal(t, int64(500), tr.AgeMillis("binance", "BTC-USD", 1500))
	assert.Equal(t, int64(-1), tr.AgeMillis("bybit", "BTC-USD", 1500), "a different venue is tracked independently")
}
