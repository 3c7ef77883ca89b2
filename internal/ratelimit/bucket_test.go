package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowRespectsBurstThenDenies(t *testing.T) {
	l := New(1, 2)

	assert.True(t, l.Allow("binance"))
	assert.True(t, l.Allow("binance"))
	assert.False(t, l.Allow("binance"), "burst of 2 exhausted on the third call")
}

func TestLimitersAreIndependentPerVenue(t *testing.T) {
	l := New(1, 1)

	assert.True(t, l.Allow("binance"))
	assert.False(t, l.Allow("binance"))
	assert.True(t, l.Allow("bybit"), "a separate venue has its own bucket")
}

func TestWaitUnblocksImmediatelyWithToken(t *testing.T) {
	l := New(100, 1)
	err := l.Wait(context.Background(), "binance")
	assert.NoError(t, err)
}
