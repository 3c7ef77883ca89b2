// Package router implements spec §4.6: the adapter registry and the
// per-intent fan-out plan, executed in parallel over
// golang.org/x/sync/errgroup, each leg behind a sony/gobreaker circuit
// breaker (SPEC_FULL.md §B). It never mutates shadow state itself.
package router

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// AdapterErrorKind classifies adapter failures (spec §6).
type AdapterErrorKind string

const (
	ErrKindNetwork       AdapterErrorKind = "Network"
	ErrKindAPI           AdapterErrorKind = "Api"
	ErrKindSigning       AdapterErrorKind = "Signing"
	ErrKindConfiguration AdapterErrorKind = "Configuration"
	ErrKindParse         AdapterErrorKind = "Parse"
	ErrKindOrderRejected AdapterErrorKind = "OrderRejected"
	ErrKindNotImplemented AdapterErrorKind = "NotImplemented"
)

// AdapterError is a typed adapter failure.
type AdapterError struct {
	Kind    AdapterErrorKind
	Message string
}

func (e *AdapterError) Error() string { return string(e.Kind) + ": " + e.Message }

// ErrNotImplemented is a convenience sentinel for unsupported ops.
var ErrNotImplemented = &AdapterError{Kind: ErrKindNotImplemented, Message: "not implemented"}

// OrderSide mirrors model.Side for the narrower adapter surface.
type OrderSide string

const (
	SideBuy  OrderSide = "Buy"
	SideSell OrderSide = "Sell"
)

// PlaceOrderRequest is what the router sends to one venue leg.
type PlaceOrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	ReduceOnly    bool
	PostOnly      bool
	LimitPrice    decimal.Decimal // zero => market/IOC
	Qty           decimal.Decimal
}

// PlaceOrderResponse is the adapter's normalized execution report
// (spec §6).
type PlaceOrderResponse struct {
	OrderID       string
	ClientOrderID string
	Status        string
	AvgPrice      decimal.Decimal
	ExecutedQty   decimal.Decimal
	TExchange     int64
	TAck          int64
	Fee           decimal.Decimal
	FeeAsset      string
}

// Position is a venue-reported position snapshot (spec §6).
type Position struct {
	Symbol string
	Side   string
	Size   decimal.Decimal
	Entry  decimal.Decimal
}

// Adapter is the closed, six-operation capability set spec §6 exposes
// per exchange. Implementations are expected to enforce venue rate
// limits themselves and return *AdapterError on failure.
type Adapter interface {
	Init(ctx context.Context) error
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (*PlaceOrderResponse, error)
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	GetPositions(ctx context.Context) ([]Position, error)
	Name() string
}

var errUnknownVenue = errors.New("router: unknown venue")
