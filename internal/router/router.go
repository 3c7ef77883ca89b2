package router

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/titanx/execution-core/internal/model"
)

// RoutingRules maps a lowercased intent source to the venues it fans
// out to (spec §4.6's overridable default rules).
type RoutingRules struct {
	BySource     map[string][]string
	DefaultVenue string
}

// DefaultRoutingRules implements spec §4.6's defaults:
//
//	scavenger          -> bybit + mexc
//	hunter / sentinel  -> binance
//	unknown / missing  -> binance
func DefaultRoutingRules() RoutingRules {
	return RoutingRules{
		BySource: map[string][]string{
			"scavenger": {"bybit", "mexc"},
			"hunter":    {"binance"},
			"sentinel":  {"binance"},
		},
		DefaultVenue: "binance",
	}
}

// Plan returns the venues an intent should be routed to.
func (r RoutingRules) Plan(source string) []string {
	venues, ok := r.BySource[strings.ToLower(strings.TrimSpace(source))]
	if !ok || len(venues) == 0 {
		return []string{r.DefaultVenue}
	}
	return venues
}

// LegResult is one venue's outcome from a fan-out (spec §4.6).
type LegResult struct {
	Venue    string
	Request  PlaceOrderRequest
	Response *PlaceOrderResponse
	Err      error
}

// Router fans an intent's order request out to the venues its
// RoutingRules select, in parallel, joining before returning — the
// router never mutates shadow state (spec §4.6).
type Router struct {
	Registry *Registry
	Rules    RoutingRules
}

// NewRouter constructs a Router with the given registry and rules.
func NewRouter(reg *Registry, rules RoutingRules) *Router {
	return &Router{Registry: reg, Rules: rules}
}

// Route returns the fan-out plan for an intent without executing it.
func (rt *Router) Route(it *model.Intent) []string {
	return rt.Rules.Plan(it.Source)
}

// Execute runs req against every venue in venues concurrently and
// returns one LegResult per venue. A leg failing (transport or
// breaker-open) does not cancel the others — each leg's error is
// captured in its own LegResult, never propagated to the group, so
// that every leg always runs to completion (spec §4.6, §5, §7).
func (rt *Router) Execute(ctx context.Context, venues []string, buildReq func(venue string) PlaceOrderRequest) []LegResult {
	results := make([]LegResult, len(venues))

	var g errgroup.Group
	for i, venue := range venues {
		i, venue := i, venue
		results[i].Venue = venue
		req := buildReq(venue)
		results[i].Request = req

		g.Go(func() error {
			adapter, breaker, ok := rt.Registry.Get(venue)
			if !ok {
				results[i].Err = errUnknownVenue
				return nil
			}
			raw, err := breaker.Execute(func() (interface{}, error) {
				return adapter.PlaceOrder(ctx, req)
			})
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Response = raw.(*PlaceOrderResponse)
			return nil
		})
	}
	_ = g.Wait() // every goroutine swallows its own error into results[i].Err
	return results
}
