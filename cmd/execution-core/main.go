// Program execution-core is the entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) config.Load()             – read env into a runtime Config
//   2) logging.New()             – structured logger
//   3) storage.Open() + recover  – sqlite-backed WAL/entity tables
//   4) risk.NewGuard             – load the risk policy document
//   5) router.Registry           – one adapter per venue (mock, pending
//      real exchange adapters out of scope for this engine)
//   6) consumer.Loop             – durable intents consumer + side subs
//   7) /healthz and /metrics on cfg.Port
//   8) graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/titanx/execution-core/internal/bus"
	"github.com/titanx/execution-core/internal/clockid"
	"github.com/titanx/execution-core/internal/config"
	"github.com/titanx/execution-core/internal/consumer"
	"github.com/titanx/execution-core/internal/decision"
	"github.com/titanx/execution-core/internal/envelope"
	"github.com/titanx/execution-core/internal/logging"
	"github.com/titanx/execution-core/internal/pipeline"
	"github.com/titanx/execution-core/internal/ratelimit"
	"github.com/titanx/execution-core/internal/risk"
	"github.com/titanx/execution-core/internal/router"
	"github.com/titanx/execution-core/internal/shadow"
	"github.com/titanx/execution-core/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New()
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	store, err := storage.Open(cfg.SQLitePath)
	if err != nil {
		logger.Fatalw("storage open", "err", err)
	}
	defer store.Close()

	shadowState := shadow.New(store, cfg.TradeHistoryRetain)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := shadowState.RecoverFromStore(ctx); err != nil {
		logger.Fatalw("shadow recovery", "err", err)
	}

	policy, err := config.LoadRiskPolicy(cfg.RiskPolicyPath)
	if err != nil {
		logger.Warnw("risk policy load failed, starting with a zero-value policy", "err", err)
		policy = &risk.Policy{CurrentState: risk.StateNormal}
	}
	guard := risk.NewGuard(policy, logger)

	clock := clockid.Live{}
	reg := router.NewRegistry()
	for _, venue := range []string{"binance", "bybit", "mexc"} {
		reg.Register(router.NewMockAdapter(venue, clock, decimal.NewFromInt(50_000), decimal.NewFromFloat(cfg.TakerFeePct)))
	}
	rt := router.NewRouter(reg, router.DefaultRoutingRules())

	armed := config.NewArmed(cfg.LockfilePath)
	ticker := consumer.NewTickerStore()

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logger.Fatalw("nats connect", "err", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatalw("nats jetstream", "err", err)
	}

	secrets := map[string][]byte{"": []byte(cfg.HMACSecret)}
	verifier := envelope.NewVerifier(secrets)
	verifier.ToleranceMillis = cfg.EnvelopeToleranceMs

	pl := &pipeline.Pipeline{
		Guard:    guard,
		Shadow:   shadowState,
		Router:   rt,
		Limiters: ratelimit.New(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		Clock:    clock,
		Market:   ticker,
		Envelope: &envelope.Builder{Clock: clock, Secret: []byte(cfg.HMACSecret), KeyID: ""},
		Bus:      consumer.NATSPublisher{NC: nc},
		Orders:   pipeline.NewOrderTracker(),
		Fees: decision.Fees{
			MakerFeePct:        decimal.NewFromFloat(cfg.MakerFeePct),
			TakerFeePct:        decimal.NewFromFloat(cfg.TakerFeePct),
			MinProfitMargin:    decimal.NewFromFloat(cfg.MinProfitMarginPct),
			ChaseTimeoutMillis: cfg.ChaseTimeoutMillis,
		},
		FreshnessWindowMillis:   cfg.FreshnessWindowMillis,
		AggregationWindowMillis: cfg.AggregationWindowMillis,
		Log:                     logger,
	}

	loop := &consumer.Loop{
		NC:           nc,
		JS:           js,
		Stream:       cfg.ConsumerStream,
		Durable:      cfg.ConsumerDurable,
		MaxDeliver:   cfg.MaxDeliver,
		AckWait:      time.Duration(cfg.AckWaitMillis) * time.Millisecond,
		FetchBatch:   10,
		FetchMaxWait: 2 * time.Second,
		Verifier:     verifier,
		Pipeline:     pl,
		Guard:        guard,
		Shadow:       shadowState,
		Store:        store,
		Router:       rt,
		Ticker:       ticker,
		Armed:        armed,
		Clock:        clock,
		Log:          logger,
	}
	if err := loop.Start(); err != nil {
		logger.Fatalw("consumer start", "err", err)
	}
	go loop.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		logger.Infow("serving", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("http server", "err", err)
		}
	}()

	logger.Infow("execution-core running", "armed", armed.IsArmed(), "subject", bus.SubjectIntentsWildcard)
	<-ctx.Done()
	logger.Infow("shutting down")

	shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}
