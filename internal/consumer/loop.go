// Package consumer implements spec §4.12: the durable pull consumer
// over the intents work-queue stream plus the best-effort side
// subscriptions (halt, policy update, heartbeat, state update,
// flatten, ticker, positions/balances RPC), wired on nats-io/nats.go
// JetStream the way the pack's NATS-consuming services do (grounded on
// autovant-trading-bot's execution_service.go Subscribe idiom,
// extended to JetStream's pull-consumer API for the durable,
// explicit-ack work queue the spec asks for).
package consumer

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/titanx/execution-core/internal/bus"
	"github.com/titanx/execution-core/internal/clockid"
	"github.com/titanx/execution-core/internal/config"
	"github.com/titanx/execution-core/internal/envelope"
	"github.com/titanx/execution-core/internal/model"
	"github.com/titanx/execution-core/internal/pipeline"
	"github.com/titanx/execution-core/internal/risk"
	"github.com/titanx/execution-core/internal/router"
	"github.com/titanx/execution-core/internal/shadow"
	"github.com/titanx/execution-core/internal/storage"
)

// NATSPublisher adapts a *nats.Conn to bus.Publisher.
type NATSPublisher struct{ NC *nats.Conn }

func (p NATSPublisher) Publish(subject string, payload []byte) error {
	return p.NC.Publish(subject, payload)
}

// Loop owns the durable intents consumer and every side subscription.
type Loop struct {
	NC      *nats.Conn
	JS      nats.JetStreamContext
	intents *nats.Subscription

	Stream        string
	Durable       string
	MaxDeliver    int
	AckWait       time.Duration
	FetchBatch    int
	FetchMaxWait  time.Duration

	Verifier *envelope.Verifier
	Pipeline *pipeline.Pipeline
	Guard    *risk.Guard
	Shadow   *shadow.State
	Store    *storage.Store
	Router   *router.Router
	Ticker   *TickerStore
	Armed    *config.Armed
	Clock    clockid.Provider

	halted atomic.Bool

	Log *zap.SugaredLogger
}

// Start binds the durable pull consumer and registers every side
// subscription. The intents stream/consumer are assumed provisioned
// out of band; Start only binds to them.
func (l *Loop) Start() error {
	sub, err := l.JS.PullSubscribe(bus.SubjectIntentsWildcard, l.Durable,
		nats.BindStream(l.Stream),
		nats.ManualAck(),
		nats.AckWait(l.AckWait),
		nats.MaxDeliver(l.MaxDeliver),
	)
	if err != nil {
		return err
	}
	l.intents = sub

	if err := l.subscribeSideChannels(); err != nil {
		return err
	}
	return nil
}

// Run pulls batches from the intents consumer until ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := l.intents.Fetch(l.FetchBatch, nats.MaxWait(l.FetchMaxWait))
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				continue
			}
			l.Log.Warnw("consumer: fetch", "err", err)
			continue
		}
		for _, msg := range msgs {
			l.handleIntentMsg(ctx, msg)
		}
	}
}

// handleIntentMsg is the per-message boundary: a recovered panic never
// acks (spec §4.10 step 8), so redelivery can retry.
func (l *Loop) handleIntentMsg(ctx context.Context, msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			l.Log.Errorw("consumer: panic in handler, message will redeliver", "panic", r)
		}
	}()
	l.processIntent(ctx, msg)
}

func (l *Loop) decodeEnvelope(data []byte) (*model.Envelope, error) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Halted reports the process-wide halt flag (spec §4.12).
func (l *Loop) Halted() bool { return l.halted.Load() }
