package consumer

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/titanx/execution-core/internal/bus"
	"github.com/titanx/execution-core/internal/config"
	"github.com/titanx/execution-core/internal/intent"
	"github.com/titanx/execution-core/internal/metrics"
)

// processIntent implements the ingestion path: envelope verification,
// intent validation, idempotency, the halt and armed gates, then the
// pipeline proper (spec §4.8, §4.9, §4.10, §4.12, §7).
func (l *Loop) processIntent(ctx context.Context, msg *nats.Msg) {
	now := l.Clock.NowMillis()

	env, err := l.decodeEnvelope(msg.Data)
	if err != nil {
		l.Log.Warnw("consumer: malformed envelope", "err", err)
		l.toDLQ(msg.Data)
		_ = msg.Ack()
		return
	}
	if err := l.Verifier.Verify(env, now); err != nil {
		l.Log.Warnw("consumer: envelope verification failed", "err", err)
		l.toDLQ(msg.Data)
		_ = msg.Ack()
		return
	}

	it, err := intent.Validate(env.Payload)
	if err != nil {
		l.Log.Warnw("consumer: intent validation failed", "err", err)
		l.toDLQ(msg.Data)
		_ = msg.Ack()
		return
	}

	expiryMs := it.TTLMillis
	if expiryMs <= 0 {
		expiryMs = 300_000
	}
	fresh, err := l.Store.ClaimIdempotencyKey(ctx, it.SignalID+":"+env.Nonce, now, now+expiryMs)
	if err != nil {
		l.Log.Errorw("consumer: idempotency claim failed, not acking", "signal_id", it.SignalID, "err", err)
		return // persistence failure: rely on redelivery
	}
	if !fresh {
		l.Log.Infow("consumer: duplicate envelope, acking without effect", "signal_id", it.SignalID)
		_ = msg.Ack()
		return
	}

	// Halt is evaluated per message after prefetch, before any side
	// effect (spec §4.12).
	if l.Halted() {
		_ = msg.Ack()
		return
	}

	if !l.Armed.IsArmed() {
		metrics.IntentsRejected.WithLabelValues(config.ErrNotArmed).Inc()
		l.Pipeline.PublishReject(it, config.ErrNotArmed, env.CorrelationID)
		_ = msg.Ack()
		return
	}

	result := l.Pipeline.Execute(ctx, it, env.CorrelationID)
	if result.RejectReason == "PERSIST_ERROR" {
		l.Log.Errorw("consumer: pipeline persistence failure, not acking", "signal_id", it.SignalID)
		return
	}
	_ = msg.Ack()
}

func (l *Loop) toDLQ(raw []byte) {
	if err := l.NC.Publish(bus.SubjectDLQ, raw); err != nil {
		l.Log.Warnw("consumer: publish to DLQ", "err", err)
	}
}
