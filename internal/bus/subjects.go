// Package bus names the wire subjects the engine consumes from and
// publishes to (spec §6's subject catalog), and the minimal Publisher
// contract the pipeline needs — decoupled from any one transport so
// tests can swap in an in-memory fake.
package bus

import "fmt"

const (
	SubjectIntentsWildcard = "titan.cmd.exec.>"
	SubjectHalt            = "titan.cmd.sys.halt.v1"
	SubjectFlatten         = "titan.cmd.risk.flatten"
	SubjectPolicyUpdate    = "titan.cmd.risk.policy.v1"
	SubjectArm             = "titan.cmd.operator.arm.v1"
	SubjectDisarm          = "titan.cmd.operator.disarm.v1"

	SubjectHeartbeat = "titan.evt.system.heartbeat"
	SubjectRiskState = "titan.evt.risk.state"

	SubjectTickerWildcard = "titan.data.market.ticker.v1.>"

	SubjectGetPositionsWildcard = "titan.rpc.execution.get_positions.v1.>"
	SubjectGetBalancesWildcard  = "titan.rpc.execution.get_balances.v1.>"

	SubjectShadowFill     = "titan.evt.execution.shadow_fill.v1"
	SubjectTradeCompleted = "titan.evt.analysis.trade_completed.v1"
	SubjectFunding        = "titan.evt.execution.funding.v1"

	// SubjectReject and SubjectPosition are not named explicitly in the
	// subject catalog but follow its "titan.evt.execution.*" naming for
	// the two side effects the catalog's prose requires ("emit reject
	// event", shadow-state position events) without pinning a subject.
	SubjectReject   = "titan.evt.execution.reject.v1"
	SubjectPosition = "titan.evt.execution.position.v1"

	SubjectDLQ = "titan.dlq.execution.core"
)

// FillSubject builds the venue/account/symbol-scoped fill subject.
func FillSubject(venue, account, symbol string) string {
	return fmt.Sprintf("titan.evt.execution.fill.v1.%s.%s.%s", venue, account, symbol)
}

// Publisher is the fire-and-forget publish contract the pipeline needs.
// Publishes must never block intent ack (spec §5 backpressure note).
type Publisher interface {
	Publish(subject string, payload []byte) error
}
