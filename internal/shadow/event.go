package shadow

import "github.com/titanx/execution-core/internal/model"

// EventKind tags the shadow-state events §4.11 says to emit. The
// pipeline publishes the three position kinds on one shared position
// subject and TradeCompleted on its own subject (spec §6).
type EventKind string

const (
	EventPositionOpened EventKind = "PositionOpened"
	EventPositionUpdated EventKind = "PositionUpdated"
	EventPositionClosed  EventKind = "PositionClosed"
	EventTradeCompleted  EventKind = "TradeCompleted"
)

// Event is one shadow-state side effect to publish.
type Event struct {
	Kind     EventKind
	Position *model.Position
	Trade    *model.TradeRecord
}
