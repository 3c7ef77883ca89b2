package clockid

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Sim is the deterministic Provider used by tests and the replay
// engine: time is advanced explicitly by the driver, ids are a
// monotonic counter rendered as a fixed-width string so two runs over
// the same event stream produce byte-identical id sequences.
type Sim struct {
	millis atomic.Int64
	seq    atomic.Uint64
}

// NewSim constructs a simulated clock starting at startMillis.
func NewSim(startMillis int64) *Sim {
	s := &Sim{}
	s.millis.Store(startMillis)
	return s
}

// Advance moves the simulated clock to ts if ts is later than the
// current value. The replay engine calls this before dispatching each
// event (spec §4.13).
func (s *Sim) Advance(ts int64) {
	for {
		cur := s.millis.Load()
		if ts <= cur {
			return
		}
		if s.millis.CompareAndSwap(cur, ts) {
			return
		}
	}
}

func (s *Sim) NowMillis() int64 { return s.millis.Load() }

func (s *Sim) Now() time.Time { return time.UnixMilli(s.millis.Load()).UTC() }

func (s *Sim) NewID() string {
	n := s.seq.Add(1)
	return fmt.Sprintf("sim-%020d", n)
}
