package clockid

import (
	"time"

	"github.com/google/uuid"
)

// Live is the production Provider: system wall clock, cryptographically
// random ids.
type Live struct{}

// NewLive constructs the live provider.
func NewLive() *Live { return &Live{} }

func (Live) NowMillis() int64 { return time.Now().UnixMilli() }

func (Live) Now() time.Time { return time.Now() }

func (Live) NewID() string { return uuid.New().String() }
