package room

import (
	"time"

	"github.com/mavelar/chainchess/internal/rules"
)

// ClockConfig is the per-room time control: a fixed initial budget per side
// plus a Fischer increment granted on every legal move.
type ClockConfig struct {
	InitialMs   int64
	IncrementMs int64
}

// Clock is wall-clock budget accounting for both sides. Remaining time is
// decayed lazily: nothing counts down until Decay observes elapsed time.
type Clock struct {
	WhiteMs     int64      `json:"white_ms"`
	BlackMs     int64      `json:"black_ms"`
	IncrementMs int64      `json:"increment_ms"`
	Running     bool       `json:"running"`
	LastTickAt  *time.Time `json:"last_tick_at,omitempty"`
}

func (c *Clock) Remaining(color rules.Color) int64 {
	if color == rules.White {
		return c.WhiteMs
	}
	return c.BlackMs
}

func (c *Clock) setRemaining(color rules.Color, ms int64) {
	if color == rules.White {
		c.WhiteMs = ms
	} else {
		c.BlackMs = ms
	}
}

// Start marks the clock running from now. Called once both seats fill and
// again on rematch reset.
func (r *Room) StartClock(now time.Time) {
	now = now.UTC()
	r.Clock.Running = true
	r.Clock.LastTickAt = &now
}

// Decay recomputes the mover's remaining budget from elapsed wall time. It
// is idempotent with zero elapsed time, floors at zero, and forces an
// opponent-wins-by-timeout result the moment a side's budget is exhausted.
// Every read or mutation of the clock goes through here, so timeout is
// detected even when no periodic tick has fired.
func (r *Room) Decay(now time.Time) {
	if !r.Clock.Running || r.Clock.LastTickAt == nil || r.Finished() {
		return
	}
	now = now.UTC()
	elapsed := now.Sub(*r.Clock.LastTickAt).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	mover := r.Position.Turn()
	remaining := r.Clock.Remaining(mover) - elapsed
	if remaining < 0 {
		remaining = 0
	}
	r.Clock.setRemaining(mover, remaining)
	r.Clock.LastTickAt = &now
	if remaining == 0 {
		r.Force(rules.Result{Winner: mover.Opponent(), Reason: rules.ReasonTimeout})
	}
}

// CreditIncrement grants the mover's Fischer increment and restamps the
// tick origin; called only after a legal move was applied.
func (r *Room) CreditIncrement(mover rules.Color, now time.Time) {
	now = now.UTC()
	r.Clock.setRemaining(mover, r.Clock.Remaining(mover)+r.Clock.IncrementMs)
	r.Clock.LastTickAt = &now
}
