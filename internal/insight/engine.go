package insight

import (
	"time"
)

// Engine runs the diagnostic and recommendation steps of the personalization
// pipeline. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	tuning Tuning
	guard  *Guard
	now    func() time.Time
}

func NewEngine(tuning Tuning, guard *Guard) *Engine {
	return &Engine{tuning: tuning, guard: guard, now: time.Now}
}

// WithClock returns a copy of the engine that stamps reports using now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

func (e *Engine) Tuning() Tuning {
	return e.tuning
}
