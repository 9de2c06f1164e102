package insight

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	ViolationMastery     = "mastery_range"
	ViolationScore       = "score_range"
	ViolationDifficulty  = "difficulty_range"
	ViolationGranularity = "granularity_mismatch"
	ViolationOrdering    = "ordering"
)

// InvariantViolation is raised by a strict Guard when a computed value breaks
// a domain invariant.
type InvariantViolation struct {
	Kind   string
	Detail string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation (%s): %s", v.Kind, v.Detail)
}

// Guard decides what happens on an invariant violation. Strict guards panic;
// lenient guards clamp, log and count. A nil *Guard is lenient and silent.
type Guard struct {
	strict     bool
	log        *zap.Logger
	violations *prometheus.CounterVec
}

// NewGuard builds a guard. violations must carry a single "kind" label; it may be nil.
func NewGuard(strict bool, log *zap.Logger, violations *prometheus.CounterVec) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{strict: strict, log: log, violations: violations}
}

func (g *Guard) Strict() bool {
	return g != nil && g.strict
}

// Check reports a violation when ok is false.
func (g *Guard) Check(ok bool, kind, detail string) {
	if ok {
		return
	}
	g.violate(kind, detail)
}

// Clamp returns v limited to [lo, hi]. NaN becomes lo.
func (g *Guard) Clamp(kind string, v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		g.violate(kind, fmt.Sprintf("value is NaN, want [%v,%v]", lo, hi))
		return lo
	case v < lo:
		g.violate(kind, fmt.Sprintf("value %v below %v", v, lo))
		return lo
	case v > hi:
		g.violate(kind, fmt.Sprintf("value %v above %v", v, hi))
		return hi
	}
	return v
}

func (g *Guard) violate(kind, detail string) {
	if g == nil {
		return
	}
	if g.strict {
		panic(&InvariantViolation{Kind: kind, Detail: detail})
	}
	g.log.Warn("Invariant violation clamped",
		zap.String("kind", kind),
		zap.String("detail", detail),
	)
	if g.violations != nil {
		g.violations.WithLabelValues(kind).Inc()
	}
}
