package insight

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newViolationCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_violations_total"}, []string{"kind"})
}

func TestGuardClampMode(t *testing.T) {
	counter := newViolationCounter()
	g := NewGuard(false, zap.NewNop(), counter)

	assert.Equal(t, 0.4, g.Clamp(ViolationMastery, 0.4, 0, 1))
	assert.Equal(t, 1.0, g.Clamp(ViolationMastery, 1.3, 0, 1))
	assert.Equal(t, 0.0, g.Clamp(ViolationMastery, -0.1, 0, 1))
	assert.Equal(t, 0.0, g.Clamp(ViolationScore, math.NaN(), 0, 1))

	assert.Equal(t, 3.0, testutil.ToFloat64(counter.WithLabelValues(ViolationMastery)))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(ViolationScore)))
}

func TestGuardStrictModePanics(t *testing.T) {
	g := NewGuard(true, nil, nil)
	assert.True(t, g.Strict())

	assert.NotPanics(t, func() { g.Check(true, ViolationOrdering, "fine") })
	assert.PanicsWithError(t, "invariant violation (mastery_range): value 2 above 1", func() {
		g.Clamp(ViolationMastery, 2, 0, 1)
	})
}

func TestNilGuardClampsSilently(t *testing.T) {
	var g *Guard
	assert.False(t, g.Strict())
	assert.Equal(t, 1.0, g.Clamp(ViolationMastery, 5, 0, 1))
	assert.NotPanics(t, func() { g.Check(false, ViolationOrdering, "ignored") })
}

func TestTuningValidate(t *testing.T) {
	assert.NoError(t, DefaultTuning().Validate())

	bad := DefaultTuning()
	bad.DecayFactor = 0
	bad.GapThreshold = 1.5
	bad.MaxRecommendations = 0
	err := bad.Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "decay_factor")
		assert.Contains(t, err.Error(), "gap_threshold")
		assert.Contains(t, err.Error(), "max_recommendations")
	}
}

func TestTuningStoreSwap(t *testing.T) {
	var empty TuningStore
	assert.Equal(t, DefaultTuning(), empty.Load())

	s := NewTuningStore(DefaultTuning())
	next := DefaultTuning()
	next.GapThreshold = 0.5
	s.Store(next)
	assert.Equal(t, 0.5, s.Load().GapThreshold)
}

func TestRunningMastery(t *testing.T) {
	assert.Equal(t, 0.4, RunningMastery(0, 0.4, 0.7, true))
	assert.InDelta(t, 0.79, RunningMastery(0.7, 1, 0.7, false), 1e-9)
	assert.Equal(t, 1.0, RunningMastery(1, 1, 0.7, false))
}
