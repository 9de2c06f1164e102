package insight

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Tuning holds every constant the diagnostic and recommendation engines use.
// A Tuning value is treated as immutable once handed to an engine.
type Tuning struct {
	DecayFactor          float64 `mapstructure:"decay_factor" json:"decayFactor"`
	GapThreshold         float64 `mapstructure:"gap_threshold" json:"gapThreshold"`
	ConfidenceSaturation float64 `mapstructure:"confidence_saturation" json:"confidenceSaturation"`
	PrerequisiteFloor    float64 `mapstructure:"prerequisite_floor" json:"prerequisiteFloor"`
	PrerequisitePenalty  float64 `mapstructure:"prerequisite_penalty" json:"prerequisitePenalty"`
	ProximalOffset       float64 `mapstructure:"proximal_offset" json:"proximalOffset"`
	DifficultyTolerance  float64 `mapstructure:"difficulty_tolerance" json:"difficultyTolerance"`
	DifficultyPenalty    float64 `mapstructure:"difficulty_penalty" json:"difficultyPenalty"`
	DifficultyFloor      float64 `mapstructure:"difficulty_floor" json:"difficultyFloor"`
	MaxRecommendations   int     `mapstructure:"max_recommendations" json:"maxRecommendations"`
}

func DefaultTuning() Tuning {
	return Tuning{
		DecayFactor:          0.7,
		GapThreshold:         0.6,
		ConfidenceSaturation: 5,
		PrerequisiteFloor:    0.3,
		PrerequisitePenalty:  0.5,
		ProximalOffset:       0.1,
		DifficultyTolerance:  0.15,
		DifficultyPenalty:    1.0,
		DifficultyFloor:      0.25,
		MaxRecommendations:   10,
	}
}

func (t Tuning) Validate() error {
	var errs []error
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if t.DecayFactor <= 0 || t.DecayFactor > 1 {
		errs = append(errs, fmt.Errorf("decay_factor must be within (0,1], got %v", t.DecayFactor))
	}
	unit("gap_threshold", t.GapThreshold)
	unit("prerequisite_floor", t.PrerequisiteFloor)
	unit("prerequisite_penalty", t.PrerequisitePenalty)
	unit("proximal_offset", t.ProximalOffset)
	unit("difficulty_tolerance", t.DifficultyTolerance)
	unit("difficulty_floor", t.DifficultyFloor)
	if t.ConfidenceSaturation < 1 {
		errs = append(errs, fmt.Errorf("confidence_saturation must be >= 1, got %v", t.ConfidenceSaturation))
	}
	if t.DifficultyPenalty < 0 {
		errs = append(errs, fmt.Errorf("difficulty_penalty must be >= 0, got %v", t.DifficultyPenalty))
	}
	if t.MaxRecommendations < 1 {
		errs = append(errs, fmt.Errorf("max_recommendations must be >= 1, got %d", t.MaxRecommendations))
	}
	return errors.Join(errs...)
}

// TuningStore publishes the current Tuning to concurrent readers. Writers
// replace the whole value; readers never see a partial update.
type TuningStore struct {
	p atomic.Pointer[Tuning]
}

func NewTuningStore(t Tuning) *TuningStore {
	s := &TuningStore{}
	s.Store(t)
	return s
}

func (s *TuningStore) Load() Tuning {
	if t := s.p.Load(); t != nil {
		return *t
	}
	return DefaultTuning()
}

func (s *TuningStore) Store(t Tuning) {
	s.p.Store(&t)
}
