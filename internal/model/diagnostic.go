package model

import "time"

// ReadinessUnknown is reported when a learner has no observed skills.
const ReadinessUnknown = -1.0

type SkillEstimate struct {
	SkillID  string  `json:"skillId"`
	Mastery  float64 `json:"mastery"`
	Evidence int     `json:"evidence"`
}

type SkillGap struct {
	SkillID  string  `json:"skillId"`
	Mastery  float64 `json:"mastery"`
	Severity float64 `json:"severity"`
	Evidence int     `json:"evidence"`
}

// DiagnosticReport is derived from a profile's history and never stored.
type DiagnosticReport struct {
	LearnerID   string          `json:"learnerId"`
	GeneratedAt time.Time       `json:"generatedAt"`
	HistorySize int             `json:"historySize"`
	Skills      []SkillEstimate `json:"skills"`
	Gaps        []SkillGap      `json:"gaps"`
	Readiness   float64         `json:"readiness"`
}

func (r DiagnosticReport) ReadinessKnown() bool {
	return r.Readiness != ReadinessUnknown
}

// Gap returns the gap entry for skillID, if flagged.
func (r DiagnosticReport) Gap(skillID string) (SkillGap, bool) {
	for _, g := range r.Gaps {
		if g.SkillID == skillID {
			return g, true
		}
	}
	return SkillGap{}, false
}

// Mastery returns the estimate for skillID, if observed.
func (r DiagnosticReport) Mastery(skillID string) (float64, bool) {
	for _, s := range r.Skills {
		if s.SkillID == skillID {
			return s.Mastery, true
		}
	}
	return 0, false
}
