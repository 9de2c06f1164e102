package insight

import (
	"fmt"
	"learner_insight/internal/model"
	"math"
	"sort"
)

type skillTally struct {
	weighted float64
	weights  float64
	evidence int
}

// Diagnose estimates per-skill mastery from the profile's history and flags
// gaps. Within a skill the k-th most recent event weighs DecayFactor^k.
// When the history was truncated, skills seen only before the window fall
// back to their stored running estimate, counted as one observation.
func (e *Engine) Diagnose(profile *model.LearnerProfile) model.DiagnosticReport {
	report := model.DiagnosticReport{
		GeneratedAt: e.now().UTC(),
		Skills:      []model.SkillEstimate{},
		Gaps:        []model.SkillGap{},
		Readiness:   model.ReadinessUnknown,
	}
	if profile == nil {
		return report
	}
	report.LearnerID = profile.LearnerID
	report.HistorySize = len(profile.History)

	history := orderedHistory(profile.History)
	tallies := make(map[string]*skillTally)
	// walk newest to oldest so each skill's k-th event is its k-th visit
	for i := len(history) - 1; i >= 0; i-- {
		ev := history[i]
		if ev.SkillID == "" {
			continue
		}
		t, ok := tallies[ev.SkillID]
		if !ok {
			t = &skillTally{}
			tallies[ev.SkillID] = t
		}
		w := 1.0
		for k := 0; k < t.evidence; k++ {
			w *= e.tuning.DecayFactor
		}
		t.weighted += w * ev.Outcome()
		t.weights += w
		t.evidence++
	}
	if profile.HistoryTruncated {
		for skill, m := range profile.Mastery {
			if _, ok := tallies[skill]; !ok {
				tallies[skill] = &skillTally{weighted: m, weights: 1, evidence: 1}
			}
		}
	}
	if len(tallies) == 0 {
		return report
	}

	var total float64
	for skill, t := range tallies {
		m := 0.0
		if t.weights > 0 {
			m = t.weighted / t.weights
		}
		m = e.guard.Clamp(ViolationMastery, m, 0, 1)
		total += m
		report.Skills = append(report.Skills, model.SkillEstimate{SkillID: skill, Mastery: m, Evidence: t.evidence})

		if m < e.tuning.GapThreshold && t.evidence >= 1 {
			confidence := float64(t.evidence) / e.tuning.ConfidenceSaturation
			if confidence > 1 {
				confidence = 1
			}
			report.Gaps = append(report.Gaps, model.SkillGap{
				SkillID:  skill,
				Mastery:  m,
				Severity: (e.tuning.GapThreshold - m) * confidence,
				Evidence: t.evidence,
			})
		}
	}
	sort.Slice(report.Skills, func(i, j int) bool {
		return report.Skills[i].SkillID < report.Skills[j].SkillID
	})
	sort.Slice(report.Gaps, func(i, j int) bool {
		a, b := report.Gaps[i], report.Gaps[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		return a.SkillID < b.SkillID
	})
	report.Readiness = e.guard.Clamp(ViolationMastery, total/float64(len(report.Skills)), 0, 1)

	for i := 1; i < len(report.Gaps); i++ {
		e.guard.Check(report.Gaps[i-1].Severity >= report.Gaps[i].Severity, ViolationOrdering,
			fmt.Sprintf("gap %s ranked above a more severe gap", report.Gaps[i-1].SkillID))
	}
	return report
}

// orderedHistory returns the events sorted by (OccurredAt, Seq) without
// touching the caller's slice.
func orderedHistory(events []model.ActivityEvent) []model.ActivityEvent {
	out := make([]model.ActivityEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// RunningMastery folds one outcome into a skill's stored estimate as an
// exponential moving average. The first observation is taken as is.
func RunningMastery(current, outcome, decay float64, first bool) float64 {
	m := outcome
	if !first {
		m = current*decay + outcome*(1-decay)
	}
	return math.Min(1, math.Max(0, m))
}
