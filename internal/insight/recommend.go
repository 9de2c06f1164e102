package insight

import (
	"learner_insight/internal/model"
	"math"
	"sort"
)

// Recommend ranks catalog items for the learner. Relevance comes from the gap
// severities an item targets, then is damped by unmet prerequisites and by
// distance from the learner's proximal difficulty. Ties keep catalog order.
func (e *Engine) Recommend(profile *model.LearnerProfile, report model.DiagnosticReport, catalog []model.CandidateContentItem) model.RecommendationList {
	list := model.RecommendationList{Items: []model.Recommendation{}}
	if len(catalog) == 0 {
		return list
	}

	target := e.tuning.ProximalOffset
	if report.ReadinessKnown() {
		target += report.Readiness
	}

	for _, item := range catalog {
		rationale := []string{}
		relevance := 0.0
		seen := make(map[string]bool, len(item.TargetSkills))
		for _, skill := range item.TargetSkills {
			if seen[skill] {
				continue
			}
			seen[skill] = true
			if gap, ok := report.Gap(skill); ok {
				relevance += gap.Severity
				rationale = append(rationale, model.RationaleGapPrefix+skill)
			}
		}
		if relevance <= 0 {
			continue
		}

		score := relevance
		if e.prerequisitesUnmet(profile, report, item.Prerequisites) {
			score *= e.tuning.PrerequisitePenalty
			rationale = append(rationale, model.RationalePrerequisitesUnmet)
		}

		difficulty := e.guard.Clamp(ViolationDifficulty, item.Difficulty, 0, 1)
		distance := math.Abs(difficulty - target)
		excess := math.Max(0, distance-e.tuning.DifficultyTolerance)
		score *= math.Max(e.tuning.DifficultyFloor, 1-e.tuning.DifficultyPenalty*excess)
		switch {
		case excess == 0:
			rationale = append(rationale, model.RationaleDifficultyFit)
		case difficulty > target:
			rationale = append(rationale, model.RationaleDifficultyStretch)
		default:
			rationale = append(rationale, model.RationaleDifficultyEasy)
		}

		if score <= 0 {
			continue
		}
		list.Items = append(list.Items, model.Recommendation{
			ContentID: item.ID,
			Title:     item.Title,
			Score:     score,
			Rationale: rationale,
		})
	}

	sort.SliceStable(list.Items, func(i, j int) bool {
		return list.Items[i].Score > list.Items[j].Score
	})
	if len(list.Items) > e.tuning.MaxRecommendations {
		list.Items = list.Items[:e.tuning.MaxRecommendations]
	}
	return list
}

// prerequisitesUnmet reports whether any prerequisite sits below the floor.
// Mastery is read from the report first, then the profile's running estimate;
// an unseen skill counts as zero.
func (e *Engine) prerequisitesUnmet(profile *model.LearnerProfile, report model.DiagnosticReport, prereqs []string) bool {
	for _, skill := range prereqs {
		m, ok := report.Mastery(skill)
		if !ok && profile != nil {
			m, ok = profile.Mastery[skill]
		}
		if !ok {
			m = 0
		}
		if m < e.tuning.PrerequisiteFloor {
			return true
		}
	}
	return false
}
