package insight

import (
	"encoding/json"
	"fmt"
	"learner_insight/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gapProfile() *model.LearnerProfile {
	return &model.LearnerProfile{
		LearnerID: "l-1",
		Mastery:   map[string]float64{"vectors": 0.9},
		History: []model.ActivityEvent{
			attempt(1, "kinematics", false, 0),
			attempt(2, "kinematics", false, time.Minute),
			attempt(3, "algebra", true, 2*time.Minute),
		},
	}
}

func item(id string, difficulty float64, targets []string, prereqs ...string) model.CandidateContentItem {
	return model.CandidateContentItem{
		ID:            id,
		Title:         "Item " + id,
		Kind:          model.ContentLab,
		TargetSkills:  targets,
		Prerequisites: prereqs,
		Difficulty:    difficulty,
	}
}

func TestRecommendEmptyCatalog(t *testing.T) {
	e := testEngine()
	profile := gapProfile()
	list := e.Recommend(profile, e.Diagnose(profile), nil)

	assert.Equal(t, 0, list.Len())
	raw, err := json.Marshal(list)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(raw))
}

func TestRecommendGapItemsFirstInCatalogOrder(t *testing.T) {
	e := testEngine()
	profile := gapProfile()
	report := e.Diagnose(profile)
	catalog := []model.CandidateContentItem{
		item("a", 0.5, []string{"algebra"}),
		item("b", 0.5, []string{"kinematics"}),
		item("c", 0.5, []string{"kinematics"}),
	}

	list := e.Recommend(profile, report, catalog)

	require.GreaterOrEqual(t, list.Len(), 2)
	assert.Equal(t, "b", list.Items[0].ContentID)
	assert.Equal(t, "c", list.Items[1].ContentID)
	assert.Contains(t, list.Items[0].Rationale, "gap:kinematics")
	for _, r := range list.Items {
		assert.NotEqual(t, "a", r.ContentID)
	}
}

func TestRecommendIsDeterministic(t *testing.T) {
	e := testEngine()
	profile := gapProfile()
	report := e.Diagnose(profile)
	var catalog []model.CandidateContentItem
	for i := 0; i < 15; i++ {
		catalog = append(catalog, item(fmt.Sprintf("c%02d", i), float64(i)/15, []string{"kinematics"}))
	}

	first, err := json.Marshal(e.Recommend(profile, report, catalog))
	require.NoError(t, err)
	second, err := json.Marshal(e.Recommend(profile, report, catalog))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecommendCapsList(t *testing.T) {
	e := testEngine()
	profile := gapProfile()
	var catalog []model.CandidateContentItem
	for i := 0; i < 25; i++ {
		catalog = append(catalog, item(fmt.Sprintf("c%02d", i), 0.2, []string{"kinematics"}))
	}
	list := e.Recommend(profile, e.Diagnose(profile), catalog)
	assert.Equal(t, DefaultTuning().MaxRecommendations, list.Len())
	assert.Equal(t, "c00", list.Items[0].ContentID)
}

func TestRecommendPrerequisitePenalty(t *testing.T) {
	e := testEngine()
	profile := gapProfile()
	report := e.Diagnose(profile)
	catalog := []model.CandidateContentItem{
		item("gated", 0.3, []string{"kinematics"}, "calculus"),
		item("open", 0.3, []string{"kinematics"}, "vectors", "algebra"),
	}

	list := e.Recommend(profile, report, catalog)

	require.Equal(t, 2, list.Len())
	assert.Equal(t, "open", list.Items[0].ContentID)
	assert.Equal(t, "gated", list.Items[1].ContentID)
	assert.InDelta(t, list.Items[0].Score*DefaultTuning().PrerequisitePenalty, list.Items[1].Score, 1e-9)
	assert.Contains(t, list.Items[1].Rationale, model.RationalePrerequisitesUnmet)
	assert.NotContains(t, list.Items[0].Rationale, model.RationalePrerequisitesUnmet)
}

func TestRecommendDifficultyFit(t *testing.T) {
	e := testEngine()
	profile := gapProfile()
	report := e.Diagnose(profile)
	// readiness is (0 + 1) / 2, so the proximal target is 0.6
	require.InDelta(t, 0.5, report.Readiness, 1e-9)

	catalog := []model.CandidateContentItem{
		item("easy", 0.0, []string{"kinematics"}),
		item("fit", 0.6, []string{"kinematics"}),
		item("hard", 1.0, []string{"kinematics"}),
	}
	list := e.Recommend(profile, report, catalog)

	require.Equal(t, 3, list.Len())
	byID := map[string]model.Recommendation{}
	for _, r := range list.Items {
		byID[r.ContentID] = r
	}
	assert.Equal(t, "fit", list.Items[0].ContentID)
	assert.Contains(t, byID["fit"].Rationale, model.RationaleDifficultyFit)
	assert.Contains(t, byID["easy"].Rationale, model.RationaleDifficultyEasy)
	assert.Contains(t, byID["hard"].Rationale, model.RationaleDifficultyStretch)

	// excess 0.45 and 0.25 respectively
	base := byID["fit"].Score
	assert.InDelta(t, base*0.55, byID["easy"].Score, 1e-9)
	assert.InDelta(t, base*0.75, byID["hard"].Score, 1e-9)
}

func TestRecommendWithoutHistoryIsEmpty(t *testing.T) {
	e := testEngine()
	profile := &model.LearnerProfile{LearnerID: "new"}
	report := e.Diagnose(profile)
	// a learner without history has no gaps, so nothing is relevant
	list := e.Recommend(profile, report, []model.CandidateContentItem{item("a", 0.1, []string{"kinematics"})})
	assert.Equal(t, 0, list.Len())
	assert.NotNil(t, list.Items)
}

func TestRecommendDuplicateTargetsCountOnce(t *testing.T) {
	e := testEngine()
	profile := gapProfile()
	report := e.Diagnose(profile)
	list := e.Recommend(profile, report, []model.CandidateContentItem{
		item("once", 0.6, []string{"kinematics"}),
		item("twice", 0.6, []string{"kinematics", "kinematics"}),
	})
	require.Equal(t, 2, list.Len())
	assert.Equal(t, list.Items[0].Score, list.Items[1].Score)
	assert.Equal(t, "once", list.Items[0].ContentID)
}
