package service

import (
	"context"
	"errors"
	"learner_insight/internal/insight"
	"learner_insight/internal/model"
	"learner_insight/internal/repository"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCatalog struct{}

func (failingCatalog) ListPublished(context.Context) ([]model.CandidateContentItem, error) {
	return nil, errors.New("catalog offline")
}

func TestPersonalizeEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newActivityFixture(t)
	content := repository.NewContentRepository(f.db)
	require.NoError(t, content.Upsert(ctx, []model.CandidateContentItem{
		{ID: "lab-a", Title: "Vectors", TargetSkills: []string{"vectors"}, Difficulty: 0.2, Position: 1, Published: true},
		{ID: "lab-b", Title: "Projectiles", TargetSkills: []string{"kinematics"}, Difficulty: 0.4, Position: 2, Published: true},
		{ID: "lab-c", Title: "Launch angles", TargetSkills: []string{"kinematics"}, Difficulty: 0.4, Position: 3, Published: true},
	}))

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	for i, ok := range []bool{false, true} {
		_, err := f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{
			SkillID: "kinematics", Kind: model.ActivityAttempt, Success: ok, OccurredAt: at.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	svc := NewPersonalizationService(f.resolver, content, insight.NewTuningStore(insight.DefaultTuning()), insight.NewGuard(true, nil, nil), nil)
	bundle, err := svc.Personalize(ctx, "l-1", model.ProfileHints{})
	require.NoError(t, err)

	assert.Equal(t, "l-1", bundle.Profile.LearnerID)
	assert.Equal(t, 2, bundle.Diagnostics.HistorySize)
	m, ok := bundle.Diagnostics.Mastery("kinematics")
	require.True(t, ok)
	assert.InDelta(t, 1/1.7, m, 1e-9)

	require.Equal(t, 2, bundle.Recommendations.Len())
	assert.Equal(t, "lab-b", bundle.Recommendations.Items[0].ContentID)
	assert.Equal(t, "lab-c", bundle.Recommendations.Items[1].ContentID)
}

func TestPersonalizeNewLearner(t *testing.T) {
	f := newActivityFixture(t)
	svc := NewPersonalizationService(f.resolver, repository.NewContentRepository(f.db), insight.NewTuningStore(insight.DefaultTuning()), nil, nil)

	bundle, err := svc.Personalize(context.Background(), "fresh", model.ProfileHints{Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, model.Teacher, bundle.Profile.Role)
	assert.Equal(t, model.ReadinessUnknown, bundle.Diagnostics.Readiness)
	assert.Empty(t, bundle.Diagnostics.Gaps)
	assert.NotNil(t, bundle.Recommendations.Items)
}

func TestPersonalizeCatalogUnavailable(t *testing.T) {
	f := newActivityFixture(t)
	_, err := f.service.Record(context.Background(), "l-1", model.ProfileHints{}, ActivityInput{SkillID: "optics", Kind: model.ActivityAttempt})
	require.NoError(t, err)

	svc := NewPersonalizationService(f.resolver, failingCatalog{}, insight.NewTuningStore(insight.DefaultTuning()), nil, nil)
	bundle, err := svc.Personalize(context.Background(), "l-1", model.ProfileHints{})
	require.NoError(t, err)
	assert.Len(t, bundle.Diagnostics.Gaps, 1)
	assert.Equal(t, 0, bundle.Recommendations.Len())
}

func TestPersonalizeUsesReloadedTuning(t *testing.T) {
	f := newActivityFixture(t)
	_, err := f.service.Record(context.Background(), "l-1", model.ProfileHints{}, ActivityInput{SkillID: "optics", Kind: model.ActivityScore, Score: 0.5})
	require.NoError(t, err)

	store := insight.NewTuningStore(insight.DefaultTuning())
	svc := NewPersonalizationService(f.resolver, failingCatalog{}, store, nil, nil)

	bundle, err := svc.Personalize(context.Background(), "l-1", model.ProfileHints{})
	require.NoError(t, err)
	assert.Len(t, bundle.Diagnostics.Gaps, 1)

	lower := insight.DefaultTuning()
	lower.GapThreshold = 0.4
	store.Store(lower)
	bundle, err = svc.Personalize(context.Background(), "l-1", model.ProfileHints{})
	require.NoError(t, err)
	assert.Empty(t, bundle.Diagnostics.Gaps)
}
