package repository

import (
	"context"
	"learner_insight/internal/model"
	"learner_insight/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday

func seedAnalytics(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	experiences := NewExperienceRepository(db)
	require.NoError(t, experiences.SaveClass(ctx, &model.Class{ID: "c-2", Name: "Optics"}))
	require.NoError(t, experiences.SaveClass(ctx, &model.Class{ID: "c-1", Name: "Mechanics"}))
	require.NoError(t, experiences.Enroll(ctx, "c-1", "l-1"))
	require.NoError(t, experiences.Enroll(ctx, "c-1", "l-2"))
	require.NoError(t, experiences.Enroll(ctx, "c-2", "l-2"))
	require.NoError(t, experiences.SaveExperience(ctx, &model.Experience{ID: "vlab-b", Name: "Bench"}))

	events := []model.ActivityEvent{
		{LearnerID: "l-1", Seq: 1, SkillID: "k", Kind: model.ActivityAttempt, Success: true, OccurredAt: day0.Add(9 * time.Hour)},
		{LearnerID: "l-1", Seq: 2, SkillID: "k", Kind: model.ActivityAttempt, Success: false, OccurredAt: day0.Add(10 * time.Hour)},
		{LearnerID: "l-2", Seq: 1, SkillID: "o", Kind: model.ActivityScore, Score: 0.5, OccurredAt: day0.Add(33 * time.Hour)},
		// outside the window
		{LearnerID: "l-2", Seq: 2, SkillID: "o", Kind: model.ActivityScore, Score: 0.9, OccurredAt: day0.Add(30 * 24 * time.Hour)},
	}
	require.NoError(t, db.Create(&events).Error)

	score := 0.8
	sessions := []model.ExperienceSession{
		{LearnerID: "l-1", ExperienceID: "vlab-b", StartTime: day0.Add(9 * time.Hour), Duration: 20, Score: &score},
		{LearnerID: "l-2", ExperienceID: "vlab-b", StartTime: day0.Add(30 * time.Hour), Duration: 10},
		{LearnerID: "l-2", ExperienceID: "vlab-a", StartTime: day0.Add(31 * time.Hour), Duration: 5},
	}
	require.NoError(t, db.Create(&sessions).Error)
}

func windowQuery(g model.Granularity) model.AnalyticsQuery {
	return model.AnalyticsQuery{From: day0, To: day0.Add(7 * 24 * time.Hour), Granularity: g}
}

func TestAnalyticsRepositorySummary(t *testing.T) {
	db := testutil.NewDB(t)
	seedAnalytics(t, db)
	repo := NewAnalyticsRepository(db, model.GranularityWeek, model.GranularityDay)

	s, err := repo.Summary(context.Background(), windowQuery(model.GranularityDay))
	require.NoError(t, err)
	assert.Equal(t, 2, s.ActiveLearners)
	assert.Equal(t, 3, s.TotalEvents)
	assert.InDelta(t, 0.5, s.AverageScore, 1e-9)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)

	q := windowQuery(model.GranularityDay)
	q.LearnerID = "l-1"
	s, err = repo.Summary(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveLearners)
	assert.Equal(t, 2, s.TotalEvents)
	assert.Equal(t, 0.0, s.AverageScore)
}

func TestAnalyticsRepositoryTimelineAndActivity(t *testing.T) {
	db := testutil.NewDB(t)
	seedAnalytics(t, db)
	repo := NewAnalyticsRepository(db, model.GranularityWeek, model.GranularityDay)
	ctx := context.Background()

	timeline, err := repo.Timeline(ctx, windowQuery(model.GranularityDay))
	require.NoError(t, err)
	assert.Equal(t, model.GranularityDay, timeline.Granularity)
	assert.Equal(t, model.ReduceMean, timeline.Reducer)
	require.Len(t, timeline.Points, 2)
	assert.True(t, timeline.Points[0].Bucket.Equal(day0))
	assert.InDelta(t, 0.5, timeline.Points[0].Value, 1e-9)
	assert.Equal(t, 2, timeline.Points[0].Samples)

	activity, err := repo.Activity(ctx, windowQuery(model.GranularityWeek))
	require.NoError(t, err)
	require.Len(t, activity.Points, 1)
	assert.Equal(t, 3.0, activity.Points[0].Value)
}

func TestAnalyticsRepositoryClassPerformance(t *testing.T) {
	db := testutil.NewDB(t)
	seedAnalytics(t, db)
	repo := NewAnalyticsRepository(db, model.GranularityWeek, model.GranularityDay)

	classes, err := repo.ClassPerformance(context.Background(), windowQuery(model.GranularityDay))
	require.NoError(t, err)
	require.Len(t, classes, 2)

	assert.Equal(t, "c-1", classes[0].ClassID)
	assert.Equal(t, 2, classes[0].Learners)
	assert.InDelta(t, 0.5, classes[0].SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, classes[0].AverageScore, 1e-9)
	// trend never finer than the class floor
	assert.Equal(t, model.GranularityWeek, classes[0].Trend.Granularity)

	assert.Equal(t, "c-2", classes[1].ClassID)
	assert.Equal(t, 1, classes[1].Learners)
	assert.Equal(t, 0.0, classes[1].SuccessRate)
}

func TestAnalyticsRepositoryClassScope(t *testing.T) {
	db := testutil.NewDB(t)
	seedAnalytics(t, db)
	repo := NewAnalyticsRepository(db, model.GranularityWeek, model.GranularityDay)

	q := windowQuery(model.GranularityDay)
	q.ClassID = "c-2"
	s, err := repo.Summary(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveLearners)
	assert.Equal(t, 1, s.TotalEvents)

	classes, err := repo.ClassPerformance(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "Optics", classes[0].Name)
}

func TestAnalyticsRepositoryExperienceUsage(t *testing.T) {
	db := testutil.NewDB(t)
	seedAnalytics(t, db)
	repo := NewAnalyticsRepository(db, model.GranularityWeek, model.GranularityDay)

	exps, err := repo.ExperienceUsage(context.Background(), windowQuery(model.GranularityHour))
	require.NoError(t, err)
	require.Len(t, exps, 2)

	assert.Equal(t, "vlab-a", exps[0].ExperienceID)
	assert.Equal(t, "vlab-a", exps[0].Name)
	assert.Equal(t, "vlab-b", exps[1].ExperienceID)
	assert.Equal(t, "Bench", exps[1].Name)
	assert.Equal(t, 2, exps[1].Sessions)
	assert.Equal(t, 30, exps[1].TotalMinutes)
	assert.InDelta(t, 0.8, exps[1].AverageScore, 1e-9)
	assert.Equal(t, model.GranularityDay, exps[1].Usage.Granularity)
	require.Len(t, exps[1].Usage.Points, 2)
}
