package repository

import (
	"context"
	"errors"
	"learner_insight/internal/model"
	"learner_insight/internal/testutil"
	"learner_insight/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityRepositoryAppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	profiles := NewProfileRepository(db, nil, 0, 0)
	repo := NewActivityRepository(db)
	_, err := profiles.CreateIfAbsent(ctx, newProfile("l-1"))
	require.NoError(t, err)

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	first := &model.ActivityEvent{LearnerID: "l-1", SkillID: "waves", Kind: model.ActivityScore, Score: 0.4, OccurredAt: at}
	second := &model.ActivityEvent{LearnerID: "l-1", Kind: model.ActivityCompletion, OccurredAt: at}
	require.NoError(t, repo.Append(ctx, first, emaUpdate))
	require.NoError(t, repo.Append(ctx, second, emaUpdate))

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)

	var mastery model.SkillMastery
	require.NoError(t, db.Where("learner_id = ? AND skill_id = ?", "l-1", "waves").First(&mastery).Error)
	assert.InDelta(t, 0.4, mastery.Mastery, 1e-9)
	assert.Equal(t, 1, mastery.Evidence)

	events, err := repo.ListByLearner(ctx, "l-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Seq)
}

func TestActivityRepositoryRejectsOutOfOrder(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	profiles := NewProfileRepository(db, nil, 0, 0)
	repo := NewActivityRepository(db)
	_, err := profiles.CreateIfAbsent(ctx, newProfile("l-1"))
	require.NoError(t, err)

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, &model.ActivityEvent{LearnerID: "l-1", SkillID: "a", Kind: model.ActivityAttempt, OccurredAt: at}, emaUpdate))

	err = repo.Append(ctx, &model.ActivityEvent{LearnerID: "l-1", SkillID: "a", Kind: model.ActivityAttempt, OccurredAt: at.Add(-time.Second)}, emaUpdate)
	assert.True(t, errors.Is(err, util.ErrActivityOutOfOrder))

	events, err := repo.ListByLearner(ctx, "l-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestActivityRepositoryUnknownLearner(t *testing.T) {
	repo := NewActivityRepository(testutil.NewDB(t))
	err := repo.Append(context.Background(), &model.ActivityEvent{LearnerID: "ghost", Kind: model.ActivityCompletion, OccurredAt: time.Now()}, emaUpdate)
	assert.True(t, util.IsMissingData(err))
}
