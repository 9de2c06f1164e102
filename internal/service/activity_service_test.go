package service

import (
	"context"
	"learner_insight/internal/insight"
	"learner_insight/internal/model"
	"learner_insight/internal/repository"
	"learner_insight/internal/testutil"
	"learner_insight/internal/util"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type activityFixture struct {
	db       *gorm.DB
	profiles *repository.ProfileRepository
	resolver *ProfileResolver
	service  *ActivityService
}

func newActivityFixture(t *testing.T) *activityFixture {
	db := testutil.NewDB(t)
	profiles := repository.NewProfileRepository(db, nil, 0, 0)
	resolver := NewProfileResolver(profiles, nil, nil)
	svc := NewActivityService(repository.NewActivityRepository(db), resolver, profiles, insight.NewTuningStore(insight.DefaultTuning()), nil)
	return &activityFixture{db: db, profiles: profiles, resolver: resolver, service: svc}
}

func TestRecordActivityUpdatesMastery(t *testing.T) {
	ctx := context.Background()
	f := newActivityFixture(t)
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	ev, err := f.service.Record(ctx, "l-1", model.ProfileHints{DisplayName: "Ada"}, ActivityInput{
		SkillID: "kinematics", Kind: model.ActivityAttempt, Success: false, OccurredAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.Seq)

	_, err = f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{
		SkillID: "kinematics", Kind: model.ActivityAttempt, Success: true, OccurredAt: at.Add(time.Minute),
	})
	require.NoError(t, err)

	p, err := f.profiles.Find(ctx, "l-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	require.Len(t, p.History, 2)
	assert.InDelta(t, 0.3, p.Mastery["kinematics"], 1e-9)
}

func TestRecordActivityValidation(t *testing.T) {
	ctx := context.Background()
	f := newActivityFixture(t)

	_, err := f.service.Record(ctx, "", model.ProfileHints{}, ActivityInput{Kind: model.ActivityCompletion})
	assert.ErrorIs(t, err, util.ErrInvalidLearnerID)

	_, err = f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{Kind: "watched"})
	assert.ErrorIs(t, err, util.ErrInvalidActivity)

	_, err = f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{Kind: model.ActivityScore, Score: 1.5})
	assert.ErrorIs(t, err, util.ErrInvalidActivity)
}

func TestRecordActivityRejectsOutOfOrder(t *testing.T) {
	ctx := context.Background()
	f := newActivityFixture(t)
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	_, err := f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{Kind: model.ActivityCompletion, OccurredAt: at})
	require.NoError(t, err)
	_, err = f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{Kind: model.ActivityCompletion, OccurredAt: at.Add(-time.Hour)})
	assert.ErrorIs(t, err, util.ErrActivityOutOfOrder)
}

func TestRecordActivityStampsServerTime(t *testing.T) {
	f := newActivityFixture(t)
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return stamp }

	ev, err := f.service.Record(context.Background(), "l-1", model.ProfileHints{}, ActivityInput{Kind: model.ActivityCompletion})
	require.NoError(t, err)
	assert.True(t, ev.OccurredAt.Equal(stamp))
}

func TestRecordActivityConcurrentSameLearner(t *testing.T) {
	ctx := context.Background()
	f := newActivityFixture(t)
	_, err := f.resolver.Resolve(ctx, "l-1", model.ProfileHints{})
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{SkillID: "optics", Kind: model.ActivityCompletion})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events, err := repository.NewActivityRepository(f.db).ListByLearner(ctx, "l-1", 0)
	require.NoError(t, err)
	require.Len(t, events, n)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Equal(t, 0, f.service.locks.size())
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	var k keyedMutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())
}

// lockAwareCache records how many learner locks were held at each invalidation.
type lockAwareCache struct {
	svc  *ActivityService
	held []int
}

func (c *lockAwareCache) Invalidate(_ context.Context, _ string) {
	c.held = append(c.held, c.svc.locks.size())
}

func TestRecordActivityInvalidatesWhileLocked(t *testing.T) {
	ctx := context.Background()
	f := newActivityFixture(t)
	cache := &lockAwareCache{svc: f.service}
	f.service.Cache = cache

	_, err := f.service.Record(ctx, "l-1", model.ProfileHints{}, ActivityInput{Kind: model.ActivityAttempt, Success: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, cache.held)
	assert.Equal(t, 0, f.service.locks.size())
}

func TestRecordActivityProfileUnavailable(t *testing.T) {
	db := testutil.NewDB(t)
	resolver := NewProfileResolver(brokenStore{}, nil, nil)
	svc := NewActivityService(repository.NewActivityRepository(db), resolver, nil, insight.NewTuningStore(insight.DefaultTuning()), nil)

	_, err := svc.Record(context.Background(), "l-1", model.ProfileHints{}, ActivityInput{Kind: model.ActivityCompletion})
	assert.ErrorIs(t, err, util.ErrProfileUnavailable)
}
