package service

import (
	"context"
	"fmt"
	"learner_insight/internal/insight"
	"learner_insight/internal/model"
	"learner_insight/internal/repository"
	"learner_insight/internal/util"
	"strings"
	"time"

	"go.uber.org/zap"
)

type ActivityStore interface {
	Append(ctx context.Context, ev *model.ActivityEvent, update repository.MasteryUpdate) error
}

type profileInvalidator interface {
	Invalidate(ctx context.Context, learnerID string)
}

// ActivityInput is an activity report as received from a client.
type ActivityInput struct {
	SkillID         string             `json:"skillId"`
	Kind            model.ActivityKind `json:"kind" binding:"required"`
	Success         bool               `json:"success"`
	Score           float64            `json:"score"`
	ContentID       string             `json:"contentId"`
	ExperienceID    string             `json:"experienceId"`
	DurationSeconds int                `json:"durationSeconds"`
	OccurredAt      time.Time          `json:"occurredAt"`
}

// ActivityService appends history events and keeps running mastery current.
// Writes for one learner are serialized.
type ActivityService struct {
	Store    ActivityStore
	Resolver *ProfileResolver
	Cache    profileInvalidator
	Tuning   *insight.TuningStore
	Log      *zap.Logger

	locks keyedMutex
	now   func() time.Time
}

func NewActivityService(store ActivityStore, resolver *ProfileResolver, cache profileInvalidator, tuning *insight.TuningStore, log *zap.Logger) *ActivityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityService{
		Store:    store,
		Resolver: resolver,
		Cache:    cache,
		Tuning:   tuning,
		Log:      log,
		now:      time.Now,
	}
}

func validateActivity(in ActivityInput) error {
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", util.ErrInvalidActivity, in.Kind)
	}
	if in.Kind == model.ActivityScore && (in.Score < 0 || in.Score > 1) {
		return fmt.Errorf("%w: score must be within [0,1]", util.ErrInvalidActivity)
	}
	if in.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration", util.ErrInvalidActivity)
	}
	return nil
}

// Record appends one event to the learner's history. A learner seen for the
// first time gets a profile built from hints.
func (s *ActivityService) Record(ctx context.Context, learnerID string, hints model.ProfileHints, in ActivityInput) (*model.ActivityEvent, error) {
	id := strings.TrimSpace(learnerID)
	if id == "" {
		return nil, util.ErrInvalidLearnerID
	}
	if err := validateActivity(in); err != nil {
		return nil, err
	}

	profile, err := s.Resolver.Resolve(ctx, id, hints)
	if err != nil {
		return nil, err
	}
	if profile.Transient {
		return nil, util.ErrProfileUnavailable
	}

	ev := &model.ActivityEvent{
		LearnerID:       id,
		SkillID:         strings.TrimSpace(in.SkillID),
		Kind:            in.Kind,
		Success:         in.Success,
		Score:           in.Score,
		ContentID:       strings.TrimSpace(in.ContentID),
		ExperienceID:    strings.TrimSpace(in.ExperienceID),
		DurationSeconds: in.DurationSeconds,
		OccurredAt:      in.OccurredAt.UTC(),
	}

	decay := s.Tuning.Load().DecayFactor
	update := func(current *model.SkillMastery, outcome float64) float64 {
		if current == nil {
			return insight.RunningMastery(0, outcome, decay, true)
		}
		return insight.RunningMastery(current.Mastery, outcome, decay, false)
	}

	unlock := s.locks.Lock(id)
	// stamped under the lock so server times stay ordered
	if in.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	err = s.Store.Append(ctx, ev, update)
	if err == nil && s.Cache != nil {
		s.Cache.Invalidate(ctx, id)
	}
	unlock()
	if err != nil {
		return nil, err
	}

	s.Log.Debug("Activity recorded",
		zap.String("learner_id", id),
		zap.Uint64("seq", ev.Seq),
		zap.String("skill_id", ev.SkillID),
	)
	return ev, nil
}
