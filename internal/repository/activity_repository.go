package repository

import (
	"context"
	"errors"
	"fmt"
	"learner_insight/internal/model"
	"learner_insight/internal/util"
	"time"

	"gorm.io/gorm"
)

// MasteryUpdate folds one event outcome into a skill's running estimate.
// current is nil on the first observation of the skill.
type MasteryUpdate func(current *model.SkillMastery, outcome float64) float64

type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

// Append stores ev as the learner's next history entry and updates the skill
// mastery row in one transaction. ev.Seq is assigned here. Events older than
// the learner's latest event fail with util.ErrActivityOutOfOrder.
func (r *ActivityRepository) Append(ctx context.Context, ev *model.ActivityEvent, update MasteryUpdate) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile model.LearnerProfile
		err := tx.Where("learner_id = ?", ev.LearnerID).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &util.MissingDataError{What: "profile", ID: ev.LearnerID}
		}
		if err != nil {
			return err
		}

		var last model.ActivityEvent
		err = tx.Where("learner_id = ?", ev.LearnerID).Order("seq DESC").Limit(1).Find(&last).Error
		if err != nil {
			return err
		}
		if last.Seq > 0 && ev.OccurredAt.Before(last.OccurredAt) {
			return fmt.Errorf("%w: %s before %s", util.ErrActivityOutOfOrder,
				ev.OccurredAt.Format(time.RFC3339), last.OccurredAt.Format(time.RFC3339))
		}

		next := profile.LastSeq
		if last.Seq > next {
			next = last.Seq
		}
		ev.Seq = next + 1
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.LearnerProfile{}).
			Where("learner_id = ?", ev.LearnerID).
			Updates(map[string]interface{}{"last_seq": ev.Seq, "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}

		if ev.SkillID == "" {
			return nil
		}
		var mastery model.SkillMastery
		err = tx.Where("learner_id = ? AND skill_id = ?", ev.LearnerID, ev.SkillID).First(&mastery).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			mastery = model.SkillMastery{
				LearnerID: ev.LearnerID,
				SkillID:   ev.SkillID,
				Mastery:   update(nil, ev.Outcome()),
				Evidence:  1,
				LastEvent: ev.OccurredAt,
			}
			return tx.Create(&mastery).Error
		case err != nil:
			return err
		}
		mastery.Mastery = update(&mastery, ev.Outcome())
		mastery.Evidence++
		mastery.LastEvent = ev.OccurredAt
		return tx.Save(&mastery).Error
	})
}

// ListByLearner returns up to limit of the learner's most recent events, oldest first.
func (r *ActivityRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]model.ActivityEvent, error) {
	var events []model.ActivityEvent
	q := r.DB.WithContext(ctx).Where("learner_id = ?", learnerID).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
