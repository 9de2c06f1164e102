package model

import (
	"time"
)

type ActivityKind string

const (
	ActivityAttempt    ActivityKind = "attempt"
	ActivityCompletion ActivityKind = "completion"
	ActivityScore      ActivityKind = "score"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityAttempt, ActivityCompletion, ActivityScore:
		return true
	}
	return false
}

// ActivityEvent is one entry of a learner's append-only history.
// swagger:model ActivityEvent
type ActivityEvent struct {
	ID              uint         `gorm:"primaryKey;autoIncrement" json:"-"`
	LearnerID       string       `gorm:"type:varchar(64);index:idx_learner_seq,unique;not null" json:"learnerId"`
	Seq             uint64       `gorm:"index:idx_learner_seq,unique;not null" json:"seq"`
	SkillID         string       `gorm:"type:varchar(100);index" json:"skillId"`
	Kind            ActivityKind `gorm:"type:varchar(20);not null" json:"kind"`
	Success         bool         `gorm:"default:false" json:"success"`
	Score           float64      `gorm:"default:0" json:"score"`
	ContentID       string       `gorm:"type:varchar(64)" json:"contentId,omitempty"`
	ExperienceID    string       `gorm:"type:varchar(64);index" json:"experienceId,omitempty"`
	DurationSeconds int          `gorm:"default:0" json:"durationSeconds,omitempty"`
	OccurredAt      time.Time    `gorm:"index;not null" json:"occurredAt"`
	CreatedAt       time.Time    `json:"-"`
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}

// Outcome maps the event to a success value in [0,1].
func (e ActivityEvent) Outcome() float64 {
	switch e.Kind {
	case ActivityAttempt:
		if e.Success {
			return 1
		}
		return 0
	case ActivityScore:
		switch {
		case e.Score < 0:
			return 0
		case e.Score > 1:
			return 1
		}
		return e.Score
	case ActivityCompletion:
		return 1
	}
	return 0
}
