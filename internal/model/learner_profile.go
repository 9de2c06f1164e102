package model

import (
	"time"
)

// LearnerProfile is the canonical per-learner record. Mastery and History are
// hydrated by the repository from skill_masteries and activity_events.
// swagger:model LearnerProfile
type LearnerProfile struct {
	LearnerID       string    `gorm:"primaryKey;type:varchar(64)" json:"learnerId"`
	DisplayName     string    `gorm:"size:100;not null" json:"displayName"`
	Role            UserRole  `gorm:"type:varchar(20);default:'student'" json:"role"`
	NamePlaceholder bool      `gorm:"default:false" json:"namePlaceholder"`
	RoleDefaulted   bool      `gorm:"default:false" json:"roleDefaulted"`
	LastSeq         uint64    `gorm:"default:0" json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Mastery map[string]float64 `gorm:"-" json:"mastery"`
	History []ActivityEvent    `gorm:"-" json:"history"`
	// HistoryTruncated is set when older events exist beyond History.
	HistoryTruncated bool `gorm:"-" json:"historyTruncated,omitempty"`

	// Transient is set when the profile could not be loaded from or written to
	// storage and was built in memory instead.
	Transient bool `gorm:"-" json:"transient,omitempty"`
}

func (LearnerProfile) TableName() string {
	return "learner_profiles"
}

// SkillMastery 记录学习者在单个技能上的滚动掌握度 (0.0 - 1.0)
type SkillMastery struct {
	BaseModel
	LearnerID string    `gorm:"type:varchar(64);index:idx_learner_skill,unique;not null" json:"learnerId"`
	SkillID   string    `gorm:"type:varchar(100);index:idx_learner_skill,unique;not null" json:"skillId"`
	Mastery   float64   `gorm:"default:0" json:"mastery"`
	Evidence  int       `gorm:"default:0" json:"evidence"`
	LastEvent time.Time `json:"lastEvent"`
}

func (SkillMastery) TableName() string {
	return "skill_masteries"
}

// ProfileHints is the raw, unvalidated enrichment supplied by the identity
// collaborator. See service.ParseHints for the accepted shapes.
type ProfileHints struct {
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role,omitempty"`
}

// PersonalizationBundle is the JSON output of the personalization pipeline.
type PersonalizationBundle struct {
	Profile         *LearnerProfile    `json:"profile"`
	Diagnostics     DiagnosticReport   `json:"diagnostics"`
	Recommendations RecommendationList `json:"recommendations"`
}
