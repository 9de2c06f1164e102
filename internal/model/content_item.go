package model

import (
	"time"
)

type ContentKind string

const (
	ContentLab           ContentKind = "lab"
	ContentEvaluation    ContentKind = "evaluation"
	ContentCertification ContentKind = "certification"
	ContentLesson        ContentKind = "lesson"
)

// CandidateContentItem is owned by the content library; read-only here.
// swagger:model CandidateContentItem
type CandidateContentItem struct {
	ID            string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title         string      `gorm:"size:255;not null" json:"title"`
	Kind          ContentKind `gorm:"type:varchar(20)" json:"kind"`
	TargetSkills  []string    `gorm:"type:text;serializer:json" json:"targetSkills"`
	Difficulty    float64     `gorm:"default:0" json:"difficulty"` // 0.0 - 1.0
	Prerequisites []string    `gorm:"type:text;serializer:json" json:"prerequisites"`
	Position      int         `gorm:"index;default:0" json:"position"`
	Published     bool        `gorm:"default:true" json:"published"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (CandidateContentItem) TableName() string {
	return "content_items"
}
