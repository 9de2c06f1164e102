package model

import (
	"time"
)

// ExperienceSession 记录学习者在某个体验(虚拟实验等)中的一次会话
type ExperienceSession struct {
	BaseModel
	LearnerID    string     `gorm:"type:varchar(64);index;not null" json:"learnerId"`
	ExperienceID string     `gorm:"type:varchar(64);index;not null" json:"experienceId"`
	StartTime    time.Time  `gorm:"index" json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Duration     int        `gorm:"default:0" json:"duration"` // minutes
	Score        *float64   `json:"score,omitempty"`
}

func (ExperienceSession) TableName() string {
	return "experience_sessions"
}

type Experience struct {
	ID   string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
	Kind string `gorm:"size:50" json:"kind"`
}

func (Experience) TableName() string {
	return "experiences"
}

type Class struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string `gorm:"size:255;not null" json:"name"`
	TeacherID string `gorm:"type:varchar(64);index" json:"teacherId"`
}

func (Class) TableName() string {
	return "classes"
}

type ClassEnrollment struct {
	BaseModel
	ClassID   string `gorm:"type:varchar(64);index:idx_class_learner,unique;not null" json:"classId"`
	LearnerID string `gorm:"type:varchar(64);index:idx_class_learner,unique;not null" json:"learnerId"`
}

func (ClassEnrollment) TableName() string {
	return "class_enrollments"
}
