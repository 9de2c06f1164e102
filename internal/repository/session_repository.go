package repository

import (
	"context"
	"learner_insight/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.ExperienceSession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) FindByIDAndLearner(ctx context.Context, sessionID uint, learnerID string) (*model.ExperienceSession, error) {
	var session model.ExperienceSession
	err := r.DB.WithContext(ctx).Where("id = ? AND learner_id = ?", sessionID, learnerID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Update(ctx context.Context, session *model.ExperienceSession) error {
	return r.DB.WithContext(ctx).Save(session).Error
}

// ExperienceRepository manages the experience and class catalogs analytics
// reads names from.
type ExperienceRepository struct {
	DB *gorm.DB
}

func NewExperienceRepository(db *gorm.DB) *ExperienceRepository {
	return &ExperienceRepository{DB: db}
}

func (r *ExperienceRepository) FindExperience(ctx context.Context, id string) (*model.Experience, error) {
	var exp model.Experience
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&exp).Error; err != nil {
		return nil, err
	}
	return &exp, nil
}

func (r *ExperienceRepository) SaveExperience(ctx context.Context, exp *model.Experience) error {
	return r.DB.WithContext(ctx).Save(exp).Error
}

func (r *ExperienceRepository) SaveClass(ctx context.Context, class *model.Class) error {
	return r.DB.WithContext(ctx).Save(class).Error
}

func (r *ExperienceRepository) Enroll(ctx context.Context, classID, learnerID string) error {
	return r.DB.WithContext(ctx).
		Where(model.ClassEnrollment{ClassID: classID, LearnerID: learnerID}).
		FirstOrCreate(&model.ClassEnrollment{}).Error
}
