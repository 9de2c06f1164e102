package service

import (
	"context"
	"errors"
	"fmt"
	"learner_insight/internal/model"
	"learner_insight/internal/repository"
	"learner_insight/internal/util"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ExperienceService tracks learner sessions in virtual labs and other
// experiences. Ended sessions feed the experience usage analytics.
type ExperienceService struct {
	SessionRepo *repository.SessionRepository
	now         func() time.Time
}

func NewExperienceService(sessionRepo *repository.SessionRepository) *ExperienceService {
	return &ExperienceService{SessionRepo: sessionRepo, now: time.Now}
}

func (s *ExperienceService) StartSession(ctx context.Context, learnerID, experienceID string) (*model.ExperienceSession, error) {
	learnerID = strings.TrimSpace(learnerID)
	experienceID = strings.TrimSpace(experienceID)
	if learnerID == "" {
		return nil, util.ErrInvalidLearnerID
	}
	if experienceID == "" {
		return nil, fmt.Errorf("%w: experience id is required", util.ErrInvalidActivity)
	}

	session := &model.ExperienceSession{
		LearnerID:    learnerID,
		ExperienceID: experienceID,
		StartTime:    s.now().UTC(),
	}
	if err := s.SessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession closes a session. Ending an already closed session returns it unchanged.
func (s *ExperienceService) EndSession(ctx context.Context, learnerID string, sessionID uint, score *float64) (*model.ExperienceSession, error) {
	if score != nil && (*score < 0 || *score > 1) {
		return nil, fmt.Errorf("%w: score must be within [0,1]", util.ErrInvalidActivity)
	}
	session, err := s.SessionRepo.FindByIDAndLearner(ctx, sessionID, learnerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.EndTime != nil {
		return session, nil
	}

	endTime := s.now().UTC()
	session.EndTime = &endTime
	session.Duration = int(endTime.Sub(session.StartTime).Minutes())
	session.Score = score

	if err := s.SessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
