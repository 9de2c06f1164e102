package service

import (
	"context"
	"fmt"
	"learner_insight/internal/model"
	"learner_insight/internal/repository"
	"learner_insight/internal/util"
	"strings"
)

// CatalogService maintains the reference data the pipelines read: candidate
// content, experiences, classes and class rosters.
type CatalogService struct {
	Content     *repository.ContentRepository
	Experiences *repository.ExperienceRepository
}

func NewCatalogService(content *repository.ContentRepository, experiences *repository.ExperienceRepository) *CatalogService {
	return &CatalogService{Content: content, Experiences: experiences}
}

func (s *CatalogService) ListContent(ctx context.Context) ([]model.CandidateContentItem, error) {
	items, err := s.Content.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.CandidateContentItem{}
	}
	return items, nil
}

func (s *CatalogService) UpsertContent(ctx context.Context, items []model.CandidateContentItem) error {
	for i := range items {
		item := &items[i]
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return fmt.Errorf("%w: item %d has no id", util.ErrInvalidCatalog, i)
		}
		if item.Difficulty < 0 || item.Difficulty > 1 {
			return fmt.Errorf("%w: item %s difficulty %v outside [0,1]", util.ErrInvalidCatalog, item.ID, item.Difficulty)
		}
		if item.TargetSkills == nil {
			item.TargetSkills = []string{}
		}
		if item.Prerequisites == nil {
			item.Prerequisites = []string{}
		}
	}
	return s.Content.Upsert(ctx, items)
}

func (s *CatalogService) SaveExperience(ctx context.Context, exp *model.Experience) error {
	exp.ID = strings.TrimSpace(exp.ID)
	if exp.ID == "" || strings.TrimSpace(exp.Name) == "" {
		return fmt.Errorf("%w: experience id and name are required", util.ErrInvalidCatalog)
	}
	return s.Experiences.SaveExperience(ctx, exp)
}

func (s *CatalogService) SaveClass(ctx context.Context, class *model.Class) error {
	class.ID = strings.TrimSpace(class.ID)
	if class.ID == "" || strings.TrimSpace(class.Name) == "" {
		return fmt.Errorf("%w: class id and name are required", util.ErrInvalidCatalog)
	}
	return s.Experiences.SaveClass(ctx, class)
}

// Enroll adds learners to a class roster. Existing enrollments are kept.
func (s *CatalogService) Enroll(ctx context.Context, classID string, learnerIDs []string) error {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return fmt.Errorf("%w: class id is required", util.ErrInvalidCatalog)
	}
	for _, id := range learnerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := s.Experiences.Enroll(ctx, classID, id); err != nil {
			return fmt.Errorf("enroll %s in %s: %w", id, classID, err)
		}
	}
	return nil
}
