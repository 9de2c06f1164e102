package repository

import (
	"context"
	"learner_insight/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

// ListPublished returns the candidate catalog in insertion order.
func (r *ContentRepository) ListPublished(ctx context.Context) ([]model.CandidateContentItem, error) {
	var items []model.CandidateContentItem
	err := r.DB.WithContext(ctx).
		Where("published = ?", true).
		Order("position ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

// Upsert creates or replaces catalog items by id.
func (r *ContentRepository) Upsert(ctx context.Context, items []model.CandidateContentItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&items).Error
}
