package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"learner_insight/internal/model"
	"learner_insight/internal/util"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const profileCacheKeyPrefix = "insight:profile:"

// ProfileRepository loads learner profiles with their mastery map and history.
// Redis is optional; when set, hydrated profiles are cached for CacheTTL.
type ProfileRepository struct {
	DB           *gorm.DB
	Redis        *redis.Client
	CacheTTL     time.Duration
	HistoryLimit int
}

func NewProfileRepository(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration, historyLimit int) *ProfileRepository {
	return &ProfileRepository{
		DB:           db,
		Redis:        rdb,
		CacheTTL:     cacheTTL,
		HistoryLimit: historyLimit,
	}
}

// Find returns the hydrated profile, or a *util.MissingDataError when the
// learner has no stored profile.
func (r *ProfileRepository) Find(ctx context.Context, learnerID string) (*model.LearnerProfile, error) {
	if p, ok := r.cached(ctx, learnerID); ok && r.current(ctx, p) {
		return p, nil
	}

	var profile model.LearnerProfile
	err := r.DB.WithContext(ctx).Where("learner_id = ?", learnerID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &util.MissingDataError{What: "profile", ID: learnerID}
	}
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, &profile); err != nil {
		return nil, err
	}

	r.store(ctx, &profile)
	return &profile, nil
}

// CreateIfAbsent inserts the profile unless one already exists for the id.
// It reports whether this call created the row.
func (r *ProfileRepository) CreateIfAbsent(ctx context.Context, p *model.LearnerProfile) (bool, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateIdentity writes display name and role fields, then drops the cache entry.
func (r *ProfileRepository) UpdateIdentity(ctx context.Context, p *model.LearnerProfile) error {
	err := r.DB.WithContext(ctx).Model(&model.LearnerProfile{}).
		Where("learner_id = ?", p.LearnerID).
		Updates(map[string]interface{}{
			"display_name":     p.DisplayName,
			"name_placeholder": p.NamePlaceholder,
			"role":             p.Role,
			"role_defaulted":   p.RoleDefaulted,
			"updated_at":       time.Now().UTC(),
		}).Error
	r.Invalidate(ctx, p.LearnerID)
	return err
}

// Invalidate drops the cached copy of a profile.
func (r *ProfileRepository) Invalidate(ctx context.Context, learnerID string) {
	if r.Redis == nil {
		return
	}
	r.Redis.Del(ctx, profileCacheKeyPrefix+learnerID)
}

// current reports whether a cached profile still matches its row. A Find that
// raced a write can store a copy older than the write's invalidation, so a
// cache hit is only trusted while last_seq and updated_at are unchanged.
func (r *ProfileRepository) current(ctx context.Context, p *model.LearnerProfile) bool {
	var row struct {
		LastSeq   uint64
		UpdatedAt time.Time
	}
	err := r.DB.WithContext(ctx).Model(&model.LearnerProfile{}).
		Select("last_seq, updated_at").
		Where("learner_id = ?", p.LearnerID).
		Take(&row).Error
	if err != nil {
		return false
	}
	return row.LastSeq == p.LastSeq && row.UpdatedAt.Equal(p.UpdatedAt)
}

func (r *ProfileRepository) hydrate(ctx context.Context, p *model.LearnerProfile) error {
	var masteries []model.SkillMastery
	if err := r.DB.WithContext(ctx).Where("learner_id = ?", p.LearnerID).Find(&masteries).Error; err != nil {
		return fmt.Errorf("load mastery: %w", err)
	}
	p.Mastery = make(map[string]float64, len(masteries))
	for _, m := range masteries {
		p.Mastery[m.SkillID] = m.Mastery
	}

	// newest N, then flipped back to time order
	q := r.DB.WithContext(ctx).Where("learner_id = ?", p.LearnerID).Order("seq DESC")
	if r.HistoryLimit > 0 {
		q = q.Limit(r.HistoryLimit)
	}
	var history []model.ActivityEvent
	if err := q.Find(&history).Error; err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	p.History = history
	// seqs are contiguous from 1, so a window not starting at 1 lost older events
	p.HistoryTruncated = len(history) > 0 && history[0].Seq > 1
	return nil
}

func (r *ProfileRepository) cached(ctx context.Context, learnerID string) (*model.LearnerProfile, bool) {
	if r.Redis == nil {
		return nil, false
	}
	val, err := r.Redis.Get(ctx, profileCacheKeyPrefix+learnerID).Result()
	if err != nil {
		return nil, false
	}
	var entry profileCacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, false
	}
	p := entry.profile()
	return p, p != nil
}

func (r *ProfileRepository) store(ctx context.Context, p *model.LearnerProfile) {
	if r.Redis == nil || r.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(newProfileCacheEntry(p))
	if err != nil {
		return
	}
	r.Redis.Set(ctx, profileCacheKeyPrefix+p.LearnerID, data, r.CacheTTL)
}

// profileCacheEntry carries the fields the JSON view of a profile hides.
type profileCacheEntry struct {
	Profile *model.LearnerProfile `json:"profile"`
	LastSeq uint64                `json:"lastSeq"`
}

func newProfileCacheEntry(p *model.LearnerProfile) profileCacheEntry {
	return profileCacheEntry{Profile: p, LastSeq: p.LastSeq}
}

func (e profileCacheEntry) profile() *model.LearnerProfile {
	if e.Profile == nil {
		return nil
	}
	e.Profile.LastSeq = e.LastSeq
	return e.Profile
}
