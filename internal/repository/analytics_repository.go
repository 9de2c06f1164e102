package repository

import (
	"context"
	"learner_insight/internal/insight"
	"learner_insight/internal/model"
	"sort"
	"time"

	"gorm.io/gorm"
)

// AnalyticsRepository serves the five analytics signals straight from the
// database. Bucketing happens in Go so the same code runs on MySQL and SQLite.
type AnalyticsRepository struct {
	DB *gorm.DB
	// ClassTrendGranularity and ExperienceGranularity are the finest buckets
	// those signals are reported in.
	ClassTrendGranularity model.Granularity
	ExperienceGranularity model.Granularity
}

func NewAnalyticsRepository(db *gorm.DB, classTrend, experience model.Granularity) *AnalyticsRepository {
	return &AnalyticsRepository{
		DB:                    db,
		ClassTrendGranularity: classTrend,
		ExperienceGranularity: experience,
	}
}

type eventRow struct {
	ClassID    string
	LearnerID  string
	Kind       model.ActivityKind
	Success    bool
	Score      float64
	OccurredAt time.Time
}

func (e eventRow) outcome() float64 {
	return model.ActivityEvent{Kind: e.Kind, Success: e.Success, Score: e.Score}.Outcome()
}

// scopedEvents filters activity_events by the query's window and scope.
func (r *AnalyticsRepository) scopedEvents(ctx context.Context, q model.AnalyticsQuery) *gorm.DB {
	db := r.DB.WithContext(ctx).Model(&model.ActivityEvent{}).
		Where("activity_events.occurred_at >= ? AND activity_events.occurred_at < ?", q.From.UTC(), q.To.UTC())
	if q.LearnerID != "" {
		db = db.Where("activity_events.learner_id = ?", q.LearnerID)
	}
	if q.ClassID != "" {
		enrolled := r.DB.WithContext(ctx).Model(&model.ClassEnrollment{}).
			Select("learner_id").
			Where("class_id = ?", q.ClassID)
		db = db.Where("activity_events.learner_id IN (?)", enrolled)
	}
	return db
}

func (r *AnalyticsRepository) Summary(ctx context.Context, q model.AnalyticsQuery) (model.SummaryMetrics, error) {
	var summary model.SummaryMetrics

	var counts struct {
		ActiveLearners int64
		TotalEvents    int64
	}
	if err := r.scopedEvents(ctx, q).
		Select("COUNT(DISTINCT activity_events.learner_id) AS active_learners, COUNT(*) AS total_events").
		Scan(&counts).Error; err != nil {
		return summary, err
	}
	summary.ActiveLearners = int(counts.ActiveLearners)
	summary.TotalEvents = int(counts.TotalEvents)

	var avg struct{ Value *float64 }
	if err := r.scopedEvents(ctx, q).
		Select("AVG(activity_events.score) AS value").
		Where("activity_events.kind = ?", model.ActivityScore).
		Scan(&avg).Error; err != nil {
		return summary, err
	}
	if avg.Value != nil {
		summary.AverageScore = *avg.Value
	}

	var rate struct{ Value *float64 }
	if err := r.scopedEvents(ctx, q).
		Select("AVG(CASE WHEN activity_events.success THEN 1.0 ELSE 0.0 END) AS value").
		Where("activity_events.kind = ?", model.ActivityAttempt).
		Scan(&rate).Error; err != nil {
		return summary, err
	}
	if rate.Value != nil {
		summary.SuccessRate = *rate.Value
	}
	return summary, nil
}

func (r *AnalyticsRepository) loadEvents(ctx context.Context, q model.AnalyticsQuery) ([]eventRow, error) {
	var rows []eventRow
	err := r.scopedEvents(ctx, q).
		Select("activity_events.learner_id, activity_events.kind, activity_events.success, activity_events.score, activity_events.occurred_at").
		Order("activity_events.occurred_at ASC").
		Scan(&rows).Error
	return rows, err
}

// Timeline is the mean outcome per bucket.
func (r *AnalyticsRepository) Timeline(ctx context.Context, q model.AnalyticsQuery) (model.MetricSeries, error) {
	rows, err := r.loadEvents(ctx, q)
	if err != nil {
		return model.MetricSeries{}, err
	}
	samples := make([]model.MetricPoint, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, model.MetricPoint{Bucket: row.OccurredAt, Value: row.outcome(), Samples: 1})
	}
	return insight.Accumulate(q.Granularity, model.ReduceMean, samples), nil
}

// Activity is the event count per bucket.
func (r *AnalyticsRepository) Activity(ctx context.Context, q model.AnalyticsQuery) (model.MetricSeries, error) {
	rows, err := r.loadEvents(ctx, q)
	if err != nil {
		return model.MetricSeries{}, err
	}
	samples := make([]model.MetricPoint, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, model.MetricPoint{Bucket: row.OccurredAt, Value: 1, Samples: 1})
	}
	return insight.Accumulate(q.Granularity, model.ReduceSum, samples), nil
}

type classTally struct {
	scoreSum, scoreN     float64
	successSum, attemptN float64
	trend                []model.MetricPoint
}

func (r *AnalyticsRepository) ClassPerformance(ctx context.Context, q model.AnalyticsQuery) ([]model.ClassAggregate, error) {
	var classes []model.Class
	db := r.DB.WithContext(ctx).Order("id ASC")
	if q.ClassID != "" {
		db = db.Where("id = ?", q.ClassID)
	}
	if err := db.Find(&classes).Error; err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return []model.ClassAggregate{}, nil
	}
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}

	var sizes []struct {
		ClassID  string
		Learners int64
	}
	if err := r.DB.WithContext(ctx).Model(&model.ClassEnrollment{}).
		Select("class_id, COUNT(*) AS learners").
		Where("class_id IN ?", ids).
		Group("class_id").
		Scan(&sizes).Error; err != nil {
		return nil, err
	}
	learners := make(map[string]int, len(sizes))
	for _, s := range sizes {
		learners[s.ClassID] = int(s.Learners)
	}

	var rows []eventRow
	ev := r.DB.WithContext(ctx).Model(&model.ActivityEvent{}).
		Select("class_enrollments.class_id, activity_events.learner_id, activity_events.kind, activity_events.success, activity_events.score, activity_events.occurred_at").
		Joins("JOIN class_enrollments ON class_enrollments.learner_id = activity_events.learner_id AND class_enrollments.deleted_at IS NULL").
		Where("class_enrollments.class_id IN ?", ids).
		Where("activity_events.occurred_at >= ? AND activity_events.occurred_at < ?", q.From.UTC(), q.To.UTC())
	if q.LearnerID != "" {
		ev = ev.Where("activity_events.learner_id = ?", q.LearnerID)
	}
	if err := ev.Scan(&rows).Error; err != nil {
		return nil, err
	}

	tallies := make(map[string]*classTally, len(classes))
	for _, row := range rows {
		t, ok := tallies[row.ClassID]
		if !ok {
			t = &classTally{}
			tallies[row.ClassID] = t
		}
		switch row.Kind {
		case model.ActivityScore:
			t.scoreSum += row.Score
			t.scoreN++
		case model.ActivityAttempt:
			if row.Success {
				t.successSum++
			}
			t.attemptN++
		}
		t.trend = append(t.trend, model.MetricPoint{Bucket: row.OccurredAt, Value: row.outcome(), Samples: 1})
	}

	g := q.Granularity.Coarser(r.ClassTrendGranularity)
	out := make([]model.ClassAggregate, 0, len(classes))
	for _, c := range classes {
		agg := model.ClassAggregate{ClassID: c.ID, Name: c.Name, Learners: learners[c.ID]}
		t := tallies[c.ID]
		if t == nil {
			t = &classTally{}
		}
		if t.scoreN > 0 {
			agg.AverageScore = t.scoreSum / t.scoreN
		}
		if t.attemptN > 0 {
			agg.SuccessRate = t.successSum / t.attemptN
		}
		agg.Trend = insight.Accumulate(g, model.ReduceMean, t.trend)
		out = append(out, agg)
	}
	return out, nil
}

func (r *AnalyticsRepository) ExperienceUsage(ctx context.Context, q model.AnalyticsQuery) ([]model.ExperienceAggregate, error) {
	db := r.DB.WithContext(ctx).Model(&model.ExperienceSession{}).
		Where("start_time >= ? AND start_time < ?", q.From.UTC(), q.To.UTC())
	if q.LearnerID != "" {
		db = db.Where("learner_id = ?", q.LearnerID)
	}
	if q.ClassID != "" {
		enrolled := r.DB.WithContext(ctx).Model(&model.ClassEnrollment{}).
			Select("learner_id").
			Where("class_id = ?", q.ClassID)
		db = db.Where("learner_id IN (?)", enrolled)
	}
	var sessions []model.ExperienceSession
	if err := db.Order("start_time ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []model.ExperienceAggregate{}, nil
	}

	byID := make(map[string][]model.ExperienceSession)
	for _, s := range sessions {
		byID[s.ExperienceID] = append(byID[s.ExperienceID], s)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var experiences []model.Experience
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&experiences).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(experiences))
	for _, e := range experiences {
		names[e.ID] = e.Name
	}

	g := q.Granularity.Coarser(r.ExperienceGranularity)
	out := make([]model.ExperienceAggregate, 0, len(ids))
	for _, id := range ids {
		agg := model.ExperienceAggregate{ExperienceID: id, Name: names[id]}
		if agg.Name == "" {
			agg.Name = id
		}
		var scoreSum float64
		var scored int
		usage := make([]model.MetricPoint, 0, len(byID[id]))
		for _, s := range byID[id] {
			agg.Sessions++
			agg.TotalMinutes += s.Duration
			if s.Score != nil {
				scoreSum += *s.Score
				scored++
			}
			usage = append(usage, model.MetricPoint{Bucket: s.StartTime, Value: float64(s.Duration), Samples: 1})
		}
		if scored > 0 {
			agg.AverageScore = scoreSum / float64(scored)
		}
		agg.Usage = insight.Accumulate(g, model.ReduceSum, usage)
		out = append(out, agg)
	}
	return out, nil
}
