package model

import (
	"fmt"
	"time"
)

// Granularity is the width of a time bucket. Buckets are truncated in UTC.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity accepts the empty string as "day".
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case "":
		return GranularityDay, nil
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	}
	return "", fmt.Errorf("invalid granularity %q: must be hour, day, week, or month", s)
}

// Rank orders granularities from finest (0) to coarsest (3); unknown values rank -1.
func (g Granularity) Rank() int {
	switch g {
	case GranularityHour:
		return 0
	case GranularityDay:
		return 1
	case GranularityWeek:
		return 2
	case GranularityMonth:
		return 3
	}
	return -1
}

// Coarser returns the coarser of g and other.
func (g Granularity) Coarser(other Granularity) Granularity {
	if other.Rank() > g.Rank() {
		return other
	}
	return g
}

// Truncate returns the start of the bucket containing t. Weeks start on Monday (ISO week).
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Reducer says how values are combined when buckets merge.
type Reducer string

const (
	ReduceSum  Reducer = "sum"
	ReduceMean Reducer = "mean"
)

type MetricPoint struct {
	Bucket  time.Time `json:"bucket"`
	Value   float64   `json:"value"`
	Samples int       `json:"samples"`
}

// MetricSeries is ordered by bucket ascending with one point per bucket.
type MetricSeries struct {
	Granularity Granularity   `json:"granularity"`
	Reducer     Reducer       `json:"reducer"`
	Points      []MetricPoint `json:"points"`
}

// SummaryMetrics 仪表盘顶部的汇总指标
type SummaryMetrics struct {
	ActiveLearners int     `json:"activeLearners"`
	TotalEvents    int     `json:"totalEvents"`
	AverageScore   float64 `json:"averageScore"`
	SuccessRate    float64 `json:"successRate"`
}

type ClassAggregate struct {
	ClassID      string       `json:"classId"`
	Name         string       `json:"name"`
	Learners     int          `json:"learners"`
	AverageScore float64      `json:"averageScore"`
	SuccessRate  float64      `json:"successRate"`
	Trend        MetricSeries `json:"trend"`
}

type ExperienceAggregate struct {
	ExperienceID string       `json:"experienceId"`
	Name         string       `json:"name"`
	Sessions     int          `json:"sessions"`
	TotalMinutes int          `json:"totalMinutes"`
	AverageScore float64      `json:"averageScore"`
	Usage        MetricSeries `json:"usage"`
}

type AnalyticsSource string

const (
	SourceSummary     AnalyticsSource = "summary"
	SourceTimeline    AnalyticsSource = "timeline"
	SourceClasses     AnalyticsSource = "classes"
	SourceExperiences AnalyticsSource = "experiences"
	SourceActivity    AnalyticsSource = "activity"
)

// AnalyticsSources lists every source in snapshot order.
var AnalyticsSources = []AnalyticsSource{SourceSummary, SourceTimeline, SourceClasses, SourceExperiences, SourceActivity}

type SourceState string

const (
	SourceOK          SourceState = "ok"
	SourceUnavailable SourceState = "unavailable"
)

type SourceStatus struct {
	Source AnalyticsSource `json:"source"`
	Status SourceState     `json:"status"`
	Error  string          `json:"error,omitempty"`
}

// AnalyticsQuery scopes a snapshot. LearnerID and ClassID are optional filters.
type AnalyticsQuery struct {
	LearnerID   string      `json:"learnerId,omitempty"`
	ClassID     string      `json:"classId,omitempty"`
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Granularity Granularity `json:"granularity"`
}

// AnalyticsSnapshot is composed once per request and never mutated afterwards.
type AnalyticsSnapshot struct {
	Granularity Granularity           `json:"granularity"`
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Summary     SummaryMetrics        `json:"summary"`
	Timeline    MetricSeries          `json:"timeline"`
	Classes     []ClassAggregate      `json:"classes"`
	Experiences []ExperienceAggregate `json:"experiences"`
	Activity    MetricSeries          `json:"activity"`
	Sources     []SourceStatus        `json:"sources"`
}

// Degraded reports whether any source fell back to an empty slice.
func (s *AnalyticsSnapshot) Degraded() bool {
	for _, st := range s.Sources {
		if st.Status != SourceOK {
			return true
		}
	}
	return false
}

// Status returns the recorded status for one source.
func (s *AnalyticsSnapshot) Status(src AnalyticsSource) SourceStatus {
	for _, st := range s.Sources {
		if st.Source == src {
			return st
		}
	}
	return SourceStatus{Source: src, Status: SourceUnavailable}
}
