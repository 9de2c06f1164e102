package service

import (
	"context"
	"errors"
	"fmt"
	"learner_insight/internal/insight"
	"learner_insight/internal/model"
	"learner_insight/internal/util"
	"learner_insight/pkg/tracing"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SummarySource interface {
	Summary(ctx context.Context, q model.AnalyticsQuery) (model.SummaryMetrics, error)
}

type TimelineSource interface {
	Timeline(ctx context.Context, q model.AnalyticsQuery) (model.MetricSeries, error)
}

type ClassPerformanceSource interface {
	ClassPerformance(ctx context.Context, q model.AnalyticsQuery) ([]model.ClassAggregate, error)
}

type ExperienceUsageSource interface {
	ExperienceUsage(ctx context.Context, q model.AnalyticsQuery) ([]model.ExperienceAggregate, error)
}

type ActivitySource interface {
	Activity(ctx context.Context, q model.AnalyticsQuery) (model.MetricSeries, error)
}

// AnalyticsSources groups the five collaborators a snapshot is built from.
type AnalyticsSources struct {
	Summary     SummarySource
	Timeline    TimelineSource
	Classes     ClassPerformanceSource
	Experiences ExperienceUsageSource
	Activity    ActivitySource
}

type AggregatorOptions struct {
	SourceTimeout    time.Duration
	FailureThreshold uint32
	BreakerOpenFor   time.Duration
	MaxRange         time.Duration
	// SourceFloors are the finest granularities some source reports in. The
	// coarsest of them and the requested granularity is picked before the
	// fan-out so every source buckets raw data the same way.
	SourceFloors []model.Granularity
}

// AggregatorMetrics are optional; nil vectors are skipped.
type AggregatorMetrics struct {
	Failures *prometheus.CounterVec   // labels: source, reason
	Duration *prometheus.HistogramVec // labels: source
}

// AnalyticsAggregator fans out to the five sources and composes a snapshot.
// A failing source degrades its own slice and never the whole snapshot.
type AnalyticsAggregator struct {
	sources  AnalyticsSources
	opts     AggregatorOptions
	breakers map[model.AnalyticsSource]*gobreaker.CircuitBreaker[any]
	metrics  AggregatorMetrics
	guard    *insight.Guard
	log      *zap.Logger
	now      func() time.Time
}

func NewAnalyticsAggregator(sources AnalyticsSources, opts AggregatorOptions, metrics AggregatorMetrics, guard *insight.Guard, log *zap.Logger) *AnalyticsAggregator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 2 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.BreakerOpenFor <= 0 {
		opts.BreakerOpenFor = 30 * time.Second
	}

	a := &AnalyticsAggregator{
		sources:  sources,
		opts:     opts,
		breakers: make(map[model.AnalyticsSource]*gobreaker.CircuitBreaker[any], len(model.AnalyticsSources)),
		metrics:  metrics,
		guard:    guard,
		log:      log,
		now:      time.Now,
	}
	for _, src := range model.AnalyticsSources {
		a.breakers[src] = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "analytics:" + string(src),
			MaxRequests: 1,
			Timeout:     opts.BreakerOpenFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.FailureThreshold
			},
			// the caller going away says nothing about the source's health
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Info("Analytics breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return a
}

// Validate checks the time window of a query and fills the default granularity.
func (a *AnalyticsAggregator) Validate(q *model.AnalyticsQuery) error {
	if q.Granularity == "" {
		q.Granularity = model.GranularityDay
	}
	if q.Granularity.Rank() < 0 {
		return fmt.Errorf("%w: %q", util.ErrInvalidGranularity, q.Granularity)
	}
	if !q.From.Before(q.To) {
		return fmt.Errorf("%w: from must be before to", util.ErrInvalidTimeRange)
	}
	if a.opts.MaxRange > 0 && q.To.Sub(q.From) > a.opts.MaxRange {
		return fmt.Errorf("%w: window exceeds %s", util.ErrInvalidTimeRange, a.opts.MaxRange)
	}
	return nil
}

// targetGranularity is the granularity every source is asked for.
func (a *AnalyticsAggregator) targetGranularity(requested model.Granularity) model.Granularity {
	g := requested
	for _, floor := range a.opts.SourceFloors {
		g = g.Coarser(floor)
	}
	return g
}

// partial holds what each task wrote. Every field has exactly one writer.
type partial struct {
	summary     model.SummaryMetrics
	timeline    model.MetricSeries
	classes     []model.ClassAggregate
	experiences []model.ExperienceAggregate
	activity    model.MetricSeries
	status      [5]model.SourceStatus
}

// Aggregate builds one snapshot. If ctx ends before every source reports,
// the partial result is dropped and ctx.Err() is returned.
func (a *AnalyticsAggregator) Aggregate(ctx context.Context, q model.AnalyticsQuery) (*model.AnalyticsSnapshot, error) {
	if err := a.Validate(&q); err != nil {
		return nil, err
	}
	q.Granularity = a.targetGranularity(q.Granularity)
	ctx, span := tracing.Tracer.Start(ctx, "analytics.aggregate")
	defer span.End()

	var p partial
	g := new(errgroup.Group)
	g.SetLimit(len(model.AnalyticsSources))

	a.spawn(ctx, g, 0, model.SourceSummary, &p, func(ctx context.Context) (any, error) {
		return a.sources.Summary.Summary(ctx, q)
	}, func(v any) { p.summary = v.(model.SummaryMetrics) })
	a.spawn(ctx, g, 1, model.SourceTimeline, &p, func(ctx context.Context) (any, error) {
		return a.sources.Timeline.Timeline(ctx, q)
	}, func(v any) { p.timeline = v.(model.MetricSeries) })
	a.spawn(ctx, g, 2, model.SourceClasses, &p, func(ctx context.Context) (any, error) {
		return a.sources.Classes.ClassPerformance(ctx, q)
	}, func(v any) { p.classes = v.([]model.ClassAggregate) })
	a.spawn(ctx, g, 3, model.SourceExperiences, &p, func(ctx context.Context) (any, error) {
		return a.sources.Experiences.ExperienceUsage(ctx, q)
	}, func(v any) { p.experiences = v.([]model.ExperienceAggregate) })
	a.spawn(ctx, g, 4, model.SourceActivity, &p, func(ctx context.Context) (any, error) {
		return a.sources.Activity.Activity(ctx, q)
	}, func(v any) { p.activity = v.(model.MetricSeries) })

	_ = g.Wait() // tasks record their own failures and always return nil

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}
	snap := a.compose(q, &p)
	span.SetAttributes(
		attribute.String("analytics.granularity", string(snap.Granularity)),
		attribute.Bool("analytics.degraded", snap.Degraded()),
	)
	return snap, nil
}

func (a *AnalyticsAggregator) spawn(
	ctx context.Context,
	g *errgroup.Group,
	slot int,
	src model.AnalyticsSource,
	p *partial,
	call func(context.Context) (any, error),
	keep func(any),
) {
	g.Go(func() error {
		v, err := a.fetch(ctx, src, call)
		if err != nil {
			p.status[slot] = model.SourceStatus{Source: src, Status: model.SourceUnavailable, Error: err.Error()}
			return nil
		}
		keep(v)
		p.status[slot] = model.SourceStatus{Source: src, Status: model.SourceOK}
		return nil
	})
}

// fetch runs one source call under its own timeout, breaker and span. The
// call is abandoned, not waited on, once the timeout passes.
func (a *AnalyticsAggregator) fetch(ctx context.Context, src model.AnalyticsSource, call func(context.Context) (any, error)) (any, error) {
	ctx, span := tracing.Tracer.Start(ctx, "analytics.source."+string(src))
	defer span.End()

	tctx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
	defer cancel()

	start := time.Now()
	v, err := a.breakers[src].Execute(func() (any, error) {
		type result struct {
			v   any
			err error
		}
		done := make(chan result, 1)
		go func() {
			var r result
			defer func() {
				if rec := recover(); rec != nil {
					r.err = fmt.Errorf("source panicked: %v", rec)
				}
				done <- r
			}()
			r.v, r.err = call(tctx)
		}()
		select {
		case r := <-done:
			return r.v, r.err
		case <-tctx.Done():
			return nil, tctx.Err()
		}
	})
	if a.metrics.Duration != nil {
		a.metrics.Duration.WithLabelValues(string(src)).Observe(time.Since(start).Seconds())
	}
	if err == nil {
		return v, nil
	}

	reason := "error"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		reason = "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, context.Canceled):
		reason = "cancelled"
	}
	if a.metrics.Failures != nil {
		a.metrics.Failures.WithLabelValues(string(src), reason).Inc()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	a.log.Warn("Analytics source unavailable",
		zap.String("source", string(src)),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return nil, &util.SourceUnavailableError{Source: src, Err: err}
}

// compose aligns every series to one granularity and fixes the output order.
func (a *AnalyticsAggregator) compose(q model.AnalyticsQuery, p *partial) *model.AnalyticsSnapshot {
	series := []model.MetricSeries{p.timeline, p.activity}
	for _, c := range p.classes {
		series = append(series, c.Trend)
	}
	for _, e := range p.experiences {
		series = append(series, e.Usage)
	}
	target := insight.CoarsestGranularity(q.Granularity, series...)

	snap := &model.AnalyticsSnapshot{
		Granularity: target,
		From:        q.From.UTC(),
		To:          q.To.UTC(),
		GeneratedAt: a.now().UTC(),
		Summary:     p.summary,
		Timeline:    a.align(p.timeline, target, model.ReduceMean),
		Activity:    a.align(p.activity, target, model.ReduceSum),
		Classes:     make([]model.ClassAggregate, 0, len(p.classes)),
		Experiences: make([]model.ExperienceAggregate, 0, len(p.experiences)),
		Sources:     p.status[:],
	}
	for _, c := range p.classes {
		c.Trend = a.align(c.Trend, target, model.ReduceMean)
		snap.Classes = append(snap.Classes, c)
	}
	for _, e := range p.experiences {
		e.Usage = a.align(e.Usage, target, model.ReduceSum)
		snap.Experiences = append(snap.Experiences, e)
	}
	sort.SliceStable(snap.Classes, func(i, j int) bool { return snap.Classes[i].ClassID < snap.Classes[j].ClassID })
	sort.SliceStable(snap.Experiences, func(i, j int) bool {
		return snap.Experiences[i].ExperienceID < snap.Experiences[j].ExperienceID
	})
	return snap
}

func (a *AnalyticsAggregator) align(s model.MetricSeries, target model.Granularity, fallback model.Reducer) model.MetricSeries {
	if s.Reducer == "" {
		s.Reducer = fallback
	}
	out, err := insight.Rebucket(s, target)
	if err != nil {
		a.guard.Check(false, insight.ViolationGranularity, err.Error())
		return insight.EmptySeries(target, s.Reducer)
	}
	return out
}
