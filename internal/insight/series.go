package insight

import (
	"fmt"
	"learner_insight/internal/model"
	"sort"
	"time"
)

// CoarsestGranularity returns the coarsest of the requested granularity and the
// granularities of the given series. Series with no granularity are ignored.
func CoarsestGranularity(requested model.Granularity, series ...model.MetricSeries) model.Granularity {
	g := requested
	for _, s := range series {
		g = g.Coarser(s.Granularity)
	}
	return g
}

// EmptySeries is the placeholder used for a source that produced nothing.
func EmptySeries(g model.Granularity, r model.Reducer) model.MetricSeries {
	return model.MetricSeries{Granularity: g, Reducer: r, Points: []model.MetricPoint{}}
}

// Rebucket merges s into buckets of the target granularity. Sum series add
// values; mean series take the sample-weighted mean. Refining to a finer
// granularity is refused, and so is week to month since a week that spans a
// month boundary has no single month to land in.
func Rebucket(s model.MetricSeries, target model.Granularity) (model.MetricSeries, error) {
	if target.Rank() < 0 {
		return s, fmt.Errorf("rebucket: unknown target granularity %q", target)
	}
	if s.Granularity.Rank() > target.Rank() {
		return s, fmt.Errorf("rebucket: cannot refine %s series to %s", s.Granularity, target)
	}
	if s.Granularity == model.GranularityWeek && target == model.GranularityMonth {
		return s, fmt.Errorf("rebucket: week buckets do not nest in months")
	}
	reducer := s.Reducer
	if reducer == "" {
		reducer = model.ReduceSum
	}
	out := EmptySeries(target, reducer)
	if len(s.Points) == 0 {
		return out, nil
	}

	type acc struct {
		value   float64
		weight  float64
		samples int
	}
	buckets := make(map[time.Time]*acc)
	for _, p := range s.Points {
		key := target.Truncate(p.Bucket)
		a, ok := buckets[key]
		if !ok {
			a = &acc{}
			buckets[key] = a
		}
		a.samples += p.Samples
		if reducer == model.ReduceMean {
			w := float64(p.Samples)
			if w <= 0 {
				w = 1
			}
			a.value += p.Value * w
			a.weight += w
		} else {
			a.value += p.Value
		}
	}

	for bucket, a := range buckets {
		v := a.value
		if reducer == model.ReduceMean && a.weight > 0 {
			v = a.value / a.weight
		}
		out.Points = append(out.Points, model.MetricPoint{Bucket: bucket, Value: v, Samples: a.samples})
	}
	sort.Slice(out.Points, func(i, j int) bool {
		return out.Points[i].Bucket.Before(out.Points[j].Bucket)
	})
	return out, nil
}

// Accumulate buckets raw samples, each stamped with its own time, into a
// series of granularity g.
func Accumulate(g model.Granularity, r model.Reducer, samples []model.MetricPoint) model.MetricSeries {
	s, err := Rebucket(model.MetricSeries{Reducer: r, Points: samples}, g)
	if err != nil {
		return EmptySeries(g, r)
	}
	return s
}
