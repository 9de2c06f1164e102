package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AnalyticsSourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_source_failures_total",
			Help: "Analytics source calls that degraded a snapshot",
		},
		[]string{"source", "reason"},
	)

	AnalyticsSourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_source_duration_seconds",
			Help:    "Duration of analytics source calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"source"},
	)

	InvariantViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_invariant_violations_total",
			Help: "Invariant violations clamped by the insight engine",
		},
		[]string{"kind"},
	)

	ProfileResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_resolutions_total",
			Help: "Learner profile resolutions by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(AnalyticsSourceFailures)
		prometheus.MustRegister(AnalyticsSourceDuration)
		prometheus.MustRegister(InvariantViolations)
		prometheus.MustRegister(ProfileResolutions)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
