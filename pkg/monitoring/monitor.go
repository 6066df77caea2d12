package monitoring

import (
	"strconv"
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

	// AnswersGraded 按作答来源（assignment/exam）和判分结果计数
	AnswersGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classwork_answers_graded_total",
			Help: "Submitted answers by source and verdict",
		},
		[]string{"source", "verdict"},
	)

	Finishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classwork_finishes_total",
			Help: "Finished working copies by source",
		},
		[]string{"source"},
	)

	// FanOutCopies result 取 inserted / skipped / failed
	FanOutCopies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classwork_fanout_copies_total",
			Help: "Working copies handled during fan-out",
		},
		[]string{"source", "result"},
	)

	SnapshotPercent = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classwork_snapshot_percent",
			Help:    "Assignment score percent recorded on finish",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	ExamTotalScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classwork_exam_total_score",
			Help:    "Exam total score recorded on finish",
			Buckets: prometheus.LinearBuckets(0, 5, 12),
		},
	)

	StaleRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classwork_stale_retries_total",
			Help: "Read-modify-write retries caused by concurrent updates",
		},
		[]string{"op"},
	)
)

func Init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		AnswersGraded,
		Finishes,
		FanOutCopies,
		SnapshotPercent,
		ExamTotalScore,
		StaleRetries,
	)
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
