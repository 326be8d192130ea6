package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_db_query_duration_seconds",
			Help:    "Database query latency.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "table"},
	)

	enrollmentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_enrollments_created_total",
		Help: "Enrollments created.",
	})

	duplicateEnrollments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_enrollments_duplicate_rejected_total",
		Help: "Enrollment attempts rejected because an active enrollment already exists.",
	})

	videoUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_video_uploads_total",
			Help: "Video uploads by outcome.",
		},
		[]string{"outcome"},
	)

	videoUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_video_upload_bytes_total",
		Help: "Bytes written to the object store by video uploads.",
	})

	compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_compensations_total",
			Help: "Compensating actions run after a failed second step, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	progressSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_progress_saves_total",
			Help: "Progress reports by resulting state.",
		},
		[]string{"state"},
	)

	videoCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_video_completions_total",
		Help: "Videos that transitioned to completed.",
	})

	enrollmentGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lms_enrollments",
			Help: "Enrollment counts by status, refreshed by the expiry report job.",
		},
		[]string{"status"},
	)

	orphanProgressGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lms_orphan_progress_rows",
		Help: "Progress rows whose student no longer has an enrollment for the course.",
	})
)

// Middleware records request counts and latencies per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordDBQuery observes a database query duration.
func RecordDBQuery(operation, table string, elapsed time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
}

// RecordEnrollmentCreated increments the created enrollments counter.
func RecordEnrollmentCreated() {
	enrollmentsCreated.Inc()
}

// RecordDuplicateEnrollment increments the duplicate rejection counter.
func RecordDuplicateEnrollment() {
	duplicateEnrollments.Inc()
}

// RecordVideoUpload records an upload outcome ("stored", "failed", "rolled_back").
func RecordVideoUpload(outcome string, bytes int64) {
	videoUploads.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		videoUploadBytes.Add(float64(bytes))
	}
}

// RecordCompensation records a compensating action such as deleting an orphaned object.
func RecordCompensation(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	compensations.WithLabelValues(kind, outcome).Inc()
}

// RecordProgressSave records the state a progress report produced.
func RecordProgressSave(state string, newlyCompleted bool) {
	progressSaves.WithLabelValues(state).Inc()
	if newlyCompleted {
		videoCompletions.Inc()
	}
}

// SetEnrollmentCounts publishes the enrollment gauges.
func SetEnrollmentCounts(active, expiredButActive, expiringSoon int64) {
	enrollmentGauge.WithLabelValues("active").Set(float64(active))
	enrollmentGauge.WithLabelValues("expired_but_active").Set(float64(expiredButActive))
	enrollmentGauge.WithLabelValues("expiring_soon").Set(float64(expiringSoon))
}

// SetOrphanProgress publishes the orphaned progress gauge.
func SetOrphanProgress(count int64) {
	orphanProgressGauge.Set(float64(count))
}
