package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/pkg/metrics"
)

// ExpiringSoonWindow is how far ahead the enrollment report looks.
const ExpiringSoonWindow = 7 * 24 * time.Hour

// EnrollmentReport summarises active enrollments at a point in time.
type EnrollmentReport struct {
	Active           int64
	ExpiredButActive int64
	ExpiringSoon     int64
}

// EnrollmentExpiryReportJob publishes enrollment gauges. Expired rows keep
// their active flag; access is denied by the expiry check, so nothing is updated here.
type EnrollmentExpiryReportJob struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewEnrollmentExpiryReportJob creates the job.
func NewEnrollmentExpiryReportJob(db *gorm.DB, logger *slog.Logger) *EnrollmentExpiryReportJob {
	return &EnrollmentExpiryReportJob{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Name returns the job name.
func (j *EnrollmentExpiryReportJob) Name() string {
	return "enrollment-expiry-report"
}

// Report counts enrollments by expiry state.
func (j *EnrollmentExpiryReportJob) Report(ctx context.Context) (EnrollmentReport, error) {
	now := j.now()
	var report EnrollmentReport

	active := func() *gorm.DB {
		return j.db.WithContext(ctx).Table("enrollments").Where("is_active = ?", true)
	}

	if err := active().Where("expires_at > ?", now).Count(&report.Active).Error; err != nil {
		return report, fmt.Errorf("count active enrollments: %w", err)
	}
	if err := active().Where("expires_at <= ?", now).Count(&report.ExpiredButActive).Error; err != nil {
		return report, fmt.Errorf("count expired enrollments: %w", err)
	}
	if err := active().
		Where("expires_at > ? AND expires_at <= ?", now, now.Add(ExpiringSoonWindow)).
		Count(&report.ExpiringSoon).Error; err != nil {
		return report, fmt.Errorf("count expiring enrollments: %w", err)
	}

	return report, nil
}

// Execute refreshes the enrollment gauges.
func (j *EnrollmentExpiryReportJob) Execute(ctx context.Context) error {
	report, err := j.Report(ctx)
	if err != nil {
		return err
	}

	metrics.SetEnrollmentCounts(report.Active, report.ExpiredButActive, report.ExpiringSoon)

	if report.ExpiredButActive > 0 || report.ExpiringSoon > 0 {
		j.logger.Info("enrollment expiry report",
			"active", report.Active,
			"expiredButActive", report.ExpiredButActive,
			"expiringSoon", report.ExpiringSoon)
	}
	return nil
}

// OrphanProgressReportJob counts progress rows that no enrollment reaches any
// more. Enrollment deletes leave progress in place, so this only reports.
type OrphanProgressReportJob struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewOrphanProgressReportJob creates the job.
func NewOrphanProgressReportJob(db *gorm.DB, logger *slog.Logger) *OrphanProgressReportJob {
	return &OrphanProgressReportJob{db: db, logger: logger}
}

// Name returns the job name.
func (j *OrphanProgressReportJob) Name() string {
	return "orphan-progress-report"
}

// Count returns the number of orphaned progress rows.
func (j *OrphanProgressReportJob) Count(ctx context.Context) (int64, error) {
	var count int64
	err := j.db.WithContext(ctx).
		Table("progress AS p").
		Where(`NOT EXISTS (
			SELECT 1 FROM videos v
			JOIN enrollments e ON e.course_id = v.course_id AND e.user_id = p.user_id
			WHERE v.id = p.video_id
		)`).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count orphaned progress: %w", err)
	}
	return count, nil
}

// Execute refreshes the orphan gauge.
func (j *OrphanProgressReportJob) Execute(ctx context.Context) error {
	count, err := j.Count(ctx)
	if err != nil {
		return err
	}

	metrics.SetOrphanProgress(count)
	if count > 0 {
		j.logger.Info("orphaned progress rows found", "count", count)
	}
	return nil
}
