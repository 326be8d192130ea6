package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newReportDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range []string{
		`CREATE TABLE enrollments (id TEXT PRIMARY KEY, user_id TEXT, course_id TEXT, is_active BOOLEAN, expires_at DATETIME)`,
		`CREATE TABLE videos (id TEXT PRIMARY KEY, course_id TEXT)`,
		`CREATE TABLE progress (id TEXT PRIMARY KEY, user_id TEXT, video_id TEXT)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrollmentExpiryReport(t *testing.T) {
	db := newReportDB(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	insert := func(active bool, expires time.Time) {
		require.NoError(t, db.Exec(
			"INSERT INTO enrollments (id, user_id, course_id, is_active, expires_at) VALUES (?, ?, ?, ?, ?)",
			uuid.NewString(), uuid.NewString(), uuid.NewString(), active, expires,
		).Error)
	}
	insert(true, now.Add(30*24*time.Hour))
	insert(true, now.Add(2*24*time.Hour))
	insert(true, now.Add(-time.Hour))
	insert(false, now.Add(-time.Hour))

	job := NewEnrollmentExpiryReportJob(db, discardLogger())
	job.now = func() time.Time { return now }

	report, err := job.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EnrollmentReport{Active: 2, ExpiredButActive: 1, ExpiringSoon: 1}, report)
	assert.NoError(t, job.Execute(context.Background()))
}

func TestOrphanProgressReport(t *testing.T) {
	db := newReportDB(t)
	student, course, video := uuid.NewString(), uuid.NewString(), uuid.NewString()

	require.NoError(t, db.Exec("INSERT INTO videos (id, course_id) VALUES (?, ?)", video, course).Error)
	require.NoError(t, db.Exec("INSERT INTO enrollments (id, user_id, course_id, is_active, expires_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), student, course, true, time.Now().UTC().Add(time.Hour)).Error)

	require.NoError(t, db.Exec("INSERT INTO progress (id, user_id, video_id) VALUES (?, ?, ?)", uuid.NewString(), student, video).Error)
	require.NoError(t, db.Exec("INSERT INTO progress (id, user_id, video_id) VALUES (?, ?, ?)", uuid.NewString(), uuid.NewString(), video).Error)
	require.NoError(t, db.Exec("INSERT INTO progress (id, user_id, video_id) VALUES (?, ?, ?)", uuid.NewString(), student, uuid.NewString()).Error)

	job := NewOrphanProgressReportJob(db, discardLogger())
	count, err := job.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Execute(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRegistration(t *testing.T) {
	s := NewScheduler(discardLogger())
	job := &countingJob{err: errors.New("nope")}

	require.NoError(t, s.AddJob(job, "@hourly"))
	assert.Error(t, s.AddJob(job, "@hourly"))
	assert.Error(t, s.AddJob(&namedJob{name: "bad"}, "not a schedule"))

	assert.EqualError(t, s.RunOnce(context.Background(), "counting"), "nope")
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Error(t, s.RunOnce(context.Background(), "missing"))

	s.Start()
	s.Stop()
}

type namedJob struct{ name string }

func (j *namedJob) Name() string                      { return j.name }
func (j *namedJob) Execute(ctx context.Context) error { return nil }
