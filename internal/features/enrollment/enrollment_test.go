package enrollment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/testutil"
	"github.com/aulavirtual/lms-server-go/pkg/pagination"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	student profile.Profile
	course  course.Course
}

func newFixture(t *testing.T) fixture {
	db := testutil.NewDB(t, &profile.Profile{}, &course.Course{}, &Enrollment{})

	student, err := profile.Create(db, profile.CreateInput{ID: uuid.New(), Email: "s1@example.com", FullName: "S1", Role: types.RoleStudent})
	require.NoError(t, err)
	c, err := course.Create(db, course.CreateInput{Name: "Lógica", Code: "LOG-1"})
	require.NoError(t, err)
	return fixture{db: db, student: student, course: c}
}

func (f fixture) enroll(t *testing.T, weeks int) Enrollment {
	e, err := Create(f.db, CreateInput{StudentID: f.student.ID, CourseID: f.course.ID, DurationWeeks: weeks, EnrolledAt: t0})
	require.NoError(t, err)
	return e
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&Enrollment{}).Count(&n).Error)
	return n
}

func TestCreateComputesWindow(t *testing.T) {
	f := newFixture(t)

	e := f.enroll(t, 0)
	assert.True(t, e.Active)
	assert.False(t, e.PaymentVerified)
	assert.True(t, e.ExpiresAt.Equal(t0.Add(14*7*24*time.Hour)))

	stored, err := Get(f.db, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.ExpiresAt.Equal(e.ExpiresAt))
}

func TestCreateRejectsDuplicateActiveEnrollment(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, 14)

	_, err := Create(f.db, CreateInput{StudentID: f.student.ID, CourseID: f.course.ID, DurationWeeks: 14, EnrolledAt: t0})
	assert.ErrorIs(t, err, ErrDuplicateActiveEnrollment)
	assert.EqualValues(t, 1, countRows(t, f.db))
}

func TestUniqueIndexCatchesRacingInsert(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, 14)

	// A writer that skipped the existence check still cannot add a second active row.
	err := f.db.Create(&Enrollment{UserID: f.student.ID, CourseID: f.course.ID, EnrolledAt: t0, ExpiresAt: t0.Add(time.Hour), Active: true}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Inactive history rows are allowed.
	require.NoError(t, f.db.Create(&Enrollment{UserID: f.student.ID, CourseID: f.course.ID, EnrolledAt: t0, ExpiresAt: t0.Add(time.Hour), Active: false}).Error)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := Create(f.db, CreateInput{StudentID: f.student.ID, CourseID: f.course.ID, DurationWeeks: 105})
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = Create(f.db, CreateInput{StudentID: f.student.ID, CourseID: f.course.ID, DurationWeeks: -1})
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = Create(f.db, CreateInput{StudentID: f.student.ID, CourseID: uuid.New()})
	assert.ErrorIs(t, err, course.ErrCourseNotFound)
	_, err = Create(f.db, CreateInput{StudentID: uuid.New(), CourseID: f.course.ID})
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)

	teacher, err := profile.Create(f.db, profile.CreateInput{ID: uuid.New(), Email: "t@example.com", FullName: "T", Role: types.RoleInstructor})
	require.NoError(t, err)
	_, err = Create(f.db, CreateInput{StudentID: teacher.ID, CourseID: f.course.ID})
	assert.ErrorIs(t, err, ErrNotStudent)

	_, err = profile.SetActive(f.db, f.student.ID, false)
	require.NoError(t, err)
	_, err = Create(f.db, CreateInput{StudentID: f.student.ID, CourseID: f.course.ID})
	assert.ErrorIs(t, err, ErrStudentInactive)
}

func TestToggleKeepsExpiry(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, 1)

	off, err := ToggleActive(f.db, e.ID)
	require.NoError(t, err)
	assert.False(t, off.Active)

	second := f.enroll(t, 2)
	_, err = ToggleActive(f.db, e.ID)
	assert.ErrorIs(t, err, ErrDuplicateActiveEnrollment)

	require.NoError(t, Delete(f.db, second.ID))
	on, err := ToggleActive(f.db, e.ID)
	require.NoError(t, err)
	assert.True(t, on.Active)
	assert.True(t, on.ExpiresAt.Equal(e.ExpiresAt))

	// Reactivated but past its window: still no access.
	ok, err := HasAccess(f.db, f.student.ID, f.course.ID, e.ExpiresAt.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasAccess(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, 14)
	now := t0.Add(24 * time.Hour)

	ok, err := HasAccess(f.db, f.student.ID, f.course.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = course.ToggleActive(f.db, f.course.ID)
	require.NoError(t, err)
	ok, err = HasAccess(f.db, f.student.ID, f.course.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = course.ToggleActive(f.db, f.course.ID)
	require.NoError(t, err)

	ok, err = HasAccess(f.db, f.student.ID, f.course.ID, e.ExpiresAt)
	require.NoError(t, err)
	assert.False(t, ok, "expires_at equal to now counts as expired")

	require.NoError(t, Delete(f.db, e.ID))
	ok, err = HasAccess(f.db, f.student.ID, f.course.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, countRows(t, f.db))
}

func TestDaysRemaining(t *testing.T) {
	now := t0
	cases := []struct {
		expires time.Time
		want    int
	}{
		{now.Add(72 * time.Hour), 3},
		{now.Add(72*time.Hour + time.Second), 4},
		{now.Add(time.Minute), 1},
		{now, 0},
		{now.Add(-48 * time.Hour), 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DaysRemaining(tc.expires, now), tc.expires)
	}

	e := Enrollment{ExpiresAt: now, Active: true}
	assert.True(t, e.IsExpired(now))
	assert.False(t, e.GrantsAccess(now))
	assert.False(t, e.IsExpired(now.Add(-time.Nanosecond)))
}

func TestListStatsAndPayment(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, 1)

	other, err := profile.Create(f.db, profile.CreateInput{ID: uuid.New(), Email: "s2@example.com", FullName: "S2", Role: types.RoleStudent})
	require.NoError(t, err)
	_, err = Create(f.db, CreateInput{StudentID: other.ID, CourseID: f.course.ID, DurationWeeks: 10, EnrolledAt: t0})
	require.NoError(t, err)

	now := t0.Add(3 * 24 * time.Hour)
	active, total, err := List(f.db, ListFilters{Status: StatusActive, Now: now}, pagination.New(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.NotNil(t, active[0].Student)
	require.NotNil(t, active[0].Course)

	stats, err := ComputeStats(f.db, now)
	require.NoError(t, err)
	assert.Equal(t, Stats{Active: 2, ExpiringSoon: 1, ExpiredButActive: 0}, stats)

	later := t0.Add(8 * 24 * time.Hour)
	inactive, _, err := List(f.db, ListFilters{Status: StatusInactive, Now: later}, pagination.New(1, 20))
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, e.ID, inactive[0].ID)

	students, err := CountActiveStudents(f.db, f.course.ID, later)
	require.NoError(t, err)
	assert.EqualValues(t, 1, students)

	paid, err := SetPaymentVerified(f.db, e.ID, true)
	require.NoError(t, err)
	assert.True(t, paid.PaymentVerified)

	note := "  pagó en efectivo "
	noted, err := UpdateNotes(f.db, e.ID, &note)
	require.NoError(t, err)
	require.NotNil(t, noted.Notes)
	assert.Equal(t, "pagó en efectivo", *noted.Notes)

	_, err = SetPaymentVerified(f.db, uuid.New(), true)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestStatsSkipDeactivatedEnrollments(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, 1)
	_, err := ToggleActive(f.db, e.ID)
	require.NoError(t, err)

	stats, err := ComputeStats(f.db, t0.Add(8*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats, "inactive and expired")

	stats, err = ComputeStats(f.db, t0.Add(2*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats, "inactive and expiring in 5 days")

	_, err = ToggleActive(f.db, e.ID)
	require.NoError(t, err)
	stats, err = ComputeStats(f.db, t0.Add(8*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Stats{ExpiredButActive: 1}, stats)
}
