package enrollment

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/pkg/metrics"
	"github.com/aulavirtual/lms-server-go/pkg/pagination"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

const (
	DefaultDurationWeeks = 14
	MaxDurationWeeks     = 104
	// ExpiringSoonWindow is how close to expiry an enrollment counts as expiring soon.
	ExpiringSoonWindow = 7 * 24 * time.Hour
)

// Enrollment grants a student access to a course until ExpiresAt.
// At most one active row exists per (user_id, course_id); the partial
// unique index enforces it.
type Enrollment struct {
	types.BaseModel

	UserID          uuid.UUID  `gorm:"type:uuid;not null;column:user_id;index;uniqueIndex:idx_enrollments_active_pair,where:is_active = true" json:"userId"`
	CourseID        uuid.UUID  `gorm:"type:uuid;not null;column:course_id;index;uniqueIndex:idx_enrollments_active_pair,where:is_active = true" json:"courseId"`
	EnrolledAt      time.Time  `gorm:"not null;column:enrolled_at" json:"enrolledAt"`
	ExpiresAt       time.Time  `gorm:"not null;column:expires_at;index" json:"expiresAt"`
	PaymentVerified bool       `gorm:"type:boolean;not null;column:payment_verified" json:"paymentVerified"`
	Active          bool       `gorm:"type:boolean;not null;column:is_active" json:"isActive"`
	CreatedBy       *uuid.UUID `gorm:"type:uuid;column:created_by" json:"createdBy,omitempty"`
	Notes           *string    `gorm:"type:text" json:"notes,omitempty"`

	Student *profile.Profile `gorm:"foreignKey:UserID" json:"student,omitempty"`
	Course  *course.Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// TableName overrides the default table name.
func (Enrollment) TableName() string { return "enrollments" }

// IsExpired reports whether the enrollment window has closed at now.
func (e Enrollment) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// DaysRemaining returns the whole days left at now, rounded up, never negative.
func (e Enrollment) DaysRemaining(now time.Time) int {
	return DaysRemaining(e.ExpiresAt, now)
}

// GrantsAccess reports whether the enrollment is active and unexpired at now.
func (e Enrollment) GrantsAccess(now time.Time) bool {
	return e.Active && !e.IsExpired(now)
}

// DaysRemaining returns ceil((expiresAt - now) / 1 day), floored at zero.
func DaysRemaining(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// ExpiryFor returns the expiry of an enrollment starting at start.
func ExpiryFor(start time.Time, weeks int) time.Time {
	return start.Add(time.Duration(weeks) * 7 * 24 * time.Hour)
}

// Status values accepted by ListFilters.Status.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ListFilters defines enrollment query filters.
type ListFilters struct {
	StudentID *uuid.UUID
	CourseID  *uuid.UUID
	// Status "active" keeps active unexpired rows; "inactive" keeps the rest.
	Status string
	Now    time.Time
}

// CreateInput carries data for creating a new enrollment.
type CreateInput struct {
	StudentID     uuid.UUID
	CourseID      uuid.UUID
	DurationWeeks int
	Notes         *string
	CreatedBy     *uuid.UUID
	// EnrolledAt defaults to the current time.
	EnrolledAt time.Time
}

// Create enrolls a student. The existence check runs first so the common
// duplicate case returns a clear error; the unique index catches the race.
func Create(db *gorm.DB, input CreateInput) (Enrollment, error) {
	weeks := input.DurationWeeks
	if weeks == 0 {
		weeks = DefaultDurationWeeks
	}
	if weeks < 1 || weeks > MaxDurationWeeks {
		return Enrollment{}, ErrInvalidDuration
	}

	enrolledAt := input.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now()
	}
	enrolledAt = enrolledAt.UTC()

	var created Enrollment
	err := db.Transaction(func(tx *gorm.DB) error {
		student, err := profile.Get(tx, input.StudentID)
		if err != nil {
			return err
		}
		if student.Role != types.RoleStudent {
			return ErrNotStudent
		}
		if !student.Active {
			return ErrStudentInactive
		}

		if _, err := course.Get(tx, input.CourseID); err != nil {
			return err
		}

		exists, err := hasActive(tx, input.StudentID, input.CourseID, uuid.Nil)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateActiveEnrollment
		}

		created = Enrollment{
			UserID:          input.StudentID,
			CourseID:        input.CourseID,
			EnrolledAt:      enrolledAt,
			ExpiresAt:       ExpiryFor(enrolledAt, weeks),
			PaymentVerified: false,
			Active:          true,
			CreatedBy:       input.CreatedBy,
			Notes:           trimmedPtr(input.Notes),
		}
		if err := tx.Create(&created).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateActiveEnrollment
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateActiveEnrollment) {
			metrics.RecordDuplicateEnrollment()
		}
		return Enrollment{}, err
	}

	metrics.RecordEnrollmentCreated()
	return created, nil
}

// Get retrieves an enrollment by ID.
func Get(db *gorm.DB, id uuid.UUID) (Enrollment, error) {
	var e Enrollment
	if err := db.First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return e, ErrEnrollmentNotFound
		}
		return e, err
	}
	return e, nil
}

// List returns enrollments with their student and course.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Enrollment, int64, error) {
	query := db.Model(&Enrollment{})

	if filters.StudentID != nil {
		query = query.Where("user_id = ?", *filters.StudentID)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}

	now := filters.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	switch filters.Status {
	case StatusActive:
		query = query.Where("is_active = ? AND expires_at > ?", true, now)
	case StatusInactive:
		query = query.Where("is_active = ? OR expires_at <= ?", false, now)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	enrollments := make([]Enrollment, 0)
	err := query.
		Preload("Student").
		Preload("Course").
		Order("enrolled_at DESC").
		Scopes(params.Scope()).
		Find(&enrollments).Error

	return enrollments, total, err
}

// ToggleActive flips the active flag. ExpiresAt is left unchanged, so a
// reactivated expired enrollment still grants no access.
func ToggleActive(db *gorm.DB, id uuid.UUID) (Enrollment, error) {
	var result Enrollment
	err := db.Transaction(func(tx *gorm.DB) error {
		e, err := Get(tx, id)
		if err != nil {
			return err
		}

		if !e.Active {
			exists, err := hasActive(tx, e.UserID, e.CourseID, e.ID)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateActiveEnrollment
			}
		}

		e.Active = !e.Active
		if err := tx.Model(&e).Update("is_active", e.Active).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateActiveEnrollment
			}
			return err
		}
		result = e
		return nil
	})
	return result, err
}

// SetPaymentVerified records whether payment for the enrollment was confirmed.
func SetPaymentVerified(db *gorm.DB, id uuid.UUID, verified bool) (Enrollment, error) {
	result := db.Model(&Enrollment{}).Where("id = ?", id).Update("payment_verified", verified)
	if result.Error != nil {
		return Enrollment{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Enrollment{}, ErrEnrollmentNotFound
	}
	return Get(db, id)
}

// UpdateNotes replaces the notes of an enrollment.
func UpdateNotes(db *gorm.DB, id uuid.UUID, notes *string) (Enrollment, error) {
	result := db.Model(&Enrollment{}).Where("id = ?", id).Update("notes", trimmedPtr(notes))
	if result.Error != nil {
		return Enrollment{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Enrollment{}, ErrEnrollmentNotFound
	}
	return Get(db, id)
}

// Delete removes an enrollment. Progress rows of the student are kept.
func Delete(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&Enrollment{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// HasAccess reports whether the student has an active, unexpired enrollment
// in an active course at now.
func HasAccess(db *gorm.DB, studentID, courseID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := db.Model(&Enrollment{}).
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Where("enrollments.user_id = ? AND enrollments.course_id = ?", studentID, courseID).
		Where("enrollments.is_active = ? AND enrollments.expires_at > ?", true, now.UTC()).
		Where("courses.is_active = ?", true).
		Count(&count).Error
	return count > 0, err
}

// ActiveForStudent returns the student's active enrollments with their course.
func ActiveForStudent(db *gorm.DB, studentID uuid.UUID) ([]Enrollment, error) {
	enrollments := make([]Enrollment, 0)
	err := db.
		Preload("Course").
		Where("user_id = ? AND is_active = ?", studentID, true).
		Order("expires_at ASC").
		Find(&enrollments).Error
	return enrollments, err
}

// ActiveForCourses returns the enrollments granting access to any of courseIDs
// at now, with their student and course.
func ActiveForCourses(db *gorm.DB, courseIDs []uuid.UUID, now time.Time) ([]Enrollment, error) {
	enrollments := make([]Enrollment, 0)
	if len(courseIDs) == 0 {
		return enrollments, nil
	}
	err := db.
		Preload("Student").
		Preload("Course").
		Where("course_id IN ? AND is_active = ? AND expires_at > ?", courseIDs, true, now.UTC()).
		Order("enrolled_at ASC").
		Find(&enrollments).Error
	return enrollments, err
}

// Stats summarizes enrollments at a point in time.
type Stats struct {
	Active           int64 `json:"active"`
	ExpiringSoon     int64 `json:"expiringSoon"`
	ExpiredButActive int64 `json:"expiredButActive"`
}

// ComputeStats counts active enrollments that are unexpired, expiring within a
// week, or past their expiry. Deactivated enrollments are never counted.
func ComputeStats(db *gorm.DB, now time.Time) (Stats, error) {
	now = now.UTC()
	var stats Stats

	active := func() *gorm.DB {
		return db.Model(&Enrollment{}).Where("is_active = ?", true)
	}

	if err := active().Where("expires_at > ?", now).Count(&stats.Active).Error; err != nil {
		return stats, err
	}
	if err := active().
		Where("expires_at > ? AND expires_at <= ?", now, now.Add(ExpiringSoonWindow)).
		Count(&stats.ExpiringSoon).Error; err != nil {
		return stats, err
	}
	if err := active().Where("expires_at <= ?", now).Count(&stats.ExpiredButActive).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// CountActiveStudents counts distinct students with an active unexpired enrollment in courseID.
func CountActiveStudents(db *gorm.DB, courseID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := db.Model(&Enrollment{}).
		Where("course_id = ? AND is_active = ? AND expires_at > ?", courseID, true, now.UTC()).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}

func hasActive(db *gorm.DB, studentID, courseID, excludeID uuid.UUID) (bool, error) {
	query := db.Model(&Enrollment{}).
		Where("user_id = ? AND course_id = ? AND is_active = ?", studentID, courseID, true)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
