package assignment

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// TeacherAssignment links an instructor to a course they may manage.
type TeacherAssignment struct {
	types.BaseModel

	TeacherID uuid.UUID `gorm:"type:uuid;not null;column:teacher_id;uniqueIndex:idx_teacher_course" json:"teacherId"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_teacher_course;index" json:"courseId"`
	Active    bool      `gorm:"type:boolean;not null;column:is_active" json:"isActive"`

	Teacher *profile.Profile `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
	Course  *course.Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// TableName overrides the default table name.
func (TeacherAssignment) TableName() string { return "teacher_assignments" }

// ListFilters defines assignment query filters.
type ListFilters struct {
	TeacherID  *uuid.UUID
	CourseID   *uuid.UUID
	ActiveOnly bool
}

// Assign links teacherID to courseID. An inactive link is reactivated.
func Assign(db *gorm.DB, teacherID, courseID uuid.UUID) (TeacherAssignment, error) {
	var result TeacherAssignment

	err := db.Transaction(func(tx *gorm.DB) error {
		teacher, err := profile.Get(tx, teacherID)
		if err != nil {
			if errors.Is(err, profile.ErrProfileNotFound) {
				return ErrNotInstructor
			}
			return err
		}
		if teacher.Role != types.RoleInstructor || !teacher.Active {
			return ErrNotInstructor
		}

		if _, err := course.Get(tx, courseID); err != nil {
			return err
		}

		var existing TeacherAssignment
		err = tx.First(&existing, "teacher_id = ? AND course_id = ?", teacherID, courseID).Error
		switch {
		case err == nil && existing.Active:
			return ErrAlreadyAssigned
		case err == nil:
			existing.Active = true
			if err := tx.Model(&existing).Update("is_active", true).Error; err != nil {
				return err
			}
			result = existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		result = TeacherAssignment{TeacherID: teacherID, CourseID: courseID, Active: true}
		if err := tx.Create(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyAssigned
			}
			return err
		}
		return nil
	})

	return result, err
}

// Get retrieves an assignment by ID.
func Get(db *gorm.DB, id uuid.UUID) (TeacherAssignment, error) {
	var a TeacherAssignment
	if err := db.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return a, ErrAssignmentNotFound
		}
		return a, err
	}
	return a, nil
}

// List returns assignments with their teacher and course.
func List(db *gorm.DB, filters ListFilters) ([]TeacherAssignment, error) {
	query := db.Model(&TeacherAssignment{}).Preload("Teacher").Preload("Course")

	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	assignments := make([]TeacherAssignment, 0)
	err := query.Order("created_at ASC").Find(&assignments).Error
	return assignments, err
}

// ListForTeacher returns the active assignments of a teacher.
func ListForTeacher(db *gorm.DB, teacherID uuid.UUID) ([]TeacherAssignment, error) {
	return List(db, ListFilters{TeacherID: &teacherID, ActiveOnly: true})
}

// ListForCourse returns all assignments of a course.
func ListForCourse(db *gorm.DB, courseID uuid.UUID) ([]TeacherAssignment, error) {
	return List(db, ListFilters{CourseID: &courseID})
}

// ToggleActive flips the active flag of an assignment.
func ToggleActive(db *gorm.DB, id uuid.UUID) (TeacherAssignment, error) {
	a, err := Get(db, id)
	if err != nil {
		return a, err
	}

	a.Active = !a.Active
	if err := db.Model(&a).Update("is_active", a.Active).Error; err != nil {
		return a, err
	}
	return a, nil
}

// Unassign removes an assignment.
func Unassign(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&TeacherAssignment{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// IsAssigned reports whether teacherID has an active assignment for courseID.
func IsAssigned(db *gorm.DB, teacherID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&TeacherAssignment{}).
		Where("teacher_id = ? AND course_id = ? AND is_active = ?", teacherID, courseID, true).
		Count(&count).Error
	return count > 0, err
}
