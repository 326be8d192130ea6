package course

import (
	"errors"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/pkg/pagination"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

const (
	DefaultCycle   = 2
	DefaultCredits = 3
	MaxCredits     = 30
)

// Palette holds the colors assigned to courses created without one.
var Palette = []string{"#3B82F6", "#8B5CF6", "#10B981", "#F59E0B", "#EF4444", "#06B6D4", "#F97316", "#EC4899"}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Course is a catalog entry.
type Course struct {
	types.BaseModel

	Name        string     `gorm:"type:varchar(150);not null" json:"name"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`
	Code        string     `gorm:"type:varchar(30);not null;uniqueIndex" json:"code"`
	Cycle       int        `gorm:"type:smallint;not null" json:"cycle"`
	Credits     *int       `gorm:"type:smallint" json:"credits,omitempty"`
	Color       string     `gorm:"type:varchar(7);not null" json:"color"`
	Active      bool       `gorm:"type:boolean;not null;column:is_active;index" json:"isActive"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid;column:created_by" json:"createdBy,omitempty"`
}

// TableName overrides the default table name.
func (Course) TableName() string { return "courses" }

// ListFilters defines course query filters.
type ListFilters struct {
	Keyword string
	Active  *bool
	// TeacherID limits results to courses with an active assignment for the teacher.
	TeacherID *uuid.UUID
	// StudentID limits results to courses with an active enrollment for the student.
	StudentID *uuid.UUID
	Cycle     *int
}

// CreateInput carries data for creating a new course.
type CreateInput struct {
	Name        string
	Description *string
	Code        string
	Cycle       *int
	Credits     *int
	Color       *string
	Active      *bool
	CreatedBy   *uuid.UUID
}

// UpdateInput captures mutable course fields.
type UpdateInput struct {
	Name         *string
	DescProvided bool
	Description  *string
	Code         *string
	Cycle        *int
	CredProvided bool
	Credits      *int
	Color        *string
	Active       *bool
}

// NormalizeCode trims and upper-cases a course code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ColorFor returns the palette color assigned to code.
func ColorFor(code string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(code))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

func validCycle(cycle int) bool { return cycle == 1 || cycle == 2 }

func validCredits(credits *int) bool {
	return credits == nil || (*credits >= 0 && *credits <= MaxCredits)
}

// List retrieves paginated courses with filters.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Course, int64, error) {
	query := db.Model(&Course{})

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", keyword, keyword)
	}
	if filters.Active != nil {
		query = query.Where("is_active = ?", *filters.Active)
	}
	if filters.Cycle != nil {
		query = query.Where("cycle = ?", *filters.Cycle)
	}
	if filters.TeacherID != nil {
		query = query.Where("id IN (?)", db.Table("teacher_assignments").
			Select("course_id").
			Where("teacher_id = ? AND is_active = ?", *filters.TeacherID, true))
	}
	if filters.StudentID != nil {
		query = query.Where("id IN (?)", db.Table("enrollments").
			Select("course_id").
			Where("user_id = ? AND is_active = ?", *filters.StudentID, true))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	courses := make([]Course, 0)
	err := query.
		Order("cycle ASC, name ASC").
		Scopes(params.Scope()).
		Find(&courses).Error

	return courses, total, err
}

// Get retrieves a course by ID.
func Get(db *gorm.DB, id uuid.UUID) (Course, error) {
	var course Course
	if err := db.First(&course, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return course, ErrCourseNotFound
		}
		return course, err
	}
	return course, nil
}

// GetByCode retrieves a course by its code.
func GetByCode(db *gorm.DB, code string) (Course, error) {
	var course Course
	if err := db.First(&course, "code = ?", NormalizeCode(code)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return course, ErrCourseNotFound
		}
		return course, err
	}
	return course, nil
}

// Create inserts a new course. Duplicate codes are reported by the store's
// unique index and surface as ErrCodeTaken.
func Create(db *gorm.DB, input CreateInput) (Course, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Course{}, ErrNameRequired
	}

	code := NormalizeCode(input.Code)
	if code == "" {
		return Course{}, ErrCodeRequired
	}

	cycle := DefaultCycle
	if input.Cycle != nil {
		cycle = *input.Cycle
	}
	if !validCycle(cycle) {
		return Course{}, ErrInvalidCycle
	}

	credits := input.Credits
	if credits == nil {
		d := DefaultCredits
		credits = &d
	}
	if !validCredits(credits) {
		return Course{}, ErrInvalidCredits
	}

	color := ColorFor(code)
	if input.Color != nil && strings.TrimSpace(*input.Color) != "" {
		color = strings.ToUpper(strings.TrimSpace(*input.Color))
		if !hexColor.MatchString(color) {
			return Course{}, ErrInvalidColor
		}
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	course := Course{
		Name:        name,
		Description: trimmedPtr(input.Description),
		Code:        code,
		Cycle:       cycle,
		Credits:     credits,
		Color:       color,
		Active:      active,
		CreatedBy:   input.CreatedBy,
	}

	if err := db.Create(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Course{}, ErrCodeTaken
		}
		return Course{}, err
	}

	return course, nil
}

// Update modifies an existing course.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Course, error) {
	course, err := Get(db, id)
	if err != nil {
		return course, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return course, ErrNameRequired
		}
		course.Name = name
	}

	if input.DescProvided {
		course.Description = trimmedPtr(input.Description)
	}

	if input.Code != nil {
		code := NormalizeCode(*input.Code)
		if code == "" {
			return course, ErrCodeRequired
		}
		course.Code = code
	}

	if input.Cycle != nil {
		if !validCycle(*input.Cycle) {
			return course, ErrInvalidCycle
		}
		course.Cycle = *input.Cycle
	}

	if input.CredProvided {
		if !validCredits(input.Credits) {
			return course, ErrInvalidCredits
		}
		course.Credits = input.Credits
	}

	if input.Color != nil {
		color := strings.ToUpper(strings.TrimSpace(*input.Color))
		if !hexColor.MatchString(color) {
			return course, ErrInvalidColor
		}
		course.Color = color
	}

	if input.Active != nil {
		course.Active = *input.Active
	}

	if err := db.Save(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return course, ErrCodeTaken
		}
		return course, err
	}

	return course, nil
}

// ToggleActive flips the active flag.
func ToggleActive(db *gorm.DB, id uuid.UUID) (Course, error) {
	course, err := Get(db, id)
	if err != nil {
		return course, err
	}

	course.Active = !course.Active
	if err := db.Model(&course).Update("is_active", course.Active).Error; err != nil {
		return course, err
	}
	return course, nil
}

// Delete removes a course that has no videos and no enrollments.
func Delete(db *gorm.DB, id uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}

		var dependents int64
		if err := tx.Raw(`SELECT (SELECT COUNT(*) FROM videos WHERE course_id = ?) + (SELECT COUNT(*) FROM enrollments WHERE course_id = ?)`, id, id).
			Scan(&dependents).Error; err != nil {
			return err
		}
		if dependents > 0 {
			return ErrCourseInUse
		}

		if err := tx.Exec("DELETE FROM teacher_assignments WHERE course_id = ?", id).Error; err != nil {
			return err
		}

		result := tx.Delete(&Course{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCourseNotFound
		}
		return nil
	})
}

// CountActive counts active courses.
func CountActive(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&Course{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
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
