package video

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// Video is a lecture recording inside a course. VideoURL holds the object
// store key of the binary.
type Video struct {
	types.BaseModel

	CourseID       uuid.UUID  `gorm:"type:uuid;not null;column:course_id;index:idx_videos_course_order" json:"courseId"`
	Title          string     `gorm:"type:varchar(200);not null" json:"title"`
	Description    *string    `gorm:"type:text" json:"description,omitempty"`
	VideoURL       string     `gorm:"type:text;not null;column:video_url" json:"videoUrl"`
	ThumbnailURL   *string    `gorm:"type:text;column:thumbnail_url" json:"thumbnailUrl,omitempty"`
	Week           int        `gorm:"type:int;not null;index:idx_videos_course_order" json:"week"`
	OrderInWeek    int        `gorm:"type:int;not null;column:order_in_week;index:idx_videos_course_order" json:"orderInWeek"`
	Duration       int        `gorm:"type:int;not null" json:"duration"`
	FileSize       int64      `gorm:"type:bigint;not null;column:file_size" json:"fileSize"`
	UploadedBy     *uuid.UUID `gorm:"type:uuid;column:uploaded_by;index" json:"uploadedBy,omitempty"`
	Active         bool       `gorm:"type:boolean;not null;column:is_active" json:"isActive"`
	AvailableFrom  *time.Time `gorm:"column:available_from" json:"availableFrom,omitempty"`
	AvailableUntil *time.Time `gorm:"column:available_until" json:"availableUntil,omitempty"`
}

// TableName overrides the default table name.
func (Video) TableName() string { return "videos" }

// Available reports whether the video is active and inside its availability window at now.
func (v Video) Available(now time.Time) bool {
	if !v.Active {
		return false
	}
	if v.AvailableFrom != nil && now.Before(*v.AvailableFrom) {
		return false
	}
	if v.AvailableUntil != nil && !now.Before(*v.AvailableUntil) {
		return false
	}
	return true
}

// ListFilters defines video query filters.
type ListFilters struct {
	CourseID uuid.UUID
	Week     *int
	// AvailableAt keeps only active videos inside their window at that time.
	AvailableAt *time.Time
}

// UpdateInput captures mutable video fields.
type UpdateInput struct {
	Title          *string
	DescProvided   bool
	Description    *string
	ThumbProvided  bool
	ThumbnailURL   *string
	Week           *int
	OrderInWeek    *int
	Active         *bool
	FromProvided   bool
	AvailableFrom  *time.Time
	UntilProvided  bool
	AvailableUntil *time.Time
}

// List returns a course's videos ordered by week, order in week and creation time.
func List(db *gorm.DB, filters ListFilters) ([]Video, error) {
	query := db.Model(&Video{}).Where("course_id = ?", filters.CourseID)

	if filters.Week != nil {
		query = query.Where("week = ?", *filters.Week)
	}
	if filters.AvailableAt != nil {
		now := filters.AvailableAt.UTC()
		query = query.
			Where("is_active = ?", true).
			Where("available_from IS NULL OR available_from <= ?", now).
			Where("available_until IS NULL OR available_until > ?", now)
	}

	videos := make([]Video, 0)
	err := query.Order("week ASC, order_in_week ASC, created_at ASC").Find(&videos).Error
	return videos, err
}

// Get retrieves a video by ID.
func Get(db *gorm.DB, id uuid.UUID) (Video, error) {
	var v Video
	if err := db.First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return v, ErrVideoNotFound
		}
		return v, err
	}
	return v, nil
}

// Insert stores a new video row.
func Insert(db *gorm.DB, v *Video) error {
	return db.Create(v).Error
}

// NextOrderInWeek returns the order that places a new video last in its week.
func NextOrderInWeek(db *gorm.DB, courseID uuid.UUID, week int) (int, error) {
	var next int
	err := db.Model(&Video{}).
		Select("COALESCE(MAX(order_in_week) + 1, 0)").
		Where("course_id = ? AND week = ?", courseID, week).
		Scan(&next).Error
	return next, err
}

// Update modifies an existing video.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Video, error) {
	v, err := Get(db, id)
	if err != nil {
		return v, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return v, ErrTitleRequired
		}
		v.Title = title
	}
	if input.DescProvided {
		v.Description = input.Description
	}
	if input.ThumbProvided {
		v.ThumbnailURL = input.ThumbnailURL
	}
	if input.Week != nil {
		if *input.Week < 1 {
			return v, ErrInvalidWeek
		}
		v.Week = *input.Week
	}
	if input.OrderInWeek != nil {
		if *input.OrderInWeek < 0 {
			return v, ErrInvalidOrder
		}
		v.OrderInWeek = *input.OrderInWeek
	}
	if input.Active != nil {
		v.Active = *input.Active
	}
	if input.FromProvided {
		v.AvailableFrom = utcPtr(input.AvailableFrom)
	}
	if input.UntilProvided {
		v.AvailableUntil = utcPtr(input.AvailableUntil)
	}
	if !validWindow(v.AvailableFrom, v.AvailableUntil) {
		return v, ErrInvalidWindow
	}

	if err := db.Save(&v).Error; err != nil {
		return v, err
	}
	return v, nil
}

// DeleteRow removes the video row only.
func DeleteRow(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&Video{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// RecordDuration stores seconds as the duration of a video whose duration is
// still unknown. It reports whether a row was changed.
func RecordDuration(db *gorm.DB, id uuid.UUID, seconds int) (bool, error) {
	if seconds <= 0 {
		return false, ErrInvalidDuration
	}
	result := db.Model(&Video{}).
		Where("id = ? AND duration = 0", id).
		Update("duration", seconds)
	return result.RowsAffected > 0, result.Error
}

// CountActive counts active videos, optionally within one course.
func CountActive(db *gorm.DB, courseID *uuid.UUID) (int64, error) {
	query := db.Model(&Video{}).Where("is_active = ?", true)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// CountUploadedBy counts the videos of a course uploaded by a user.
func CountUploadedBy(db *gorm.DB, courseID, uploaderID uuid.UUID) (int64, error) {
	var count int64
	err := db.Model(&Video{}).
		Where("course_id = ? AND uploaded_by = ?", courseID, uploaderID).
		Count(&count).Error
	return count, err
}

func validWindow(from, until *time.Time) bool {
	return from == nil || until == nil || until.After(*from)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
