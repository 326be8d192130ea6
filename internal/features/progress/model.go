package progress

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aulavirtual/lms-server-go/internal/features/video"
	"github.com/aulavirtual/lms-server-go/pkg/metrics"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// CompletionRatio is the share of a video that must be watched to complete it.
const CompletionRatio = 0.9

// State is the watch state of a (user, video) pair.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Progress is the single watch record of a user for one video.
type Progress struct {
	types.BaseModel

	UserID        uuid.UUID  `gorm:"type:uuid;not null;column:user_id;uniqueIndex:idx_progress_user_video,priority:1" json:"userId"`
	VideoID       uuid.UUID  `gorm:"type:uuid;not null;column:video_id;uniqueIndex:idx_progress_user_video,priority:2;index" json:"videoId"`
	Completed     bool       `gorm:"not null;column:completed" json:"completed"`
	WatchTime     int        `gorm:"not null;column:watch_time" json:"watchTime"`
	LastPosition  int        `gorm:"not null;column:last_position" json:"lastPosition"`
	LastWatchedAt time.Time  `gorm:"not null;column:last_watched_at" json:"lastWatchedAt"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

// TableName overrides the default table name.
func (Progress) TableName() string { return "progress" }

// State derives the watch state of the row.
func (p Progress) State() State {
	switch {
	case p.Completed:
		return StateCompleted
	case p.LastPosition > 0 || p.WatchTime > 0:
		return StateInProgress
	default:
		return StateNotStarted
	}
}

// View is the progress of one video as returned to players.
type View struct {
	VideoID        uuid.UUID  `json:"videoId"`
	State          State      `json:"state"`
	Completed      bool       `json:"completed"`
	WatchTime      int        `json:"watchTime"`
	LastPosition   int        `json:"lastPosition"`
	ResumePosition int        `json:"resumePosition"`
	LastWatchedAt  *time.Time `json:"lastWatchedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func viewOf(videoID uuid.UUID, p *Progress) View {
	if p == nil {
		return View{VideoID: videoID, State: StateNotStarted}
	}
	watched := p.LastWatchedAt
	return View{
		VideoID:        videoID,
		State:          p.State(),
		Completed:      p.Completed,
		WatchTime:      p.WatchTime,
		LastPosition:   p.LastPosition,
		ResumePosition: p.LastPosition,
		LastWatchedAt:  &watched,
		CompletedAt:    p.CompletedAt,
	}
}

// SaveInput is one position report from a player.
type SaveInput struct {
	UserID   uuid.UUID
	VideoID  uuid.UUID
	Position float64
	// Duration is the length reported by the player, used when the stored one is unknown.
	Duration *float64
	// PersistDuration stores Duration on the video. Only staff reports set it.
	PersistDuration bool
	Now             time.Time
}

// IsComplete reports whether position reaches the completion threshold of duration.
func IsComplete(position, duration int) bool {
	if duration <= 0 {
		return false
	}
	return float64(position) >= CompletionRatio*float64(duration)
}

// Save records a position report. A report of position 0 without an existing
// row changes nothing. Completion is never cleared once reached.
func Save(db *gorm.DB, input SaveInput) (View, error) {
	if math.IsNaN(input.Position) || math.IsInf(input.Position, 0) || input.Position < 0 {
		return View{}, ErrInvalidPosition
	}
	if input.Duration != nil && (math.IsNaN(*input.Duration) || math.IsInf(*input.Duration, 0) || *input.Duration < 0) {
		return View{}, ErrInvalidDuration
	}
	now := input.Now.UTC()
	if input.Now.IsZero() {
		now = time.Now().UTC()
	}
	position := int(math.Floor(input.Position))

	var saved *Progress
	var newlyCompleted bool
	err := db.Transaction(func(tx *gorm.DB) error {
		v, err := video.Get(tx, input.VideoID)
		if err != nil {
			return err
		}

		duration := v.Duration
		if duration == 0 && input.Duration != nil && *input.Duration > 0 {
			duration = int(math.Floor(*input.Duration))
			if input.PersistDuration && duration > 0 {
				if _, err := video.RecordDuration(tx, v.ID, duration); err != nil {
					return err
				}
			}
		}

		existing, err := find(tx, input.UserID, input.VideoID)
		if err != nil {
			return err
		}
		if existing == nil && position == 0 {
			return nil
		}

		row := Progress{
			UserID:        input.UserID,
			VideoID:       input.VideoID,
			Completed:     IsComplete(position, duration),
			WatchTime:     position,
			LastPosition:  position,
			LastWatchedAt: now,
		}
		if row.Completed {
			row.CompletedAt = &now
		}
		newlyCompleted = row.Completed && (existing == nil || !existing.Completed)

		if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
			return err
		}

		saved, err = find(tx, input.UserID, input.VideoID)
		return err
	})
	if err != nil {
		return View{}, err
	}
	if saved == nil {
		metrics.RecordProgressSave(string(StateNotStarted), false)
		return viewOf(input.VideoID, nil), nil
	}

	metrics.RecordProgressSave(string(saved.State()), newlyCompleted)
	return viewOf(input.VideoID, saved), nil
}

// upsert merges a report into an existing row in one statement, so concurrent
// first saves converge on one row.
var upsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
	DoUpdates: clause.Set{
		{Column: clause.Column{Name: "last_position"}, Value: gorm.Expr("excluded.last_position")},
		{Column: clause.Column{Name: "last_watched_at"}, Value: gorm.Expr("excluded.last_watched_at")},
		{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		{Column: clause.Column{Name: "watch_time"}, Value: gorm.Expr("CASE WHEN excluded.watch_time > progress.watch_time THEN excluded.watch_time ELSE progress.watch_time END")},
		{Column: clause.Column{Name: "completed"}, Value: gorm.Expr("progress.completed OR excluded.completed")},
		{Column: clause.Column{Name: "completed_at"}, Value: gorm.Expr("COALESCE(progress.completed_at, excluded.completed_at)")},
	},
}

func find(db *gorm.DB, userID, videoID uuid.UUID) (*Progress, error) {
	var rows []Progress
	if err := db.Where("user_id = ? AND video_id = ?", userID, videoID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Get returns the progress of a user on a video, or the not started view.
func Get(db *gorm.DB, userID, videoID uuid.UUID) (View, error) {
	p, err := find(db, userID, videoID)
	if err != nil {
		return View{}, err
	}
	return viewOf(videoID, p), nil
}

// ForCourse returns the user's progress rows for the videos of a course keyed by video id.
func ForCourse(db *gorm.DB, userID, courseID uuid.UUID) (map[uuid.UUID]Progress, error) {
	var rows []Progress
	err := db.Model(&Progress{}).
		Joins("JOIN videos ON videos.id = progress.video_id").
		Where("progress.user_id = ? AND videos.course_id = ?", userID, courseID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byVideo := make(map[uuid.UUID]Progress, len(rows))
	for _, row := range rows {
		byVideo[row.VideoID] = row
	}
	return byVideo, nil
}

// LastActivity returns when the user last reported a position on a video of
// any of courseIDs, or nil when they never did.
func LastActivity(db *gorm.DB, userID uuid.UUID, courseIDs []uuid.UUID) (*time.Time, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var rows []Progress
	err := db.Model(&Progress{}).
		Joins("JOIN videos ON videos.id = progress.video_id").
		Where("progress.user_id = ? AND videos.course_id IN ?", userID, courseIDs).
		Order("progress.last_watched_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	last := rows[0].LastWatchedAt.UTC()
	return &last, nil
}

// Summary is the completion of a course for one user.
type Summary struct {
	CourseID        uuid.UUID `json:"courseId"`
	TotalVideos     int64     `json:"totalVideos"`
	CompletedVideos int64     `json:"completedVideos"`
	Percentage      int       `json:"percentage"`
}

// Percentage rounds completed/total to a whole percent, 0 when total is 0.
func Percentage(completed, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(completed).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		Round(0)
	return int(pct.IntPart())
}

// CourseProgress counts the active videos of a course the user has completed.
func CourseProgress(db *gorm.DB, userID, courseID uuid.UUID) (Summary, error) {
	total, err := video.CountActive(db, &courseID)
	if err != nil {
		return Summary{}, err
	}

	var completed int64
	err = db.Model(&Progress{}).
		Joins("JOIN videos ON videos.id = progress.video_id").
		Where("progress.user_id = ? AND progress.completed = ? AND videos.course_id = ? AND videos.is_active = ?",
			userID, true, courseID, true).
		Count(&completed).Error
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		CourseID:        courseID,
		TotalVideos:     total,
		CompletedVideos: completed,
		Percentage:      Percentage(completed, total),
	}, nil
}
