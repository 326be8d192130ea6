package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/assignment"
	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/enrollment"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/features/progress"
	"github.com/aulavirtual/lms-server-go/internal/features/video"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// AdminStats are the platform-wide counters shown to administrators.
type AdminStats struct {
	ActiveStudents    int64            `json:"activeStudents"`
	ActiveInstructors int64            `json:"activeInstructors"`
	ActiveCourses     int64            `json:"activeCourses"`
	ActiveVideos      int64            `json:"activeVideos"`
	Enrollments       enrollment.Stats `json:"enrollments"`
	RecentSignups     int64            `json:"recentSignups"`
	ComputedAt        time.Time        `json:"computedAt"`
}

// ComputeAdminStats gathers the administrator counters at now.
func ComputeAdminStats(db *gorm.DB, now time.Time) (AdminStats, error) {
	var stats AdminStats
	var err error

	if stats.ActiveStudents, err = profile.CountByRole(db, types.RoleStudent, true); err != nil {
		return stats, err
	}
	if stats.ActiveInstructors, err = profile.CountByRole(db, types.RoleInstructor, true); err != nil {
		return stats, err
	}
	if stats.ActiveCourses, err = course.CountActive(db); err != nil {
		return stats, err
	}
	if stats.ActiveVideos, err = video.CountActive(db, nil); err != nil {
		return stats, err
	}
	if stats.Enrollments, err = enrollment.ComputeStats(db, now); err != nil {
		return stats, err
	}
	if err = db.Model(&profile.Profile{}).
		Where("created_at >= ?", now.AddDate(0, 0, -7)).
		Count(&stats.RecentSignups).Error; err != nil {
		return stats, err
	}
	stats.ComputedAt = now
	return stats, nil
}

// InstructorCourse is an assigned course with its teaching counters.
type InstructorCourse struct {
	Course         course.Course `json:"course"`
	UploadedVideos int64         `json:"uploadedVideos"`
	ActiveStudents int64         `json:"activeStudents"`
}

// InstructorCourses lists the active assignments of an instructor with counters.
func InstructorCourses(db *gorm.DB, instructorID uuid.UUID, now time.Time) ([]InstructorCourse, error) {
	assignments, err := assignment.ListForTeacher(db, instructorID)
	if err != nil {
		return nil, err
	}

	courses := make([]InstructorCourse, 0, len(assignments))
	for _, a := range assignments {
		if a.Course == nil {
			continue
		}
		uploaded, err := video.CountUploadedBy(db, a.CourseID, instructorID)
		if err != nil {
			return nil, err
		}
		students, err := enrollment.CountActiveStudents(db, a.CourseID, now)
		if err != nil {
			return nil, err
		}
		courses = append(courses, InstructorCourse{Course: *a.Course, UploadedVideos: uploaded, ActiveStudents: students})
	}
	return courses, nil
}

// activeWindow is how recent a student's last activity must be to count as active.
const activeWindow = 7 * 24 * time.Hour

// RosterCourse is a course a roster student is enrolled in.
type RosterCourse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Code  string    `json:"code"`
	Color string    `json:"color"`
}

// RosterStudent is a student enrolled in at least one of the instructor's courses.
type RosterStudent struct {
	ID              uuid.UUID      `json:"id"`
	Email           string         `json:"email"`
	FullName        string         `json:"fullName"`
	Courses         []RosterCourse `json:"courses"`
	TotalVideos     int64          `json:"totalVideos"`
	CompletedVideos int64          `json:"completedVideos"`
	Percentage      int            `json:"percentage"`
	LastActivity    *time.Time     `json:"lastActivity,omitempty"`
}

// Roster is the instructor's student list with its aggregates.
type Roster struct {
	Students        []RosterStudent `json:"students"`
	TotalStudents   int             `json:"totalStudents"`
	AverageProgress int             `json:"averageProgress"`
	ActiveLastWeek  int             `json:"activeLastWeek"`
}

// InstructorStudents builds the roster of students holding an active enrollment
// in any active course the instructor is assigned to. Progress is summed over
// those courses only.
func InstructorStudents(db *gorm.DB, instructorID uuid.UUID, now time.Time) (Roster, error) {
	roster := Roster{Students: make([]RosterStudent, 0)}

	assignments, err := assignment.ListForTeacher(db, instructorID)
	if err != nil {
		return roster, err
	}
	courseIDs := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		if a.Course == nil || !a.Course.Active {
			continue
		}
		courseIDs = append(courseIDs, a.CourseID)
	}

	enrollments, err := enrollment.ActiveForCourses(db, courseIDs, now)
	if err != nil {
		return roster, err
	}

	byStudent := make(map[uuid.UUID]*RosterStudent)
	studentCourses := make(map[uuid.UUID][]uuid.UUID)
	order := make([]uuid.UUID, 0)
	for _, e := range enrollments {
		if e.Student == nil || !e.Student.Active || e.Student.Role != types.RoleStudent || e.Course == nil {
			continue
		}
		entry, ok := byStudent[e.UserID]
		if !ok {
			entry = &RosterStudent{
				ID:       e.Student.ID,
				Email:    e.Student.Email,
				FullName: e.Student.FullName,
				Courses:  make([]RosterCourse, 0, 1),
			}
			byStudent[e.UserID] = entry
			order = append(order, e.UserID)
		}
		entry.Courses = append(entry.Courses, RosterCourse{
			ID:    e.Course.ID,
			Name:  e.Course.Name,
			Code:  e.Course.Code,
			Color: e.Course.Color,
		})
		studentCourses[e.UserID] = append(studentCourses[e.UserID], e.CourseID)
	}

	since := now.Add(-activeWindow)
	sum := decimal.Zero
	for _, id := range order {
		entry := byStudent[id]
		for _, courseID := range studentCourses[id] {
			summary, err := progress.CourseProgress(db, id, courseID)
			if err != nil {
				return roster, err
			}
			entry.TotalVideos += summary.TotalVideos
			entry.CompletedVideos += summary.CompletedVideos
		}
		entry.Percentage = progress.Percentage(entry.CompletedVideos, entry.TotalVideos)

		last, err := progress.LastActivity(db, id, studentCourses[id])
		if err != nil {
			return roster, err
		}
		entry.LastActivity = last
		if last != nil && !last.Before(since) {
			roster.ActiveLastWeek++
		}

		sum = sum.Add(decimal.NewFromInt(int64(entry.Percentage)))
		roster.Students = append(roster.Students, *entry)
	}

	sort.SliceStable(roster.Students, func(i, j int) bool {
		return strings.ToLower(roster.Students[i].FullName) < strings.ToLower(roster.Students[j].FullName)
	})
	roster.TotalStudents = len(roster.Students)
	if roster.TotalStudents > 0 {
		roster.AverageProgress = int(sum.Div(decimal.NewFromInt(int64(roster.TotalStudents))).Round(0).IntPart())
	}
	return roster, nil
}

// FilterRoster narrows the roster students to a course and a case-insensitive
// name or email search. Aggregates are left as computed.
func FilterRoster(students []RosterStudent, courseID *uuid.UUID, search string) []RosterStudent {
	search = strings.ToLower(strings.TrimSpace(search))
	if courseID == nil && search == "" {
		return students
	}
	filtered := make([]RosterStudent, 0, len(students))
	for _, s := range students {
		if courseID != nil && !inCourse(s.Courses, *courseID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.FullName), search) &&
			!strings.Contains(strings.ToLower(s.Email), search) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func inCourse(courses []RosterCourse, courseID uuid.UUID) bool {
	for _, c := range courses {
		if c.ID == courseID {
			return true
		}
	}
	return false
}

// StudentCourse is an enrolled course with the student's standing in it.
type StudentCourse struct {
	EnrollmentID  uuid.UUID        `json:"enrollmentId"`
	Course        course.Course    `json:"course"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	DaysRemaining int              `json:"daysRemaining"`
	IsExpired     bool             `json:"isExpired"`
	Progress      progress.Summary `json:"progress"`
}

// StudentCourses lists the active enrollments of a student with progress.
// Expired enrollments are included and flagged.
func StudentCourses(db *gorm.DB, studentID uuid.UUID, now time.Time) ([]StudentCourse, error) {
	enrollments, err := enrollment.ActiveForStudent(db, studentID)
	if err != nil {
		return nil, err
	}

	courses := make([]StudentCourse, 0, len(enrollments))
	for _, e := range enrollments {
		if e.Course == nil || !e.Course.Active {
			continue
		}
		summary, err := progress.CourseProgress(db, studentID, e.CourseID)
		if err != nil {
			return nil, err
		}
		courses = append(courses, StudentCourse{
			EnrollmentID:  e.ID,
			Course:        *e.Course,
			ExpiresAt:     e.ExpiresAt,
			DaysRemaining: e.DaysRemaining(now),
			IsExpired:     e.IsExpired(now),
			Progress:      summary,
		})
	}
	return courses, nil
}

// VideoStatus is one entry of a course page.
type VideoStatus struct {
	Video          video.Video    `json:"video"`
	State          progress.State `json:"state"`
	ResumePosition int            `json:"resumePosition"`
}

// CoursePage is the content of a course as seen by one user.
type CoursePage struct {
	Course   course.Course    `json:"course"`
	Progress progress.Summary `json:"progress"`
	Videos   []VideoStatus    `json:"videos"`
}

// BuildCoursePage lists the videos of a course with the user's status on each.
// When onlyAvailable is set, videos outside their window are left out.
func BuildCoursePage(db *gorm.DB, userID, courseID uuid.UUID, now time.Time, onlyAvailable bool) (CoursePage, error) {
	c, err := course.Get(db, courseID)
	if err != nil {
		return CoursePage{}, err
	}

	filters := video.ListFilters{CourseID: courseID}
	if onlyAvailable {
		filters.AvailableAt = &now
	}
	videos, err := video.List(db, filters)
	if err != nil {
		return CoursePage{}, err
	}

	rows, err := progress.ForCourse(db, userID, courseID)
	if err != nil {
		return CoursePage{}, err
	}

	summary, err := progress.CourseProgress(db, userID, courseID)
	if err != nil {
		return CoursePage{}, err
	}

	page := CoursePage{Course: c, Progress: summary, Videos: make([]VideoStatus, 0, len(videos))}
	for _, v := range videos {
		status := VideoStatus{Video: v, State: progress.StateNotStarted}
		if row, ok := rows[v.ID]; ok {
			status.State = row.State()
			status.ResumePosition = row.LastPosition
		}
		page.Videos = append(page.Videos, status)
	}
	return page, nil
}
