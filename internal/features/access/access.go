// Package access answers role-scoped questions about courses: who may read
// a course and who may manage its content.
package access

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/assignment"
	"github.com/aulavirtual/lms-server-go/internal/features/enrollment"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
)

// Checker evaluates course access against the database.
type Checker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewChecker constructs a Checker.
func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// CanViewCourse reports whether usr may read the course and its videos.
// Admins always can, instructors need an active assignment and students an
// active unexpired enrollment in an active course.
func (c *Checker) CanViewCourse(ctx context.Context, usr *middleware.CurrentUser, courseID uuid.UUID) (bool, error) {
	switch {
	case usr == nil:
		return false, nil
	case usr.IsAdmin():
		return true, nil
	case usr.IsInstructor():
		return assignment.IsAssigned(c.db.WithContext(ctx), usr.ID, courseID)
	case usr.IsStudent():
		return enrollment.HasAccess(c.db.WithContext(ctx), usr.ID, courseID, c.now())
	default:
		return false, nil
	}
}

// CanManageCourse reports whether usr may change the course's content.
func (c *Checker) CanManageCourse(ctx context.Context, usr *middleware.CurrentUser, courseID uuid.UUID) (bool, error) {
	switch {
	case usr == nil:
		return false, nil
	case usr.IsAdmin():
		return true, nil
	case usr.IsInstructor():
		return assignment.IsAssigned(c.db.WithContext(ctx), usr.ID, courseID)
	default:
		return false, nil
	}
}
