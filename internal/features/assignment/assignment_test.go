package assignment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/testutil"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

func seed(t *testing.T) (*gorm.DB, profile.Profile, course.Course) {
	db := testutil.NewDB(t, &profile.Profile{}, &course.Course{}, &TeacherAssignment{})

	teacher, err := profile.Create(db, profile.CreateInput{ID: uuid.New(), Email: "prof@example.com", FullName: "Prof", Role: types.RoleInstructor})
	require.NoError(t, err)
	c, err := course.Create(db, course.CreateInput{Name: "Álgebra", Code: "ALG-1"})
	require.NoError(t, err)
	return db, teacher, c
}

func TestAssignLifecycle(t *testing.T) {
	db, teacher, c := seed(t)

	a, err := Assign(db, teacher.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, a.Active)

	_, err = Assign(db, teacher.ID, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	ok, err := IsAssigned(db, teacher.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	toggled, err := ToggleActive(db, a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)
	ok, err = IsAssigned(db, teacher.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Assigning again reactivates the existing row.
	again, err := Assign(db, teacher.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)

	list, err := ListForTeacher(db, teacher.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Course)
	assert.Equal(t, "ALG-1", list[0].Course.Code)

	byCourse, err := ListForCourse(db, c.ID)
	require.NoError(t, err)
	require.Len(t, byCourse, 1)
	require.NotNil(t, byCourse[0].Teacher)
	assert.Equal(t, teacher.Email, byCourse[0].Teacher.Email)

	require.NoError(t, Unassign(db, a.ID))
	assert.ErrorIs(t, Unassign(db, a.ID), ErrAssignmentNotFound)
}

func TestAssignRejectsNonInstructors(t *testing.T) {
	db, _, c := seed(t)

	student, err := profile.Create(db, profile.CreateInput{ID: uuid.New(), Email: "s@example.com", FullName: "S", Role: types.RoleStudent})
	require.NoError(t, err)

	_, err = Assign(db, student.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotInstructor)
	_, err = Assign(db, uuid.New(), c.ID)
	assert.ErrorIs(t, err, ErrNotInstructor)

	inactive := false
	teacher, err := profile.Create(db, profile.CreateInput{ID: uuid.New(), Email: "off@example.com", FullName: "Off", Role: types.RoleInstructor, Active: &inactive})
	require.NoError(t, err)
	_, err = Assign(db, teacher.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotInstructor)
}

func TestAssignUnknownCourse(t *testing.T) {
	db, teacher, _ := seed(t)

	_, err := Assign(db, teacher.ID, uuid.New())
	assert.ErrorIs(t, err, course.ErrCourseNotFound)
}
