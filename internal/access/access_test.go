package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/testutil"
)

func TestCanAccessCourse(t *testing.T) {
	db := testutil.OpenDB(t)
	g := NewGate(db)
	admin := testutil.Admin(t, db, "a@example.com")
	enrolled := testutil.Student(t, db, "in@example.com")
	outsider := testutil.Student(t, db, "out@example.com")
	c := testutil.Course(t, db, "Go", 1)
	testutil.Enroll(t, db, enrolled.ID, c.ID)

	for name, tc := range map[string]struct {
		user *models.User
		want bool
	}{
		"admin":    {admin, true},
		"enrolled": {enrolled, true},
		"outsider": {outsider, false},
		"nobody":   {nil, false},
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := g.CanAccessCourse(tc.user, c.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestCanAccessLesson(t *testing.T) {
	db := testutil.OpenDB(t)
	g := NewGate(db)
	s := testutil.Student(t, db, "s@example.com")
	c := testutil.Course(t, db, "Go", 1)
	lessonID := c.Modules[0].Lessons[0].ID

	courseID, err := g.CourseIDForLesson(lessonID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, courseID)

	ok, err := g.CanAccessLesson(s, lessonID)
	require.NoError(t, err)
	assert.False(t, ok)

	testutil.Enroll(t, db, s.ID, c.ID)
	ok, err = g.CanAccessLesson(s, lessonID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = g.CanAccessLesson(s, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanDownloadSubmission(t *testing.T) {
	owner := &models.User{ID: 1, Role: models.RoleStudent}
	other := &models.User{ID: 2, Role: models.RoleStudent}
	admin := &models.User{ID: 3, Role: models.RoleAdmin}
	sub := &models.Submission{UserID: 1}

	assert.True(t, CanDownloadSubmission(owner, sub))
	assert.False(t, CanDownloadSubmission(other, sub))
	assert.True(t, CanDownloadSubmission(admin, sub))
	assert.False(t, CanDownloadSubmission(nil, sub))
}
