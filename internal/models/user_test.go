package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	var u User
	assert.False(t, u.CheckPassword(""), "accounts without a password never match")

	require.NoError(t, u.SetPassword("s3cret"))
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.True(t, u.CheckPassword("s3cret"))
	assert.False(t, u.CheckPassword("S3cret"))
}

func TestSubmissionState(t *testing.T) {
	var none *Submission
	assert.Equal(t, SubmissionPending, none.State())

	s := &Submission{}
	assert.Equal(t, SubmissionSubmitted, s.State())

	grade := 0
	s.Grade = &grade
	assert.True(t, s.IsGraded())
	assert.Equal(t, SubmissionGraded, s.State())
}

func TestCourseLessons(t *testing.T) {
	c := Course{Modules: []Module{
		{Lessons: []Lesson{{ID: 3}, {ID: 1}}},
		{},
		{Lessons: []Lesson{{ID: 7}}},
	}}
	assert.Equal(t, 3, c.LessonCount())
	assert.Equal(t, []uint{3, 1, 7}, c.LessonIDs())
}

func TestToggledStatus(t *testing.T) {
	assert.Equal(t, StatusDisabled, ToggledStatus(StatusApproved))
	assert.Equal(t, StatusApproved, ToggledStatus(StatusDisabled))
	assert.Equal(t, StatusApproved, ToggledStatus(StatusPending))
	assert.Equal(t, StatusApproved, ToggledStatus(StatusRejected))
}
