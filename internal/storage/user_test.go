package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/storage"
	"github.com/s/learnhub/internal/testutil"
)

func TestSaveGoogleUserCreatesPendingStudent(t *testing.T) {
	db := testutil.OpenDB(t)

	u, err := storage.SaveGoogleUser(db, storage.GoogleProfile{ID: "g-1", Email: "new@example.com", Name: "New", Picture: "https://img/x.png"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, u.Role)
	assert.Equal(t, models.StatusPending, u.Status)
	require.NotNil(t, u.GoogleID)
	assert.Equal(t, "g-1", *u.GoogleID)

	again, err := storage.SaveGoogleUser(db, storage.GoogleProfile{ID: "g-1", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.User{}))
}

func TestSaveGoogleUserLinksByEmail(t *testing.T) {
	db := testutil.OpenDB(t)
	existing := testutil.Student(t, db, "known@example.com")

	u, err := storage.SaveGoogleUser(db, storage.GoogleProfile{ID: "g-2", Email: "known@example.com", Picture: "https://img/y.png"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, u.ID)
	assert.Equal(t, models.StatusApproved, u.Status)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, existing.ID).Error)
	require.NotNil(t, reloaded.GoogleID)
	assert.Equal(t, "g-2", *reloaded.GoogleID)
	assert.Equal(t, "https://img/y.png", reloaded.ProfileImage)
}
