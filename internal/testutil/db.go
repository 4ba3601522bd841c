// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/s/learnhub/internal/database"
	"github.com/s/learnhub/internal/models"
)

// OpenDB returns a migrated in-memory database private to t.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	cfg := database.Config()
	cfg.Logger = gormlogger.Discard
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the shared in-memory database alive for the test
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, email, role, status string) *models.User {
	t.Helper()
	u := &models.User{FullName: email, Email: email, Role: role, Status: status}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, db.Create(u).Error)
	return u
}

func Student(t *testing.T, db *gorm.DB, email string) *models.User {
	return CreateUser(t, db, email, models.RoleStudent, models.StatusApproved)
}

func Admin(t *testing.T, db *gorm.DB, email string) *models.User {
	return CreateUser(t, db, email, models.RoleAdmin, models.StatusApproved)
}

// Course creates a course with one module per entry of lessonsPerModule,
// each holding that many lessons.
func Course(t *testing.T, db *gorm.DB, title string, lessonsPerModule ...int) *models.Course {
	t.Helper()

	var cat models.Category
	require.NoError(t, db.Where(models.Category{Name: "General"}).FirstOrCreate(&cat).Error)

	c := &models.Course{Title: title, Description: title + " description", CategoryID: cat.ID}
	require.NoError(t, db.Create(c).Error)

	for mi, n := range lessonsPerModule {
		m := models.Module{Title: fmt.Sprintf("Module %d", mi+1), OrderIndex: mi + 1, CourseID: c.ID}
		require.NoError(t, db.Create(&m).Error)
		for li := 0; li < n; li++ {
			l := models.Lesson{Title: fmt.Sprintf("Lesson %d.%d", mi+1, li+1), OrderIndex: li + 1, ModuleID: m.ID}
			require.NoError(t, db.Create(&l).Error)
			m.Lessons = append(m.Lessons, l)
		}
		c.Modules = append(c.Modules, m)
	}
	return c
}

func Enroll(t *testing.T, db *gorm.DB, userID, courseID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Enrollment{UserID: userID, CourseID: courseID}).Error)
}

// Count returns the number of rows of model matching the optional condition.
func Count(t *testing.T, db *gorm.DB, model interface{}, conds ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if len(conds) > 0 {
		q = q.Where(conds[0], conds[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
